package gemini

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"google.golang.org/genai"

	"foley/internal/config"
)

const (
	defaultModel      = "gemini-2.5-flash"
	jsonMIMEType      = "application/json"
	generateContentOp = "generateContent"
)

// Config captures Gemini connection settings.
type Config struct {
	APIKey         string
	Model          string
	BaseURL        string
	TimeoutSeconds int
	// ResponseSchema is attached as the response JSON schema when non-nil.
	ResponseSchema any
}

// ConfigFrom adapts the configuration file section.
func ConfigFrom(c config.Gemini) Config {
	return Config{
		APIKey:         c.APIKey,
		Model:          c.Model,
		BaseURL:        c.BaseURL,
		TimeoutSeconds: c.TimeoutSeconds,
	}
}

// Client wraps a genai client bound to one model.
type Client struct {
	cfg    Config
	client *genai.Client
}

// ModelInfo describes a model available to the key.
type ModelInfo struct {
	Name        string
	DisplayName string
	Actions     []string
}

// New builds a client. The API key is required; the SDK's environment
// fallbacks are not consulted so configuration stays explicit.
func New(ctx context.Context, cfg Config) (*Client, error) {
	cfg.APIKey = strings.TrimSpace(cfg.APIKey)
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key required")
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	opts := genai.HTTPOptions{BaseURL: strings.TrimSpace(cfg.BaseURL)}
	if cfg.TimeoutSeconds > 0 {
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		opts.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: opts,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.cfg.Model
}

// Complete sends the prompts and returns the model's text. It satisfies
// planner.Backend.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if strings.TrimSpace(userPrompt) == "" {
		return "", errors.New("gemini complete: user prompt required")
	}
	genCfg := &genai.GenerateContentConfig{
		Temperature:      genai.Ptr[float32](0),
		ResponseMIMEType: jsonMIMEType,
	}
	if strings.TrimSpace(systemPrompt) != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(systemPrompt, genai.RoleUser)
	}
	if c.cfg.ResponseSchema != nil {
		genCfg.ResponseJsonSchema = c.cfg.ResponseSchema
	}
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.Model, genai.Text(userPrompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini complete: %w", err)
	}
	text := strings.TrimSpace(resp.Text())
	if text == "" {
		reason := ""
		if len(resp.Candidates) > 0 {
			reason = string(resp.Candidates[0].FinishReason)
		}
		return "", fmt.Errorf("gemini complete: empty response (finish_reason=%q)", reason)
	}
	return text, nil
}

// ListModels returns the models that support generateContent.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for model, err := range c.client.Models.All(ctx) {
		if err != nil {
			return out, fmt.Errorf("gemini list models: %w", err)
		}
		if model == nil || !slices.Contains(model.SupportedActions, generateContentOp) {
			continue
		}
		out = append(out, ModelInfo{
			Name:        strings.TrimPrefix(model.Name, "models/"),
			DisplayName: model.DisplayName,
			Actions:     model.SupportedActions,
		})
	}
	return out, nil
}
