package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc, schema any) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := New(context.Background(), Config{APIKey: "key", Model: "demo", BaseURL: server.URL, TimeoutSeconds: 5, ResponseSchema: schema})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return client
}

func TestCompleteSendsJSONModeAndSchema(t *testing.T) {
	var path string
	var body map[string]any
	schema := map[string]any{"type": "object"}
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{
				"content": map[string]any{"role": "model", "parts": []any{map[string]any{"text": `{"sfx":[]}`}}},
			}},
		})
	}, schema)

	text, err := client.Complete(context.Background(), "system", "user")
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"sfx":[]}` {
		t.Fatalf("unexpected text %q", text)
	}
	if !strings.HasSuffix(path, "/models/demo:generateContent") {
		t.Fatalf("unexpected path %q", path)
	}
	genCfg, _ := body["generationConfig"].(map[string]any)
	if genCfg["responseMimeType"] != "application/json" {
		t.Fatalf("expected JSON mode, got %v", genCfg)
	}
	if _, ok := genCfg["responseJsonSchema"]; !ok {
		t.Fatalf("expected response schema, got %v", genCfg)
	}
	if _, ok := body["systemInstruction"]; !ok {
		t.Fatalf("expected system instruction, got %v", body)
	}
}

func TestCompleteRejectsEmptyText(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"candidates": []any{map[string]any{"finishReason": "SAFETY"}},
		})
	}, nil)
	_, err := client.Complete(context.Background(), "system", "user")
	if err == nil || !strings.Contains(err.Error(), "SAFETY") {
		t.Fatalf("expected empty response error, got %v", err)
	}
}

func TestCompleteSurfacesHTTPErrors(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":400,"message":"bad key"}}`, http.StatusBadRequest)
	}, nil)
	if _, err := client.Complete(context.Background(), "system", "user"); err == nil {
		t.Fatal("expected error")
	}
}

func TestListModelsFiltersGenerateContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"models": []any{
				map[string]any{"name": "models/gemini-a", "displayName": "A", "supportedGenerationMethods": []string{"generateContent", "countTokens"}},
				map[string]any{"name": "models/embed", "supportedGenerationMethods": []string{"embedContent"}},
			},
		})
	}, nil)
	models, err := client.ListModels(context.Background())
	if err != nil {
		t.Fatalf("ListModels: %v", err)
	}
	if len(models) != 1 || models[0].Name != "gemini-a" || models[0].DisplayName != "A" {
		t.Fatalf("unexpected models %+v", models)
	}
}

func TestNewRequiresKeyAndDefaultsModel(t *testing.T) {
	if _, err := New(context.Background(), Config{}); err == nil {
		t.Fatal("expected api key error")
	}
	client, err := New(context.Background(), Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if client.Model() != defaultModel {
		t.Fatalf("expected default model, got %q", client.Model())
	}
}
