package whisperx

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	langpkg "foley/internal/language"
	"foley/internal/logging"
	"foley/internal/media/ffmpeg"
	"foley/internal/services"
	"foley/internal/textutil"
	"foley/internal/trigger"
)

// Service provides WhisperX transcription capabilities.
type Service struct {
	cfg           Config
	ffmpegBinary  string
	logger        *slog.Logger
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewService creates a WhisperX service with the given configuration.
func NewService(cfg Config, ffmpegBinary string, logger *slog.Logger) *Service {
	if ffmpegBinary == "" {
		ffmpegBinary = FFmpegCommand
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Service{
		cfg:          cfg,
		ffmpegBinary: ffmpegBinary,
		logger:       logging.NewComponentLogger(logger, "whisperx"),
	}
}

// WithCommandRunner sets a custom command runner (for testing).
func (s *Service) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) {
	s.commandRunner = runner
}

// Model returns the configured model name for logging.
func (s *Service) Model() string {
	return s.cfg.model()
}

// CUDAEnabled returns whether CUDA is enabled.
func (s *Service) CUDAEnabled() bool {
	return s.cfg.CUDAEnabled
}

// run executes a command, using the custom runner if set.
func (s *Service) run(ctx context.Context, name string, args ...string) error {
	if s.commandRunner != nil {
		return s.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 changed torch.load default to weights_only=true, breaking WhisperX/pyannote.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}

	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

// Transcribe converts audioPath to 16 kHz mono, runs WhisperX and returns
// the aligned words. Every failure is tagged as a transcription error.
func (s *Service) Transcribe(ctx context.Context, audioPath, language string) ([]trigger.Word, error) {
	if strings.TrimSpace(audioPath) == "" {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "prepare", "audio path required", nil)
	}
	if _, err := os.Stat(audioPath); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "prepare", "narration not readable", err)
	}

	workDir, cleanup, err := s.workDir()
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "prepare", "work directory", err)
	}
	defer cleanup()

	stem := textutil.StemName(audioPath)
	wavPath := filepath.Join(workDir, stem+"_16k.wav")
	if err := s.run(ctx, s.ffmpegBinary, ffmpeg.WAVArgs(audioPath, wavPath, SampleRate, 1)...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "extract audio", "", err)
	}

	s.logger.Info("whisperx transcription started",
		logging.String(logging.FieldEventType, "transcription_start"),
		logging.String("model", s.Model()),
		logging.Bool("cuda", s.cfg.CUDAEnabled),
		logging.String("language", langpkg.ToISO2(language)),
	)
	if err := s.run(ctx, UVXCommand, s.buildArgs(wavPath, workDir, language)...); err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "whisperx", "", err)
	}

	jsonPath := filepath.Join(workDir, strings.TrimSuffix(filepath.Base(wavPath), filepath.Ext(wavPath))+".json")
	words, err := LoadWords(jsonPath)
	if err != nil {
		return nil, services.Wrap(services.ErrTranscription, "transcription", "load output", "", err)
	}
	s.logger.Info("whisperx transcription complete",
		logging.String(logging.FieldEventType, "transcription_complete"),
		logging.Int("words", len(words)),
	)
	return words, nil
}

func (s *Service) workDir() (string, func(), error) {
	if dir := strings.TrimSpace(s.cfg.WorkDir); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", nil, err
		}
		run, err := os.MkdirTemp(dir, "whisperx-")
		if err != nil {
			return "", nil, err
		}
		return run, func() { _ = os.RemoveAll(run) }, nil
	}
	run, err := os.MkdirTemp("", "foley-whisperx-")
	if err != nil {
		return "", nil, err
	}
	return run, func() { _ = os.RemoveAll(run) }, nil
}

// buildArgs assembles the uvx invocation: package index, whisperx and its
// options, then language and device.
func (s *Service) buildArgs(source, outputDir, language string) []string {
	args := append([]string{}, s.cfg.indexArgs()...)
	args = append(args, "whisperx", source, "--model", s.Model(), "--output_dir", outputDir)
	args = append(args, decodeArgs...)
	args = append(args, s.cfg.vadArgs()...)
	if lang := langpkg.ToISO2(language); lang != "" {
		args = append(args, "--language", lang)
	}
	return append(args, s.cfg.deviceArgs()...)
}
