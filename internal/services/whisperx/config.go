package whisperx

// Config holds the WhisperX settings for narration transcription.
type Config struct {
	Model       string
	CUDAEnabled bool
	// VADMethod is "silero" (default) or "pyannote". Pyannote needs HFToken.
	VADMethod string
	HFToken   string
	// WorkDir receives the 16 kHz WAV and the WhisperX JSON. A temp dir is
	// used when empty.
	WorkDir string
}

const (
	DefaultModel      = "large-v3"
	VADMethodPyannote = "pyannote"
	VADMethodSilero   = "silero"
	// SampleRate is the mono rate WhisperX expects.
	SampleRate = 16000

	UVXCommand    = "uvx"
	FFmpegCommand = "ffmpeg"
)

const (
	pypiIndex = "https://pypi.org/simple"
	cudaIndex = "https://download.pytorch.org/whl/cu128"
)

// Decoding parameters. Narrations are short and a deterministic decode keeps
// trigger timings stable between runs.
var decodeArgs = []string{
	"--output_format", "json",
	"--batch_size", "4",
	"--chunk_size", "15",
	"--beam_size", "5",
	"--temperature", "0.0",
}

func (c Config) model() string {
	if c.Model != "" {
		return c.Model
	}
	return DefaultModel
}

func (c Config) vadArgs() []string {
	method := c.VADMethod
	if method == "" {
		method = VADMethodSilero
	}
	args := []string{"--vad_method", method}
	if method == VADMethodPyannote && c.HFToken != "" {
		args = append(args, "--hf_token", c.HFToken)
	}
	return args
}

func (c Config) indexArgs() []string {
	if c.CUDAEnabled {
		return []string{"--index-url", cudaIndex, "--extra-index-url", pypiIndex}
	}
	return []string{"--index-url", pypiIndex}
}

func (c Config) deviceArgs() []string {
	if c.CUDAEnabled {
		return []string{"--device", "cuda"}
	}
	return []string{"--device", "cpu", "--compute_type", "int8"}
}
