// Package whisperx produces word-level transcripts by driving WhisperX
// through uvx.
//
// The narration is first converted to 16 kHz mono WAV with ffmpeg, then
// WhisperX runs with alignment enabled so every word carries a start time.
// The resulting JSON is flattened into trigger.Word values in reading order.
//
// Configuration options (model, CUDA, VAD method) are passed via Config.
package whisperx
