// Package ffprobe reads clip metadata through the ffprobe binary.
//
// The asset cache calls Probe on freshly downloaded clips to apply the
// duration gate before admission. When ffprobe is unavailable the cache
// falls back to decoding the clip itself.
package ffprobe
