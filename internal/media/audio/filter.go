package audio

import "math"

// HighPass applies a first-order RC high-pass filter at cutoffHz to every
// channel. A non-positive cutoff returns a copy.
func (s *Segment) HighPass(cutoffHz float64) *Segment {
	out := s.Clone()
	if cutoffHz <= 0 || s.SampleRate <= 0 {
		return out
	}
	rc := 1 / (cutoffHz * 2 * math.Pi)
	dt := 1 / float64(s.SampleRate)
	alpha := rc / (rc + dt)

	for c, src := range s.Channels {
		dst := out.Channels[c]
		for i := 1; i < len(src); i++ {
			dst[i] = alpha * (dst[i-1] + src[i] - src[i-1])
		}
	}
	return out
}
