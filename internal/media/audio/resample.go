package audio

import "math"

// WithSampleRate reinterprets the samples at a new rate without touching
// them, which shifts pitch and speed together.
func (s *Segment) WithSampleRate(rate int) *Segment {
	out := s.Clone()
	out.SampleRate = rate
	return out
}

// Resample converts to rate with linear interpolation, keeping duration.
func (s *Segment) Resample(rate int) *Segment {
	if rate <= 0 || rate == s.SampleRate || s.SampleRate <= 0 {
		return s.Clone()
	}
	frames := s.Frames()
	outFrames := int(math.Round(float64(frames) * float64(rate) / float64(s.SampleRate)))
	out := New(rate, s.NumChannels(), outFrames)
	step := float64(s.SampleRate) / float64(rate)

	for c, src := range s.Channels {
		dst := out.Channels[c]
		for j := range dst {
			pos := float64(j) * step
			i := int(pos)
			if i >= frames-1 {
				dst[j] = src[frames-1]
				continue
			}
			frac := pos - float64(i)
			dst[j] = src[i]*(1-frac) + src[i+1]*frac
		}
	}
	return out
}

// ChangeSpeed plays the segment factor times faster, then resamples back to
// targetRate. A factor of 1.03 shortens the clip by about 3% and raises its
// pitch by the same ratio.
func (s *Segment) ChangeSpeed(factor float64, targetRate int) *Segment {
	if factor <= 0 {
		factor = 1
	}
	if targetRate <= 0 {
		targetRate = s.SampleRate
	}
	shifted := s.WithSampleRate(int(float64(s.SampleRate) * factor))
	return shifted.Resample(targetRate)
}
