package audio

import (
	"errors"
	"math"
	"time"

	"gonum.org/v1/gonum/floats"
)

// ErrEmpty is returned when an operation needs at least one sample.
var ErrEmpty = errors.New("audio: empty segment")

// Segment is a block of decoded PCM audio.
type Segment struct {
	SampleRate int
	Channels   [][]float64
}

// New allocates a silent segment with the given shape.
func New(sampleRate, channels, frames int) *Segment {
	if channels < 1 {
		channels = 1
	}
	if frames < 0 {
		frames = 0
	}
	data := make([][]float64, channels)
	for i := range data {
		data[i] = make([]float64, frames)
	}
	return &Segment{SampleRate: sampleRate, Channels: data}
}

// Silent returns durationMS of silence.
func Silent(durationMS, sampleRate, channels int) *Segment {
	return New(sampleRate, channels, msToFrames(durationMS, sampleRate))
}

// Frames returns the number of samples per channel.
func (s *Segment) Frames() int {
	if s == nil || len(s.Channels) == 0 {
		return 0
	}
	return len(s.Channels[0])
}

// NumChannels returns the channel count.
func (s *Segment) NumChannels() int {
	if s == nil {
		return 0
	}
	return len(s.Channels)
}

// Duration returns the playback length.
func (s *Segment) Duration() time.Duration {
	if s == nil || s.SampleRate <= 0 {
		return 0
	}
	return time.Duration(s.Frames()) * time.Second / time.Duration(s.SampleRate)
}

// DurationMS returns the playback length in whole milliseconds.
func (s *Segment) DurationMS() int {
	return int(s.Duration() / time.Millisecond)
}

// Clone returns a deep copy.
func (s *Segment) Clone() *Segment {
	out := &Segment{SampleRate: s.SampleRate, Channels: make([][]float64, len(s.Channels))}
	for i, ch := range s.Channels {
		out.Channels[i] = append([]float64(nil), ch...)
	}
	return out
}

func msToFrames(ms, sampleRate int) int {
	if ms <= 0 || sampleRate <= 0 {
		return 0
	}
	return int(int64(ms) * int64(sampleRate) / 1000)
}

func (s *Segment) clampFrame(frame int) int {
	if frame < 0 {
		return 0
	}
	if n := s.Frames(); frame > n {
		return n
	}
	return frame
}

// Slice returns the audio between startMS and endMS. Bounds are clamped to
// the segment.
func (s *Segment) Slice(startMS, endMS int) *Segment {
	start := s.clampFrame(msToFrames(startMS, s.SampleRate))
	end := s.clampFrame(msToFrames(endMS, s.SampleRate))
	if end < start {
		end = start
	}
	out := &Segment{SampleRate: s.SampleRate, Channels: make([][]float64, len(s.Channels))}
	for i, ch := range s.Channels {
		out.Channels[i] = append([]float64(nil), ch[start:end]...)
	}
	return out
}

// Gain scales every sample by db decibels.
func (s *Segment) Gain(db float64) *Segment {
	out := s.Clone()
	if db == 0 {
		return out
	}
	factor := DBToRatio(db)
	for _, ch := range out.Channels {
		floats.Scale(factor, ch)
	}
	return out
}

// FadeIn ramps the first durationMS linearly from silence to full level.
func (s *Segment) FadeIn(durationMS int) *Segment {
	out := s.Clone()
	n := out.clampFrame(msToFrames(durationMS, out.SampleRate))
	if n == 0 {
		return out
	}
	for _, ch := range out.Channels {
		for i := 0; i < n; i++ {
			ch[i] *= float64(i) / float64(n)
		}
	}
	return out
}

// FadeOut ramps the last durationMS linearly down to silence.
func (s *Segment) FadeOut(durationMS int) *Segment {
	out := s.Clone()
	n := out.clampFrame(msToFrames(durationMS, out.SampleRate))
	if n == 0 {
		return out
	}
	total := out.Frames()
	for _, ch := range out.Channels {
		for i := 0; i < n; i++ {
			ch[total-n+i] *= float64(n-1-i) / float64(n)
		}
	}
	return out
}

// WithChannels converts to the requested channel count. Extra channels copy
// the mean of the source; fewer channels average the source down.
func (s *Segment) WithChannels(channels int) *Segment {
	if channels < 1 || channels == len(s.Channels) {
		return s.Clone()
	}
	frames := s.Frames()
	mono := make([]float64, frames)
	for _, ch := range s.Channels {
		floats.Add(mono, ch)
	}
	if len(s.Channels) > 0 {
		floats.Scale(1/float64(len(s.Channels)), mono)
	}
	out := New(s.SampleRate, channels, frames)
	for i := range out.Channels {
		if i < len(s.Channels) && channels > len(s.Channels) {
			copy(out.Channels[i], s.Channels[i])
			continue
		}
		copy(out.Channels[i], mono)
	}
	return out
}

// Overlay mixes other into a copy of s starting at positionMS. The result is
// extended with silence when other ends past the end of s, so nothing is
// truncated. other must already match the sample rate and channel count.
func (s *Segment) Overlay(other *Segment, positionMS int) (*Segment, error) {
	out := s.Clone()
	if err := out.MixAt(other, positionMS); err != nil {
		return nil, err
	}
	return out, nil
}

// MixAt adds other into s in place starting at positionMS, growing s when
// other ends past its end.
func (s *Segment) MixAt(other *Segment, positionMS int) error {
	if other.SampleRate != s.SampleRate {
		return errors.New("audio: overlay sample rate mismatch")
	}
	if other.NumChannels() != s.NumChannels() {
		return errors.New("audio: overlay channel mismatch")
	}
	if positionMS < 0 {
		positionMS = 0
	}
	offset := msToFrames(positionMS, s.SampleRate)
	end := offset + other.Frames()
	for i := range s.Channels {
		if grow := end - len(s.Channels[i]); grow > 0 {
			s.Channels[i] = append(s.Channels[i], make([]float64, grow)...)
		}
		floats.Add(s.Channels[i][offset:end], other.Channels[i])
	}
	return nil
}

// Peak returns the largest absolute sample value.
func (s *Segment) Peak() float64 {
	peak := 0.0
	for _, ch := range s.Channels {
		if len(ch) == 0 {
			continue
		}
		peak = math.Max(peak, math.Max(floats.Max(ch), -floats.Min(ch)))
	}
	return peak
}

// DBToRatio converts decibels to an amplitude ratio.
func DBToRatio(db float64) float64 {
	return math.Pow(10, db/20)
}

// RatioToDB converts an amplitude ratio to decibels.
func RatioToDB(ratio float64) float64 {
	if ratio <= 0 {
		return math.Inf(-1)
	}
	return 20 * math.Log10(ratio)
}
