package audio

import (
	"math"
)

// DefaultHeadroomDB is the peak headroom Normalize leaves below full scale.
const DefaultHeadroomDB = 0.1

// RMS returns the root mean square over all channels.
func (s *Segment) RMS() float64 {
	frames := s.Frames()
	if frames == 0 {
		return 0
	}
	sum := 0.0
	for _, ch := range s.Channels {
		for _, v := range ch {
			sum += v * v
		}
	}
	return math.Sqrt(sum / float64(frames*len(s.Channels)))
}

// DBFS returns the RMS level relative to full scale. Silence is -Inf.
func (s *Segment) DBFS() float64 {
	return RatioToDB(s.RMS())
}

// Normalize scales the segment so its peak sits headroomDB below full scale.
// Silent segments are returned unchanged.
func (s *Segment) Normalize(headroomDB float64) *Segment {
	peak := s.Peak()
	if peak == 0 {
		return s.Clone()
	}
	target := DBToRatio(-headroomDB)
	return s.Gain(RatioToDB(target / peak))
}

// Range is a half-open span of milliseconds.
type Range struct {
	StartMS int
	EndMS   int
}

// DetectNonSilent returns the spans louder than thresholdDB. A stretch counts
// as silence only when it lasts at least minSilenceMS; windows of that length
// are evaluated every stepMS. Audio shorter than minSilenceMS is treated as
// entirely non-silent.
func (s *Segment) DetectNonSilent(minSilenceMS int, thresholdDB float64, stepMS int) []Range {
	length := s.DurationMS()
	silent := s.detectSilence(minSilenceMS, thresholdDB, stepMS)
	if len(silent) == 0 {
		return []Range{{StartMS: 0, EndMS: length}}
	}
	if len(silent) == 1 && silent[0].StartMS == 0 && silent[0].EndMS == length {
		return nil
	}

	var out []Range
	prevEnd := 0
	for _, r := range silent {
		out = append(out, Range{StartMS: prevEnd, EndMS: r.StartMS})
		prevEnd = r.EndMS
	}
	if prevEnd != length {
		out = append(out, Range{StartMS: prevEnd, EndMS: length})
	}
	if len(out) > 0 && out[0].StartMS == 0 && out[0].EndMS == 0 {
		out = out[1:]
	}
	return out
}

func (s *Segment) detectSilence(minSilenceMS int, thresholdDB float64, stepMS int) []Range {
	length := s.DurationMS()
	if minSilenceMS <= 0 || length < minSilenceMS {
		return nil
	}
	if stepMS <= 0 {
		stepMS = 1
	}
	threshold := DBToRatio(thresholdDB)
	energy := s.energyPrefix()
	channels := float64(len(s.Channels))

	windowRMS := func(startMS int) float64 {
		a := s.clampFrame(msToFrames(startMS, s.SampleRate))
		b := s.clampFrame(msToFrames(startMS+minSilenceMS, s.SampleRate))
		if b <= a {
			return 0
		}
		return math.Sqrt((energy[b] - energy[a]) / (float64(b-a) * channels))
	}

	lastStart := length - minSilenceMS
	starts := make([]int, 0)
	for i := 0; i <= lastStart; i += stepMS {
		if windowRMS(i) <= threshold {
			starts = append(starts, i)
		}
	}
	if lastStart%stepMS != 0 && windowRMS(lastStart) <= threshold {
		starts = append(starts, lastStart)
	}
	if len(starts) == 0 {
		return nil
	}

	var ranges []Range
	rangeStart, prev := starts[0], starts[0]
	for _, start := range starts[1:] {
		continuous := start == prev+stepMS
		// Windows that overlap the previous silent window extend it.
		overlapping := start <= prev+minSilenceMS
		if !continuous && !overlapping {
			ranges = append(ranges, Range{StartMS: rangeStart, EndMS: prev + minSilenceMS})
			rangeStart = start
		}
		prev = start
	}
	ranges = append(ranges, Range{StartMS: rangeStart, EndMS: prev + minSilenceMS})
	return ranges
}

// energyPrefix returns cumulative sum of squared samples across channels, so
// any window's energy is a single subtraction.
func (s *Segment) energyPrefix() []float64 {
	frames := s.Frames()
	prefix := make([]float64, frames+1)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for _, ch := range s.Channels {
			sum += ch[i] * ch[i]
		}
		prefix[i+1] = prefix[i] + sum
	}
	return prefix
}
