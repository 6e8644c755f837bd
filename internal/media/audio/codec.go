package audio

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/braheezy/shine-mp3/pkg/mp3"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"

	"foley/internal/fileutil"
)

// Format identifies a container the package can read or write.
type Format string

const (
	FormatMP3 Format = "mp3"
	FormatWAV Format = "wav"
)

// ErrUnsupportedFormat is returned for containers other than MP3 and WAV.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// mp3FrameSamples is the number of samples per channel in one MPEG-1 Layer III frame.
const mp3FrameSamples = 1152

// FormatFromPath derives the format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(strings.TrimPrefix(filepath.Ext(path), ".")) {
	case "mp3":
		return FormatMP3, nil
	case "wav", "wave":
		return FormatWAV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// sniff inspects the leading bytes when the extension is unhelpful.
func sniff(header []byte) (Format, bool) {
	switch {
	case len(header) >= 12 && string(header[0:4]) == "RIFF" && string(header[8:12]) == "WAVE":
		return FormatWAV, true
	case len(header) >= 3 && string(header[0:3]) == "ID3":
		return FormatMP3, true
	case len(header) >= 2 && header[0] == 0xFF && header[1]&0xE0 == 0xE0:
		return FormatMP3, true
	}
	return "", false
}

// Decode reads an MP3 or WAV file.
func Decode(path string) (*Segment, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	format, err := FormatFromPath(path)
	if err != nil {
		header := make([]byte, 12)
		n, _ := io.ReadFull(file, header)
		detected, ok := sniff(header[:n])
		if !ok {
			return nil, err
		}
		if _, err := file.Seek(0, io.SeekStart); err != nil {
			return nil, err
		}
		format = detected
	}

	var seg *Segment
	switch format {
	case FormatMP3:
		seg, err = DecodeMP3(bufio.NewReader(file))
	case FormatWAV:
		seg, err = DecodeWAV(file)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return seg, nil
}

// DecodeMP3 decodes an MP3 stream. The decoder always yields stereo.
func DecodeMP3(r io.Reader) (*Segment, error) {
	dec, err := gomp3.NewDecoder(r)
	if err != nil {
		return nil, err
	}
	pcm, err := io.ReadAll(dec)
	if err != nil {
		return nil, err
	}
	frames := len(pcm) / 4
	if frames == 0 {
		return nil, ErrEmpty
	}
	seg := New(dec.SampleRate(), 2, frames)
	for i := 0; i < frames; i++ {
		left := int16(binary.LittleEndian.Uint16(pcm[i*4:]))
		right := int16(binary.LittleEndian.Uint16(pcm[i*4+2:]))
		seg.Channels[0][i] = float64(left) / 32768
		seg.Channels[1][i] = float64(right) / 32768
	}
	return seg, nil
}

// DecodeWAV decodes an integer PCM WAV stream.
func DecodeWAV(r io.ReadSeeker) (*Segment, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errors.New("invalid wav file")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, err
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, errors.New("wav reports no channels")
	}
	frames := len(buf.Data) / channels
	if frames == 0 {
		return nil, ErrEmpty
	}

	bits := int(dec.BitDepth)
	scale := math.Ldexp(1, bits-1)
	offset := 0.0
	if bits == 8 {
		offset = 128
	}
	seg := New(int(dec.SampleRate), channels, frames)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			seg.Channels[c][i] = (float64(buf.Data[i*channels+c]) - offset) / scale
		}
	}
	return seg, nil
}

// Encode writes seg to path in the format implied by its extension. The file
// appears atomically.
func Encode(path string, seg *Segment) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	return fileutil.WriteAtomic(path, func(f *os.File) error {
		switch format {
		case FormatWAV:
			return EncodeWAV(f, seg)
		default:
			return EncodeMP3(f, seg)
		}
	})
}

// shineRates lists the MPEG-1 sample rates the encoder accepts.
var shineRates = map[int]bool{32000: true, 44100: true, 48000: true}

// EncodeMP3 writes seg as MP3. Unsupported sample rates are resampled to
// 44.1 kHz and more than two channels are folded to stereo.
func EncodeMP3(w io.Writer, seg *Segment) error {
	if seg.Frames() == 0 {
		return ErrEmpty
	}
	if !shineRates[seg.SampleRate] {
		seg = seg.Resample(44100)
	}
	if seg.NumChannels() > 2 {
		seg = seg.WithChannels(2)
	}
	channels := seg.NumChannels()
	enc := mp3.NewEncoder(seg.SampleRate, channels)

	bw := bufio.NewWriter(w)
	frames := seg.Frames()
	chunk := make([]int16, mp3FrameSamples*channels)
	for start := 0; start < frames; start += mp3FrameSamples {
		clear(chunk)
		for i := 0; i < mp3FrameSamples && start+i < frames; i++ {
			for c := 0; c < channels; c++ {
				chunk[i*channels+c] = toInt16(seg.Channels[c][start+i])
			}
		}
		enc.Write(bw, chunk)
	}
	return bw.Flush()
}

// EncodeWAV writes seg as 16-bit PCM WAV.
func EncodeWAV(w io.WriteSeeker, seg *Segment) error {
	if seg.Frames() == 0 {
		return ErrEmpty
	}
	channels := seg.NumChannels()
	frames := seg.Frames()
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = int(toInt16(seg.Channels[c][i]))
		}
	}
	enc := wav.NewEncoder(w, seg.SampleRate, 16, channels, 1)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: seg.SampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// EncodeBytes renders seg in memory, mainly for tests and previews.
func EncodeBytes(seg *Segment, format Format) ([]byte, error) {
	switch format {
	case FormatMP3:
		var buf bytes.Buffer
		if err := EncodeMP3(&buf, seg); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatWAV:
		ws := &memWriteSeeker{}
		if err := EncodeWAV(ws, seg); err != nil {
			return nil, err
		}
		return ws.buf, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
}

func toInt16(v float64) int16 {
	v = math.Max(-1, math.Min(1, v))
	if v >= 0 {
		return int16(math.Round(v * 32767))
	}
	return int16(math.Round(v * 32768))
}

// memWriteSeeker is a growable in-memory io.WriteSeeker.
type memWriteSeeker struct {
	buf []byte
	pos int
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if need := m.pos + len(p); need > len(m.buf) {
		m.buf = append(m.buf, make([]byte, need-len(m.buf))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos += len(p)
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = int64(m.pos) + offset
	case io.SeekEnd:
		next = int64(len(m.buf)) + offset
	default:
		return 0, errors.New("invalid whence")
	}
	if next < 0 {
		return 0, errors.New("negative position")
	}
	m.pos = int(next)
	return next, nil
}
