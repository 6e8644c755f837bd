// Package audio holds decoded PCM audio and the operations the mixer needs.
//
// A Segment stores one float64 slice per channel with samples in [-1, 1].
// Times are expressed in milliseconds to match how cue positions are
// tracked. Every operation returns a new Segment and leaves the receiver
// untouched. MP3 decoding uses go-mp3 and encoding uses shine-mp3; WAV goes
// through go-audio/wav in both directions.
package audio
