// Package compositor mixes resolved effect clips into the narration.
//
// The narration is high-passed and peak-normalized once. Each clip is cropped
// to its first audible region, shortened to an optional target length, gained
// and faded, then added at its position. Overlays never truncate the track:
// a clip ending past the narration extends it with silence. The mix is
// exported once at the end.
package compositor
