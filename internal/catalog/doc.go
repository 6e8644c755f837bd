// Package catalog loads the static table of sound-effect categories.
//
// A category bundles the trigger words that cue it, the search phrase used
// to source new clips, the tags that make a candidate clip relevant, a
// volume offset and a per-category cooldown. The default table is embedded
// from categories.toml; a user file with the same shape replaces it
// entirely. Catalogs are read-only once loaded.
package catalog
