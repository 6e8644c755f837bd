// Package assetcache resolves a catalog category to a local effect clip.
//
// Clips live in {cache_dir}/{namespace}/{category}_{n}.mp3. A category with
// cached clips is served by round-robin rotation that is scoped to a single
// run; an empty category triggers a search, relevance selection, download,
// quality gate and decorrelation resample before the clip is admitted under
// the next free index. Admission is atomic: the download is staged under a
// hidden temp name and renamed only after every check passed, while a file
// lock serializes index allocation across processes sharing the cache.
package assetcache
