// Package assetindex records where every cached effect clip came from.
//
// The cache directory is the source of truth for which clips exist; the
// index only adds provenance (search query, winning title and locator,
// relevance score, measured duration, decorrelation factor) so operators can
// audit or prune a namespace. It is a single SQLite database shared by all
// namespaces under the cache root.
package assetindex
