// Package textutil provides small string helpers.
//
// Tokens name cache namespaces and category files; file names derive the
// default output path from an input recording. The JSON helpers recover a
// payload from language-model output that wraps it in fences or prose.
package textutil
