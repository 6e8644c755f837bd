// Package planner asks a language model where effects belong.
//
// The model receives the transcript as "[mm:ss.s] word" lines plus the list
// of category IDs and answers with cues {sfx, time, duration}. Model output
// is loosely shaped, so ParseResponse tries a fixed sequence of shapes (a bare
// array, an object with an "sfx" array, an object with exactly one array
// value) and fails with ErrUnrecognizedShape otherwise. Parsed cues are
// filtered to known categories and non-negative times, sorted, and thinned to
// the configured minimum spacing.
//
// Unlike the lexical matcher the planner sees whole sentences, so negation
// ("the door did not open") is its responsibility.
package planner
