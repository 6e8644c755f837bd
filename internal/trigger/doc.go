// Package trigger turns a time-aligned transcript into effect events.
//
// Matching is lexical. Words are diacritic-stripped and case-folded, then
// compared against each category's trigger list in catalog order. Long
// triggers (four or more characters) match anywhere inside a word; short
// triggers must begin the word once clitic prefixes are removed, and the word
// may be at most three characters longer than the trigger. A global gap
// between any two events and a per-category cooldown keep the mix sparse.
//
// Negation ("he did not scream") is not detected here. Callers that need it
// use the planner instead of the lexical matcher.
package trigger
