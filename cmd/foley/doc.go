// Package main hosts the foley CLI entrypoint and command graph.
//
// The Cobra command tree resolves configuration once, builds the pipeline
// runtime on demand, and renders reports, cache listings and dependency
// status for the terminal. The heavy lifting lives in internal packages;
// commands here only parse flags, call them and format the result.
package main
