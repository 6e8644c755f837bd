// Package gemini is a Google Gemini planner backend built on the genai SDK.
//
// Requests use JSON response mode and, when supplied, a response JSON schema
// so the model answers in the planner's canonical shape. ListModels reports
// which models accept generateContent, for the status command.
package gemini
