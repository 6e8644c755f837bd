// Package language normalizes the language hints passed to transcription.
//
// Codes are parsed with golang.org/x/text/language so that ISO 639-1,
// ISO 639-2 and BCP 47 forms ("ar", "ara", "ar-EG") all resolve to the
// two-letter base WhisperX expects.
package language
