package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// words maps English language names people tend to type into config files.
var words = map[string]string{
	"arabic":  "ar",
	"english": "en",
	"french":  "fr",
	"spanish": "es",
	"german":  "de",
	"turkish": "tr",
	"persian": "fa",
	"urdu":    "ur",
}

// ToISO2 converts a language code or English name to its ISO 639-1 form.
// Returns an empty string when the input cannot be resolved.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if mapped, ok := words[code]; ok {
		return mapped
	}
	tag, err := language.Parse(code)
	if err != nil {
		return ""
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return ""
	}
	iso := base.String()
	if len(iso) != 2 {
		return ""
	}
	return iso
}

// DisplayName returns the English name of a language code. Unknown codes are
// returned uppercased and empty input yields "Unknown".
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	iso2 := ToISO2(trimmed)
	if iso2 == "" {
		return strings.ToUpper(trimmed)
	}
	name := display.English.Languages().Name(language.Make(iso2))
	if name == "" {
		return strings.ToUpper(trimmed)
	}
	return name
}
