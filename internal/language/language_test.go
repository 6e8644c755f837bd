package language

import "testing"

func TestToISO2(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"ar", "ar"},
		{"AR", "ar"},
		{"ara", "ar"},
		{"ar-EG", "ar"},
		{"arabic", "ar"},
		{"eng", "en"},
		{"", ""},
		{"not a language", ""},
	}
	for _, tt := range tests {
		if got := ToISO2(tt.in); got != tt.want {
			t.Errorf("ToISO2(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDisplayName(t *testing.T) {
	if got := DisplayName("ar"); got != "Arabic" {
		t.Fatalf("DisplayName(ar) = %q", got)
	}
	if got := DisplayName(""); got != "Unknown" {
		t.Fatalf("DisplayName(\"\") = %q", got)
	}
	if got := DisplayName("zz-qq-bad!"); got != "ZZ-QQ-BAD!" {
		t.Fatalf("DisplayName(bad) = %q", got)
	}
}
