package sanitizer

import "testing"

func TestPhoneDigits(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"empty", "", ""},
		{"e164", "+12125551234", "12125551234"},
		{"formatted", "+1 (212) 555-1234", "12125551234"},
		{"letters dropped", "call 555-1234 now", "5551234"},
		{"no digits", "()---", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhoneDigits(tt.input); got != tt.want {
				t.Errorf("PhoneDigits(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestPhoneSuffix(t *testing.T) {
	tests := []struct {
		name  string
		input string
		n     int
		want  string
	}{
		{"long number", "+1 (212) 555-1234", MinPhoneDigits, "5551234"},
		{"exactly seven digits", "555-1234", MinPhoneDigits, "5551234"},
		{"too short", "55-1234", MinPhoneDigits, ""},
		{"empty", "", MinPhoneDigits, ""},
		{"non-positive n", "5551234", 0, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PhoneSuffix(tt.input, tt.n); got != tt.want {
				t.Errorf("PhoneSuffix(%q, %d) = %q, want %q", tt.input, tt.n, got, tt.want)
			}
		})
	}
}
