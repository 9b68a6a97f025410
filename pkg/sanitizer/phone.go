package sanitizer

import (
	"github.com/nyaruka/phonenumbers"
)

// MinPhoneDigits is the shortest trailing digit run the matcher compares.
const MinPhoneDigits = 7

// PhoneDigits keeps only the digits of phone, folding non-ASCII digits
// (full-width, Arabic-Indic, ...) to ASCII.
func PhoneDigits(phone string) string {
	if phone == "" {
		return ""
	}
	return phonenumbers.NormalizeDigitsOnly(phone)
}

// PhoneSuffix returns the last n digits of phone, or "" when phone carries
// fewer than n digits.
func PhoneSuffix(phone string, n int) string {
	digits := PhoneDigits(phone)
	if n <= 0 || len(digits) < n {
		return ""
	}
	return digits[len(digits)-n:]
}
