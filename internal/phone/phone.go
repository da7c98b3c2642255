// Package phone canonicalizes the phone numbers sent by MK-AUTH into
// WhatsApp user addresses.
package phone

import "strings"

const (
	// CountryCode is prepended to numbers that arrive without one.
	CountryCode = "55"
	// Suffix is the WhatsApp user server every address ends with.
	Suffix = "@s.whatsapp.net"
)

// Normalize turns a raw phone string into a WhatsApp user address.
//
// Brazilian mobile numbers may carry an extra 9 after the area code; it is
// removed so that the address matches the account WhatsApp has on file:
//
//	11 digits (area code + number)          -> drop the 9 at index 2, prepend 55
//	13 digits starting with 55 + area code  -> drop the 9 at index 4
//
// Anything else keeps its digits. Normalize never fails; the registration
// check is what decides whether the number is usable.
func Normalize(raw string) string {
	digits := Digits(raw)
	if digits == "" {
		return ""
	}

	if len(digits) == 11 {
		if digits[2] == '9' {
			digits = digits[:2] + digits[3:]
		}
		digits = CountryCode + digits
	}
	if len(digits) == 13 && strings.HasPrefix(digits, CountryCode) && digits[4] == '9' {
		digits = digits[:4] + digits[5:]
	}

	return digits + Suffix
}

// Digits returns only the decimal digits of s. Applied to a normalized
// address it yields the user part.
func Digits(s string) string {
	if i := strings.IndexByte(s, '@'); i >= 0 {
		s = s[:i]
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	return b.String()
}
