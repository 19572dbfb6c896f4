package password

import "unicode"

// Specials is the set of symbols a strong password must draw from.
const Specials = "!@#$%^&*"

const (
	minLength = 8
	maxLength = 64
)

// IsStrong reports whether the candidate satisfies the strength rule:
// 8 to 64 characters, at least one digit, at least one special symbol,
// and nothing outside letters, digits, underscore and the special set.
// The rule is fixed, not configurable per call.
func IsStrong(candidate string) bool {
	var length, digits, specials int
	for _, ch := range candidate {
		length++
		switch {
		case unicode.IsDigit(ch):
			digits++
		case isSpecial(ch):
			specials++
		case unicode.IsLetter(ch) || ch == '_':
		default:
			return false
		}
	}

	if length < minLength || length > maxLength {
		return false
	}
	return digits > 0 && specials > 0
}

func isSpecial(ch rune) bool {
	for _, s := range Specials {
		if ch == s {
			return true
		}
	}
	return false
}
