package validation

import (
	"strings"
	"unicode"
)

const (
	passwordMinLength = 8
	passwordSymbols   = "!@#$%^&*()-_=+[]{};:,.<>?/|~"
)

// commonPasswords is checked as a case-insensitive substring match, so
// "MyPassword1!" is rejected just like "password".
var commonPasswords = []string{
	"password",
	"passwort",
	"qwerty",
	"letmein",
	"welcome",
	"iloveyou",
	"dragon",
	"monkey",
	"master",
	"sunshine",
	"princess",
	"football",
	"baseball",
	"superman",
	"trustno1",
	"admin",
	"deepref",
	"123456",
}

// ValidatePassword checks a candidate password against the platform policy.
// Rules are evaluated in a fixed order and the first violation wins, so the
// returned message always names a single rule.
func ValidatePassword(candidate string) error {
	if len(candidate) < passwordMinLength {
		return NewValidationFailedError("password must be at least 8 characters long")
	}
	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range candidate {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case strings.ContainsRune(passwordSymbols, r):
			hasSymbol = true
		}
	}
	if !hasUpper || !hasLower {
		return NewValidationFailedError("password must contain both uppercase and lowercase letters")
	}
	if !hasDigit {
		return NewValidationFailedError("password must contain at least one digit")
	}
	if !hasSymbol {
		return NewValidationFailedError("password must contain at least one special character")
	}
	lowered := strings.ToLower(candidate)
	for _, common := range commonPasswords {
		if strings.Contains(lowered, common) {
			return NewValidationFailedError("password must not contain a commonly used password")
		}
	}
	if hasSequentialRun(lowered) {
		return NewValidationFailedError("password must not contain sequential characters")
	}
	if hasRepeatedRun(candidate) {
		return NewValidationFailedError("password must not repeat the same character three or more times")
	}
	return nil
}

// hasSequentialRun reports an ascending run of three letters or digits, like
// "abc" or "789". The input is already lowercased.
func hasSequentialRun(s string) bool {
	runes := []rune(s)
	for i := 0; i+2 < len(runes); i++ {
		a, b, c := runes[i], runes[i+1], runes[i+2]
		if b != a+1 || c != b+1 {
			continue
		}
		if a >= 'a' && c <= 'z' {
			return true
		}
		if a >= '0' && c <= '9' {
			return true
		}
	}
	return false
}

func hasRepeatedRun(s string) bool {
	runes := []rune(s)
	for i := 0; i+2 < len(runes); i++ {
		if runes[i] == runes[i+1] && runes[i] == runes[i+2] {
			return true
		}
	}
	return false
}
