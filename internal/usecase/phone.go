package usecase

import (
	"strings"

	"exam-access/internal/domain"
)

// NormalizePhone rewrites a payer number to international form: digits only,
// a leading trunk 0 replaced by countryCode, numbers already carrying the
// country code kept, anything else prefixed. The result is idempotent.
func NormalizePhone(raw, countryCode string) (string, error) {
	d := digitsOnly(raw)
	if d == "" {
		return "", domain.Invalid("phone number")
	}
	switch {
	case strings.HasPrefix(d, "0"):
		d = countryCode + d[1:]
	case strings.HasPrefix(d, countryCode):
	default:
		d = countryCode + d
	}
	// E.164 caps numbers at 15 digits
	if len(d) <= len(countryCode)+6 || len(d) > 15 {
		return "", domain.Invalid("phone number")
	}
	return d, nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}
