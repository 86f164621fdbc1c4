package mpesa

import (
	"fmt"
	"strings"
)

// NormalizePhone converts a raw local phone number into the canonical
// 254XXXXXXXXX form the gateway expects. Only the three Kenyan shapes below
// are accepted; anything else fails rather than being guessed at:
//
//	0712345678   -> 254712345678
//	1123456789   -> 2541123456789
//	254712345678 -> 254712345678
func NormalizePhone(raw string) (string, error) {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()

	switch {
	case strings.HasPrefix(cleaned, "0") && len(cleaned) == 10:
		return "254" + cleaned[1:], nil
	case strings.HasPrefix(cleaned, "1") && len(cleaned) == 10:
		return "254" + cleaned, nil
	case strings.HasPrefix(cleaned, "254") && len(cleaned) == 12:
		return cleaned, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPhoneFormat, raw)
	}
}
