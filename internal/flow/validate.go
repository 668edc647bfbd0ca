package flow

import (
	"regexp"
	"strconv"
	"strings"
)

// The universal sentinel for "skip this optional field".
const skipSentinel = "no"

// IsSkip reports whether the input is the skip sentinel.
func IsSkip(s string) bool {
	return strings.EqualFold(strings.TrimSpace(s), skipSentinel)
}

var nonPhoneChars = regexp.MustCompile(`[^\d+]`)

// NormalizeWhatsApp canonicalizes a WhatsApp number to international form with
// Argentina mobile-prefix handling. Returns ("", false) when the input cannot
// be resolved. Rules, in order:
//   - strip everything but digits and '+', reject fewer than 7 chars
//   - "+54" followed by a 10-digit national number without the mobile "9"
//     gets it inserted; any other "+" input is taken as-is
//   - bare numbers drop a leading "0", then: full "549..." numbers get "+";
//     "54..." gets the mobile "9" inserted; 10-digit national numbers get
//     "+549"; 8-digit local numbers get the +549370 area prefix
func NormalizeWhatsApp(input string) (string, bool) {
	cleaned := nonPhoneChars.ReplaceAllString(input, "")
	if len(cleaned) < 7 {
		return "", false
	}
	if strings.HasPrefix(cleaned, "+") {
		if strings.HasPrefix(cleaned, "+54") && len(cleaned) == 13 && !strings.HasPrefix(cleaned, "+549") {
			return "+549" + cleaned[3:], true
		}
		return cleaned, true
	}
	if strings.HasPrefix(cleaned, "0") && len(cleaned) > 1 {
		cleaned = cleaned[1:]
	}
	switch {
	case strings.HasPrefix(cleaned, "549") && len(cleaned) >= 12:
		return "+" + cleaned, true
	case strings.HasPrefix(cleaned, "54") && len(cleaned) >= 9:
		return "+549" + cleaned[2:], true
	case len(cleaned) == 10:
		return "+549" + cleaned, true
	case len(cleaned) == 8:
		return "+549370" + cleaned, true
	}
	return "", false
}

var emailShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidEmail checks the simple local@domain.tld shape.
func ValidEmail(s string) bool {
	return emailShape.MatchString(s)
}

// ParseDuration parses a strictly positive day count.
func ParseDuration(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// ProductDetails is the parsed form of the comma-separated shortcut input:
// "name, duration, username, password, notes?".
type ProductDetails struct {
	Name         string
	DurationDays int
	Username     string
	Password     string
	Notes        string
}

// ParseProductDetails splits and validates the positional comma list. At
// least the first four fields are required; the fifth (notes) is optional and
// anything beyond it is ignored.
func ParseProductDetails(input string) (ProductDetails, bool) {
	parts := strings.Split(input, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 4 {
		return ProductDetails{}, false
	}
	duration, ok := ParseDuration(parts[1])
	if !ok {
		return ProductDetails{}, false
	}
	d := ProductDetails{
		Name:         parts[0],
		DurationDays: duration,
		Username:     parts[2],
		Password:     parts[3],
	}
	if len(parts) >= 5 {
		d.Notes = parts[4]
	}
	return d, true
}

// skipToEmpty maps the sentinel to the absent value, otherwise trims.
func skipToEmpty(s string) string {
	if IsSkip(s) {
		return ""
	}
	return strings.TrimSpace(s)
}
