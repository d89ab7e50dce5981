package normalize

import "strings"

// Placeholder is rendered for an absent phone number.
const Placeholder = "—"

const frenchPrefix = "+33"

// ToDialable converts a raw phone string into a form a dialer accepts.
//
// Only digits survive, plus a leading '+' when the raw value starts with one.
// A leading 00 becomes '+'; a national French number (0 + 9 digits) and a bare
// 33 + 9 digits are expanded to +33. Anything else is returned cleaned.
// The function is idempotent.
func ToDialable(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(raw))
	if raw[0] == '+' {
		b.WriteByte('+')
	}
	for i := 0; i < len(raw); i++ {
		if c := raw[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
		}
	}
	cleaned := b.String()
	if cleaned == "+" {
		return ""
	}

	switch {
	case strings.HasPrefix(cleaned, "00"):
		if len(cleaned) == 2 {
			return ""
		}
		return "+" + cleaned[2:]
	case len(cleaned) == 10 && cleaned[0] == '0':
		return frenchPrefix + cleaned[1:]
	case len(cleaned) == 11 && strings.HasPrefix(cleaned, "33"):
		return "+" + cleaned
	default:
		return cleaned
	}
}

// ToDisplayFormat renders a phone number the way operators read it: the
// national 0X XX XX XX XX form when the number is French, the raw value
// otherwise.
func ToDisplayFormat(raw string) string {
	if strings.TrimSpace(raw) == "" {
		return Placeholder
	}

	national := ToDialable(raw)
	if strings.HasPrefix(national, frenchPrefix) && len(national) == 12 {
		national = "0" + national[3:]
	}
	if len(national) != 10 || national[0] != '0' || !allDigits(national) {
		return raw
	}

	var b strings.Builder
	b.Grow(14)
	for i := 0; i < len(national); i += 2 {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(national[i : i+2])
	}
	return b.String()
}

func allDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
