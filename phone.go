package auth

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// phonePattern is "+", a nonzero leading digit and 1 to 14 more digits
var phonePattern = regexp.MustCompile(`^\+[1-9]\d{1,14}$`)

// NormalizePhone strips every character except digits and a leading "+".
// A "+" anywhere but the first position is dropped.
func NormalizePhone(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(s))

	if strings.HasPrefix(s, "+") {
		b.WriteByte('+')
	}

	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if out == "+" {
		return ""
	}
	return out
}

// IsValidPhone reports whether phone is an E.164-like number
func IsValidPhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// PhoneRegion resolves the ISO region of an international number. It is
// informational only and returns an empty string when unknown.
func PhoneRegion(phone string) string {
	if !IsValidPhone(phone) {
		return ""
	}

	num, err := phonenumbers.Parse(phone, "")
	if err != nil {
		return ""
	}

	region := phonenumbers.GetRegionCodeForNumber(num)
	if region == "ZZ" {
		return ""
	}
	return region
}
