// Package phone canonicalises Kenyan mobile numbers to the 254XXXXXXXXX form
// used as the user identity and SMS recipient.
package phone

import (
	"regexp"
	"strings"
)

const CountryCode = "254"

var (
	separators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "")
	nonDigits  = regexp.MustCompile(`\D`)
	canonical  = regexp.MustCompile(`^254\d{9,10}$`)
)

// Normalize returns the canonical, digits-only form of a phone number.
//
//	"0712 345-678"  -> "254712345678"
//	"+254712345678" -> "254712345678"
//	"712345678"     -> "254712345678"
func Normalize(raw string) string {
	p := separators.Replace(strings.TrimSpace(raw))
	p = strings.TrimPrefix(p, "+")
	if strings.HasPrefix(p, "0") {
		p = CountryCode + p[1:]
	}
	if !strings.HasPrefix(p, CountryCode) {
		p = CountryCode + p
	}
	return nonDigits.ReplaceAllString(p, "")
}

// Valid reports whether p is already in canonical form.
func Valid(p string) bool {
	return canonical.MatchString(p)
}
