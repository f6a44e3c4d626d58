package vat

import (
	"fmt"
	"regexp"
	"strings"
)

// euCountries is the fixed list of country codes accepted by VIES:
// the 27 member states (Greece uses EL, not GR) plus XI for Northern Ireland.
var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true,
	"CZ": true, "DK": true, "EE": true, "FI": true, "FR": true,
	"DE": true, "EL": true, "HU": true, "IE": true, "IT": true,
	"LV": true, "LT": true, "LU": true, "MT": true, "NL": true,
	"PL": true, "PT": true, "RO": true, "SK": true, "SI": true,
	"ES": true, "SE": true, "XI": true,
}

var nonAlnum = regexp.MustCompile(`[^A-Z0-9]`)

// Query is a normalized VAT identifier ready for a VIES lookup.
type Query struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

// ErrInvalidInput is returned by Parse for strings that cannot be mapped to
// a recognized EU country prefix plus number body.
type ErrInvalidInput struct {
	Raw    string
	Reason string
}

func (e *ErrInvalidInput) Error() string {
	return fmt.Sprintf("invalid VAT number %q: %s", e.Raw, e.Reason)
}

// Clean uppercases the input and strips everything that is not a letter or
// digit (spaces, dots, hyphens, slashes).
func Clean(raw string) string {
	return nonAlnum.ReplaceAllString(strings.ToUpper(raw), "")
}

// IsEUCountry reports whether code is one of the 28 codes VIES recognizes.
func IsEUCountry(code string) bool {
	return euCountries[strings.ToUpper(code)]
}

// Countries returns the recognized country codes. The slice is a copy.
func Countries() []string {
	codes := make([]string, 0, len(euCountries))
	for code := range euCountries {
		codes = append(codes, code)
	}
	return codes
}

// Parse normalizes a raw VAT string into a Query. The first two characters
// of the cleaned string must be a recognized EU country code; the remainder
// becomes the number body. Inputs without a recognized prefix fail, they are
// never guessed into a default country.
func Parse(raw string) (Query, error) {
	cleaned := Clean(raw)

	if len(cleaned) < 3 {
		return Query{}, &ErrInvalidInput{Raw: raw, Reason: "too short"}
	}

	prefix := cleaned[:2]
	if !euCountries[prefix] {
		return Query{}, &ErrInvalidInput{Raw: raw, Reason: fmt.Sprintf("unrecognized country prefix %q", prefix)}
	}

	number := cleaned[2:]
	if number == "" {
		return Query{}, &ErrInvalidInput{Raw: raw, Reason: "missing number after country code"}
	}

	return Query{CountryCode: prefix, Number: number}, nil
}

// Format renders a Query in the canonical prefixed form, e.g. IT05159640266.
func (q Query) Format() string {
	return q.CountryCode + q.Number
}
