package fill

import (
	"regexp"
	"strings"
	"unicode"
)

// Value shapes per canonical field. A form field whose current value
// already matches the shape for its key is treated as filled and left
// untouched, so a pre-populated document survives a second pass unchanged.
var shapePatterns = map[string]*regexp.Regexp{
	"email": regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`),
	"phone": regexp.MustCompile(`\(?\d{3}\)?[\s.\-]?\d{3}[\s.\-]?\d{4}`),
	"ssn":   regexp.MustCompile(`^\d{2,3}-?\d{2}-?\d{4}$`),
	"ein":   regexp.MustCompile(`^\d{2}-?\d{7}$`),
	"dob":   regexp.MustCompile(`^\d{1,2}[/\-]\d{1,2}[/\-]\d{2,4}$`),
	"name":  regexp.MustCompile(`^[A-Za-z][A-Za-z'.,\- ]+$`),
}

// AlreadyFilled reports whether value is a plausible existing value for
// the canonical field key. Blank values never count. Keys without a known
// shape count as filled whenever the value is non-blank.
func AlreadyFilled(key, value string) bool {
	v := strings.TrimSpace(value)
	if v == "" {
		return false
	}

	if key == "address" {
		// Addresses are too free-form for a single pattern: require some
		// length plus both digits and letters.
		return len(v) >= 10 && containsFunc(v, unicode.IsDigit) && containsFunc(v, unicode.IsLetter)
	}

	if re, ok := shapePatterns[key]; ok {
		return re.MatchString(v)
	}
	return true
}

func containsFunc(s string, f func(rune) bool) bool {
	return strings.IndexFunc(s, f) >= 0
}
