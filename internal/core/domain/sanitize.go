package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultMaxInputLength bounds sanitized free-text inputs (party names,
// narration fragments) that end up as bound parameters.
const DefaultMaxInputLength = 255

var (
	unsafeCharsRe = regexp.MustCompile(`[<>"';\\]`)
	whitespaceRe  = regexp.MustCompile(`\s+`)

	// Accepted date shapes: YYYY-MM-DD, DD/MM/YYYY, DD-MM-YYYY with rigid
	// digit groupings. Month and day ranges are encoded so that shapes like
	// month 13 are rejected; no further calendar validation happens here
	// (Feb 30 still passes).
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])-(0[1-9]|[12]\d|3[01])$`),
		regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])/(0[1-9]|1[0-2])/\d{4}$`),
		regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])-(0[1-9]|1[0-2])-\d{4}$`),
	}

	// Grouped thousands (western), grouped lakh/crore (Indian books use
	// 1,23,456.78), or ungrouped digits; optional 2-decimal suffix on each.
	// Negative sign is not accepted.
	amountRe = regexp.MustCompile(`^\d{1,3}(,\d{3})*(\.\d{2})?$|^\d{1,2}(,\d{2})*(,\d{3})(\.\d{2})?$|^\d+(\.\d{2})?$`)
)

// Sanitize prepares free-text input for use as a bound parameter: truncates
// to maxLen characters, strips the characters < > " ' ; \, collapses runs of
// whitespace, and trims. Truncation happens BEFORE stripping, so the result
// is the stripped form of the first maxLen characters. maxLen <= 0 selects
// DefaultMaxInputLength. Never fails; empty input yields "".
func Sanitize(input string, maxLen int) string {
	if input == "" {
		return ""
	}
	if maxLen <= 0 {
		maxLen = DefaultMaxInputLength
	}

	if runes := []rune(input); len(runes) > maxLen {
		input = string(runes[:maxLen])
	}

	input = unsafeCharsRe.ReplaceAllString(input, "")
	input = whitespaceRe.ReplaceAllString(input, " ")

	return strings.TrimSpace(input)
}

// ValidDateInput reports whether s matches an accepted date shape. Empty
// string is valid: it means "no filter supplied". Shape check only.
func ValidDateInput(s string) bool {
	if s == "" {
		return true
	}
	for _, re := range datePatterns {
		if re.MatchString(s) {
			return true
		}
	}
	return false
}

// ValidAmountInput reports whether s matches an accepted amount shape.
// Empty string is valid.
func ValidAmountInput(s string) bool {
	if s == "" {
		return true
	}
	return amountRe.MatchString(s)
}

// SafeParams returns a copy of params with every string value sanitized.
// Numeric values pass through untouched; anything else is stringified.
func SafeParams(params map[string]any) map[string]any {
	safe := make(map[string]any, len(params))
	for key, value := range params {
		switch v := value.(type) {
		case string:
			safe[key] = Sanitize(v, DefaultMaxInputLength)
		case int, int32, int64, float32, float64:
			safe[key] = v
		case nil:
			safe[key] = nil
		default:
			safe[key] = fmt.Sprintf("%v", v)
		}
	}
	return safe
}
