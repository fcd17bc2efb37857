package domain

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// allowedFunctions is the read-only aggregate/scalar set a strict-mode query
// may call. Anything else is rejected by default.
var allowedFunctions = map[string]bool{
	"SUM": true, "COUNT": true, "AVG": true, "MAX": true, "MIN": true,
	"UPPER": true, "LOWER": true, "LEN": true, "SUBSTRING": true,
	"CAST": true, "CONVERT": true, "YEAR": true, "MONTH": true, "DAY": true,
}

// Complexity ceilings. Each is an independent hard limit, not a weighted
// score; they also bound worst-case scan cost on attacker-supplied input.
const (
	maxSubqueries  = 2
	maxJoins       = 3
	maxQueryLength = 2000
)

var (
	funcCallRe = regexp.MustCompile(`(\w+)\s*\(`)
	subqueryRe = regexp.MustCompile(`(?i)\(\s*SELECT\b`)
	joinRe     = regexp.MustCompile(`(?i)\bJOIN\b`)
)

// clauseKeywords are identifiers that legitimately precede a parenthesis
// without being function calls (ClosingBalance IN ('a', 'b')).
var clauseKeywords = map[string]bool{
	"IN": true, "AND": true, "OR": true, "NOT": true,
}

// StrictValidator layers two configurable rules on top of the heuristic
// Guard: a function allow-list and complexity ceilings. Both apply only in
// strict mode (the default).
type StrictValidator struct {
	guard  *Guard
	strict bool
	logger *slog.Logger
}

func NewStrictValidator(guard *Guard, strictMode bool, logger *slog.Logger) *StrictValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StrictValidator{guard: guard, strict: strictMode, logger: logger}
}

// ValidateQuery runs the full rule set and returns pass/fail with a
// human-readable explanation on failure. The explanation distinguishes a
// basic-rule failure from the two strict-mode reasons; it names no keyword
// or pattern, so it is safe to show to an operator log but is still kept
// out of end-user responses by the service layer.
func (v *StrictValidator) ValidateQuery(query string) (bool, string) {
	if err := v.guard.Validate(query); err != nil {
		return false, "query failed basic security validation"
	}

	if v.strict {
		if fn, ok := v.checkFunctionAllowList(query); !ok {
			v.logger.Warn("query rejected",
				slog.String("violation", string(KindFunctionNotAllowed)),
				slog.String("function", fn),
			)
			return false, "query contains non-whitelisted functions"
		}
		if reason, ok := v.checkComplexity(query); !ok {
			v.logger.Warn("query rejected",
				slog.String("violation", string(KindTooComplex)),
				slog.String("detail", reason),
			)
			return false, "query is too complex"
		}
	}

	return true, ""
}

// Validate adapts ValidateQuery to the error-returning validator contract.
func (v *StrictValidator) Validate(query string) error {
	if err := v.guard.Validate(query); err != nil {
		return err
	}
	if !v.strict {
		return nil
	}
	if fn, ok := v.checkFunctionAllowList(query); !ok {
		return &Violation{Kind: KindFunctionNotAllowed, Detail: fmt.Sprintf("function %q", fn)}
	}
	if reason, ok := v.checkComplexity(query); !ok {
		return &Violation{Kind: KindTooComplex, Detail: reason}
	}
	return nil
}

// checkFunctionAllowList extracts every identifier immediately followed by a
// parenthesis and requires it to be allow-listed. Returns the first offender.
func (v *StrictValidator) checkFunctionAllowList(query string) (string, bool) {
	for _, m := range funcCallRe.FindAllStringSubmatch(query, -1) {
		name := strings.ToUpper(m[1])
		if clauseKeywords[name] {
			continue
		}
		if !allowedFunctions[name] {
			return m[1], false
		}
	}
	return "", true
}

func (v *StrictValidator) checkComplexity(query string) (string, bool) {
	if n := len(subqueryRe.FindAllStringIndex(query, -1)); n > maxSubqueries {
		return fmt.Sprintf("%d subqueries (max %d)", n, maxSubqueries), false
	}
	if n := len(joinRe.FindAllStringIndex(query, -1)); n > maxJoins {
		return fmt.Sprintf("%d joins (max %d)", n, maxJoins), false
	}
	if len(query) > maxQueryLength {
		return fmt.Sprintf("%d chars (max %d)", len(query), maxQueryLength), false
	}
	return "", true
}
