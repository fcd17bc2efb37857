package domain

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// dangerousKeywords are matched as case-insensitive substrings anywhere in
// the query. Defense-in-depth for queries assembled by concatenation rather
// than parameter binding.
var dangerousKeywords = []string{
	"DROP", "DELETE", "INSERT", "UPDATE", "ALTER", "CREATE", "TRUNCATE",
	"EXEC", "EXECUTE", "SHUTDOWN", "GRANT", "REVOKE", "DENY",
	"SP_", "XP_", "OPENROWSET", "OPENDATASOURCE", "OPENQUERY",
	"--", "/*", "*/", "UNION", "HAVING",
}

// injectionPatterns flag shapes that slip past the keyword scan: statement
// terminators and quote-comment sequences, nested SELECT..FROM, tautologies,
// and script tokens. Heuristic, not a parser; false positives on legitimate
// text are an accepted tradeoff.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile("(?is)(`|;|['\"]\\s*(--|/\\*))"),
	regexp.MustCompile(`(?is)\bselect\b.*\bselect\b.*\bfrom\b`),
	regexp.MustCompile(`(?is)(\binsert\b.*\binto\b|\bdelete\b.*\bfrom\b|\bupdate\b.*\bset\b|\bdrop\b.*\btable\b)`),
	regexp.MustCompile(`(?i)\b(exec|execute|sp_\w+|xp_\w+)\b`),
	regexp.MustCompile(`(?i)\b(script|javascript|vbscript)\b`),
	regexp.MustCompile(`(?i)(\b1\s*=\s*1\b|\btrue\b|\bfalse\b)`),
}

// Tautologies are matched structurally (the same operand on both sides of a
// comparison or logical operator) rather than with a loose `or..=..or` scan,
// which would flag every query carrying two AND-joined filters. RE2 has no
// backreferences, so this is a scan-and-compare rather than a single regex.
var tautologyOperandRe = regexp.MustCompile(`(?i)(\S+)\s*(=|\bor\b|\band\b)\s*(\S+)`)

func hasTautology(query string) bool {
	for _, m := range tautologyOperandRe.FindAllStringSubmatch(query, -1) {
		if m[1] == "?" || m[3] == "?" {
			continue // identical placeholders (BETWEEN ? AND ?) are not a tautology
		}
		if strings.EqualFold(m[1], m[3]) {
			return true
		}
	}
	return false
}

// AllowedTables is the fixed set of Tally ODBC tables a query may select
// from. Matching is case-sensitive: Tally table names are exact.
var AllowedTables = map[string]bool{
	"Company":     true,
	"Ledger":      true,
	"Voucher":     true,
	"VoucherItem": true,
	"StockItem":   true,
	"StockGroup":  true,
	"Group":       true,
	"Currency":    true,
	"GoDown":      true,
	"Unit":        true,
}

var (
	fromTableRe  = regexp.MustCompile(`(?i)FROM\s+(\w+)`)
	fieldTokenRe = regexp.MustCompile(`\$\w+`)
)

// Guard is the heuristic query gate: a layered, ordered rule set evaluated
// before any query reaches the Tally ODBC channel. Each check is a pure
// string/regex scan; the first matching rule rejects. Stateless and safe for
// concurrent use.
type Guard struct {
	logger *slog.Logger
}

func NewGuard(logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{logger: logger}
}

// Validate decides whether query may be executed. A nil return means pass;
// otherwise the returned error is a *Violation carrying the first rule hit.
// Rejection is a normal outcome and is never raised as a panic.
func (g *Guard) Validate(query string) error {
	if strings.TrimSpace(query) == "" {
		return g.reject(&Violation{Kind: KindMalformedInput, Detail: "empty query"})
	}

	upper := strings.ToUpper(strings.TrimSpace(query))

	for _, kw := range dangerousKeywords {
		if strings.Contains(upper, kw) {
			return g.reject(&Violation{Kind: KindDangerousKeyword, Detail: fmt.Sprintf("keyword %q", kw)})
		}
	}

	for _, re := range injectionPatterns {
		if re.MatchString(query) {
			return g.reject(&Violation{Kind: KindInjectionPattern, Detail: fmt.Sprintf("pattern %q", re.String())})
		}
	}
	if hasTautology(query) {
		return g.reject(&Violation{Kind: KindInjectionPattern, Detail: "tautological predicate"})
	}

	// Read-only enforcement: the one statement shape the gate lets through.
	if !strings.HasPrefix(upper, "SELECT") {
		return g.reject(&Violation{Kind: KindNotReadOnly, Detail: "statement does not begin with SELECT"})
	}

	// Table allow-list. When no FROM clause is present the check is skipped:
	// some Tally dialect forms omit it.
	if m := fromTableRe.FindStringSubmatch(query); m != nil {
		if !AllowedTables[m[1]] {
			return g.reject(&Violation{Kind: KindUnknownTable, Detail: fmt.Sprintf("table %q", m[1])})
		}
	}

	// The Tally dialect marks every referenced column with a $ sigil; a query
	// with none is either malformed or probing some other surface.
	if !fieldTokenRe.MatchString(query) {
		return g.reject(&Violation{Kind: KindMissingFieldTokens, Detail: "no $Field tokens present"})
	}

	g.logger.Debug("query passed heuristic validation")
	return nil
}

func (g *Guard) reject(v *Violation) error {
	g.logger.Warn("query rejected",
		slog.String("violation", string(v.Kind)),
		slog.String("detail", v.Detail),
	)
	return v
}
