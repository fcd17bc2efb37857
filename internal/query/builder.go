package query

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tallydash/tallygate/internal/core/domain"
)

var identRe = regexp.MustCompile(`^[A-Za-z_]\w*$`)

// SelectBuilder assembles a filtered Tally query from structured parts.
// Values are never interpolated: every filter value becomes a ? placeholder
// bound at execution. Identifiers (table, field names) are interpolated only
// after passing the table allow-list and identifier shape checks, so the
// emitted text cannot smuggle attacker-controlled fragments.
type SelectBuilder struct {
	table   string
	fields  []string
	filters []filter
	orderBy string
	desc    bool
	limit   int
	err     error
}

type filter struct {
	field string
	value any
}

// NewSelect starts a builder over an allow-listed table.
func NewSelect(table string) *SelectBuilder {
	b := &SelectBuilder{table: table}
	if !domain.AllowedTables[table] {
		b.err = fmt.Errorf("table %q is not allow-listed", table)
	}
	return b
}

// Fields adds projected columns, named without the $ sigil.
func (b *SelectBuilder) Fields(names ...string) *SelectBuilder {
	for _, name := range names {
		if b.err == nil && !identRe.MatchString(name) {
			b.err = fmt.Errorf("invalid field name %q", name)
			return b
		}
		b.fields = append(b.fields, name)
	}
	return b
}

// Where adds an equality filter bound as a placeholder.
func (b *SelectBuilder) Where(field string, value any) *SelectBuilder {
	if b.err == nil && !identRe.MatchString(field) {
		b.err = fmt.Errorf("invalid filter field %q", field)
		return b
	}
	b.filters = append(b.filters, filter{field: field, value: value})
	return b
}

// OrderBy sets the sort key.
func (b *SelectBuilder) OrderBy(field string, desc bool) *SelectBuilder {
	if b.err == nil && !identRe.MatchString(field) {
		b.err = fmt.Errorf("invalid order field %q", field)
		return b
	}
	b.orderBy = field
	b.desc = desc
	return b
}

// Limit caps the row count. Non-positive values mean no limit.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = n
	return b
}

// Build emits the query text and the ordered placeholder values.
func (b *SelectBuilder) Build() (string, []any, error) {
	if b.err != nil {
		return "", nil, b.err
	}
	if len(b.fields) == 0 {
		return "", nil, fmt.Errorf("no fields selected")
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	for i, f := range b.fields {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("$" + f)
	}
	sb.WriteString(" FROM " + b.table)

	var args []any
	for i, f := range b.filters {
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString("$" + f.field + " = ?")
		args = append(args, f.value)
	}

	if b.orderBy != "" {
		sb.WriteString(" ORDER BY $" + b.orderBy)
		if b.desc {
			sb.WriteString(" DESC")
		}
	}
	if b.limit > 0 {
		fmt.Fprintf(&sb, " LIMIT %d", b.limit)
	}

	return sb.String(), args, nil
}
