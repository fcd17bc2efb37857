// Package policy holds operator-controlled configuration loaded from a YAML
// file: business descriptions for the allow-listed Tally tables and their
// result columns, plus column-level masking directives.
package policy

import (
	"fmt"

	"github.com/tallydash/tallygate/internal/core/domain"
	"gopkg.in/yaml.v3"
)

// Policy is the root of the policy file.
type Policy struct {
	Context ContextConfig `yaml:"context"`
}

// ContextConfig maps Tally table names to business descriptions that are
// merged into MCP tool responses.
type ContextConfig struct {
	Tables map[string]TableContext `yaml:"tables"`
}

// TableContext describes a table and its result columns.
type TableContext struct {
	Description string                   `yaml:"description"`
	Columns     map[string]ColumnContext `yaml:"columns"`
}

// ColumnContext holds a column's business description and optional mask.
// Columns are named as they appear in results (report aliases), not as
// $field tokens.
type ColumnContext struct {
	Description string          `yaml:"description"`
	Mask        domain.MaskType `yaml:"mask,omitempty"`
}

// UnmarshalYAML supports both the struct format and a plain-string shorthand:
//
//	columns:
//	  party_name: "Counterparty ledger name"      # shorthand
//	  outstanding_amount:                          # full form
//	    description: "Receivable balance"
//	    mask: "partial"
func (cc *ColumnContext) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.ScalarNode {
		cc.Description = value.Value
		return nil
	}
	// Alias type avoids recursing back into this method.
	type alias ColumnContext
	var a alias
	if err := value.Decode(&a); err != nil {
		return fmt.Errorf("decoding column context: %w", err)
	}
	*cc = ColumnContext(a)
	return nil
}

// Masks collects every column mask in the policy, keyed by column name.
func (p *Policy) Masks() map[string]domain.MaskType {
	masks := make(map[string]domain.MaskType)
	for _, tc := range p.Context.Tables {
		for col, cc := range tc.Columns {
			if cc.Mask != "" {
				masks[col] = cc.Mask
			}
		}
	}
	return masks
}

func validate(pol *Policy) error {
	for table, tc := range pol.Context.Tables {
		if !domain.AllowedTables[table] {
			return fmt.Errorf("context.tables: %q is not an allow-listed Tally table", table)
		}
		for col, cc := range tc.Columns {
			if col == "" {
				return fmt.Errorf("context.tables[%q].columns contains an empty key", table)
			}
			if !cc.Mask.Valid() {
				return fmt.Errorf("context.tables[%q].columns[%q].mask: invalid value %q (allowed: redact, hash, partial, null)", table, col, cc.Mask)
			}
		}
	}
	return nil
}
