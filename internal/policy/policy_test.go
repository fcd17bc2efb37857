package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallydash/tallygate/internal/core/domain"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// --- LoadFromFile tests ---

func TestLoadFromFile(t *testing.T) {
	t.Parallel()
	yaml := `
context:
  tables:
    Ledger:
      description: "Chart of accounts with running balances"
      columns:
        ledger_name: "Account name as kept in the books"
        closing_balance: "Balance at the end of the book period"
    Voucher:
      description: "Journal entries of every type"
`
	path := writeTempFile(t, yaml)

	pol, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Len(t, pol.Context.Tables, 2)

	ledger := pol.Context.Tables["Ledger"]
	assert.Equal(t, "Chart of accounts with running balances", ledger.Description)
	assert.Equal(t, "Account name as kept in the books", ledger.Columns["ledger_name"].Description)
	assert.Empty(t, ledger.Columns["ledger_name"].Mask)
}

func TestLoadFromFile_WithMasks(t *testing.T) {
	t.Parallel()
	yaml := `
context:
  tables:
    Voucher:
      description: "Journal entries"
      columns:
        party_name:
          description: "Counterparty ledger"
          mask: "partial"
        reference:
          mask: "redact"
        narration:
          mask: "null"
        amount:
          description: "Signed voucher amount"
`
	path := writeTempFile(t, yaml)

	pol, err := LoadFromFile(path)
	require.NoError(t, err)

	voucher := pol.Context.Tables["Voucher"]
	assert.Equal(t, domain.MaskPartial, voucher.Columns["party_name"].Mask)
	assert.Equal(t, "Counterparty ledger", voucher.Columns["party_name"].Description)
	assert.Equal(t, domain.MaskRedact, voucher.Columns["reference"].Mask)
	assert.Equal(t, domain.MaskNull, voucher.Columns["narration"].Mask)
	assert.Empty(t, voucher.Columns["amount"].Mask)
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	t.Parallel()
	_, err := LoadFromFile("/nonexistent/policy.yaml")
	require.Error(t, err)
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	t.Parallel()
	path := writeTempFile(t, "context: [not: valid")
	_, err := LoadFromFile(path)
	require.Error(t, err)
}

func TestLoadFromFile_UnknownTable(t *testing.T) {
	t.Parallel()
	yaml := `
context:
  tables:
    Customers:
      description: "Not a Tally table"
`
	path := writeTempFile(t, yaml)
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Customers")
}

func TestLoadFromFile_InvalidMask(t *testing.T) {
	t.Parallel()
	yaml := `
context:
  tables:
    Ledger:
      columns:
        ledger_name:
          mask: "encrypt"
`
	path := writeTempFile(t, yaml)
	_, err := LoadFromFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mask")
}

// --- Masks tests ---

func TestPolicy_Masks(t *testing.T) {
	t.Parallel()
	pol := &Policy{
		Context: ContextConfig{
			Tables: map[string]TableContext{
				"Voucher": {
					Columns: map[string]ColumnContext{
						"party_name": {Mask: domain.MaskPartial},
						"amount":     {Description: "unmasked"},
					},
				},
				"Ledger": {
					Columns: map[string]ColumnContext{
						"ledger_name": {Mask: domain.MaskHash},
					},
				},
			},
		},
	}

	masks := pol.Masks()
	assert.Len(t, masks, 2)
	assert.Equal(t, domain.MaskPartial, masks["party_name"])
	assert.Equal(t, domain.MaskHash, masks["ledger_name"])
	_, present := masks["amount"]
	assert.False(t, present)
}

// --- Store tests ---

func TestStore_GetNeverNil(t *testing.T) {
	t.Parallel()
	s := NewStore(nil)
	require.NotNil(t, s.Get())
	assert.Empty(t, s.Get().Context.Tables)
}

func TestStore_Replace(t *testing.T) {
	t.Parallel()
	s := NewStore(nil)

	pol := &Policy{Context: ContextConfig{Tables: map[string]TableContext{
		"Ledger": {Description: "accounts"},
	}}}
	s.Replace(pol)
	assert.Equal(t, "accounts", s.Get().Context.Tables["Ledger"].Description)

	s.Replace(nil)
	require.NotNil(t, s.Get())
	assert.Empty(t, s.Get().Context.Tables)
}
