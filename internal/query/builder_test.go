package query

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tallydash/tallygate/internal/core/domain"
)

func TestSelectBuilder_Basic(t *testing.T) {
	t.Parallel()
	sql, args, err := NewSelect("Ledger").
		Fields("Name", "ClosingBalance").
		Build()
	require.NoError(t, err)

	assert.Equal(t, "SELECT $Name, $ClosingBalance FROM Ledger", sql)
	assert.Empty(t, args)
}

func TestSelectBuilder_FullQuery(t *testing.T) {
	t.Parallel()
	sql, args, err := NewSelect("Voucher").
		Fields("Date", "Amount").
		Where("VoucherType", "Sales").
		Where("PartyLedgerName", "Acme").
		OrderBy("Date", true).
		Limit(50).
		Build()
	require.NoError(t, err)

	assert.Equal(t,
		"SELECT $Date, $Amount FROM Voucher WHERE $VoucherType = ? AND $PartyLedgerName = ? ORDER BY $Date DESC LIMIT 50",
		sql)
	assert.Equal(t, []any{"Sales", "Acme"}, args)
}

func TestSelectBuilder_OutputPassesValidation(t *testing.T) {
	t.Parallel()
	gate := domain.NewGate(true, slog.New(slog.NewTextHandler(io.Discard, nil)))

	sql, _, err := NewSelect("StockItem").
		Fields("Name", "ClosingBalance", "BaseUnits").
		Where("Parent", "Raw Materials").
		OrderBy("Name", false).
		Build()
	require.NoError(t, err)
	assert.NoError(t, gate.Validate(sql))
}

func TestSelectBuilder_RejectsUnknownTable(t *testing.T) {
	t.Parallel()
	_, _, err := NewSelect("Customers").Fields("Name").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not allow-listed")
}

func TestSelectBuilder_RejectsInvalidIdentifiers(t *testing.T) {
	t.Parallel()
	_, _, err := NewSelect("Ledger").Fields("Name; DROP").Build()
	require.Error(t, err)

	_, _, err = NewSelect("Ledger").Fields("Name").Where("x = 1 OR", "v").Build()
	require.Error(t, err)

	_, _, err = NewSelect("Ledger").Fields("Name").OrderBy("Name DESC; --", false).Build()
	require.Error(t, err)
}

func TestSelectBuilder_RequiresFields(t *testing.T) {
	t.Parallel()
	_, _, err := NewSelect("Ledger").Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no fields")
}

func TestSelectBuilder_ValuesNeverReachQueryText(t *testing.T) {
	t.Parallel()
	sql, args, err := NewSelect("Ledger").
		Fields("Name").
		Where("Parent", "x' OR '1'='1").
		Build()
	require.NoError(t, err)

	assert.NotContains(t, sql, "OR '1'='1")
	assert.Equal(t, []any{"x' OR '1'='1"}, args)
}
