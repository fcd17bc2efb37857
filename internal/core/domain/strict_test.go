package domain

import (
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStrict(strictMode bool) *StrictValidator {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStrictValidator(NewGuard(logger), strictMode, logger)
}

func TestStrictValidator_AllowedFunctions(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	queries := []string{
		"SELECT SUM($Amount) AS total FROM Voucher",
		"SELECT COUNT($Name) AS n FROM Ledger",
		"SELECT MAX($ClosingBalance), MIN($ClosingBalance) FROM Ledger",
		"SELECT UPPER($Name) FROM Ledger",
		"SELECT sum($Amount) FROM Voucher",
		"SELECT YEAR($Date), MONTH($Date) FROM Voucher GROUP BY YEAR($Date), MONTH($Date)",
	}
	for _, q := range queries {
		assert.NoError(t, v.Validate(q), "query: %s", q)
	}
}

func TestStrictValidator_RejectsUnknownFunction(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	err := v.Validate("SELECT REPLACE($Name, 'a', 'b') FROM Ledger")
	require.Error(t, err)
	assert.Equal(t, KindFunctionNotAllowed, KindOf(err))
}

func TestStrictValidator_ClauseKeywordsAreNotFunctions(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	// IN before a parenthesis is a clause, not a call.
	q := "SELECT $Name FROM Ledger WHERE $Parent IN ('Sundry Debtors', 'Sundry Creditors')"
	assert.NoError(t, v.Validate(q))
}

func TestStrictValidator_TooManyJoins(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	q := "SELECT $Name FROM Ledger JOIN Voucher JOIN VoucherItem JOIN StockItem JOIN Unit"
	err := v.Validate(q)
	require.Error(t, err)
	assert.Equal(t, KindTooComplex, KindOf(err))
}

func TestStrictValidator_QueryTooLong(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	var b strings.Builder
	b.WriteString("SELECT $F0")
	for i := 1; b.Len() < 2100; i++ {
		b.WriteString(", $LongFieldName")
	}
	b.WriteString(" FROM Ledger")

	err := v.Validate(b.String())
	require.Error(t, err)
	assert.Equal(t, KindTooComplex, KindOf(err))
}

func TestStrictValidator_GuardViolationsPassThrough(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	err := v.Validate("DROP TABLE Ledger")
	require.Error(t, err)
	assert.Equal(t, KindDangerousKeyword, KindOf(err))
}

func TestStrictValidator_DisabledSkipsStrictRules(t *testing.T) {
	t.Parallel()
	v := testStrict(false)

	// Unknown function allowed, heuristic rules still enforced.
	assert.NoError(t, v.Validate("SELECT REPLACE($Name, 'a', 'b') FROM Ledger"))

	err := v.Validate("DELETE FROM Ledger")
	require.Error(t, err)
	assert.Equal(t, KindDangerousKeyword, KindOf(err))
}

func TestStrictValidator_ValidateQueryReasons(t *testing.T) {
	t.Parallel()
	v := testStrict(true)

	ok, reason := v.ValidateQuery("SELECT $Name FROM Ledger")
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = v.ValidateQuery("DROP TABLE Ledger")
	assert.False(t, ok)
	assert.Equal(t, "query failed basic security validation", reason)

	ok, reason = v.ValidateQuery("SELECT REPLACE($Name, 'a', 'b') FROM Ledger")
	assert.False(t, ok)
	assert.Equal(t, "query contains non-whitelisted functions", reason)

	ok, reason = v.ValidateQuery("SELECT $Name FROM Ledger JOIN Voucher JOIN VoucherItem JOIN StockItem JOIN Unit")
	assert.False(t, ok)
	assert.Equal(t, "query is too complex", reason)
}
