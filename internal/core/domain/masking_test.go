package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskType_Valid(t *testing.T) {
	t.Parallel()
	valid := []MaskType{"", MaskRedact, MaskHash, MaskPartial, MaskNull}
	for _, mt := range valid {
		assert.True(t, mt.Valid(), "expected %q to be valid", mt)
	}

	invalid := []MaskType{"encrypt", "REDACT", "mask", "sha256"}
	for _, mt := range invalid {
		assert.False(t, mt.Valid(), "expected %q to be invalid", mt)
	}
}

func TestApplyMask_Redact(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "***", ApplyMask("Sundry Debtors", MaskRedact))
	assert.Equal(t, "***", ApplyMask(12345, MaskRedact))
	assert.Equal(t, "***", ApplyMask("", MaskRedact))
	assert.Nil(t, ApplyMask(nil, MaskRedact))
}

func TestApplyMask_Hash(t *testing.T) {
	t.Parallel()
	result := ApplyMask("Acme Traders", MaskHash)
	s, ok := result.(string)
	assert.True(t, ok)
	assert.Len(t, s, 64, "hash should be 64 hex chars (full SHA256)")

	// Deterministic: same input -> same hash.
	assert.Equal(t, result, ApplyMask("Acme Traders", MaskHash))

	// Different input -> different hash.
	assert.NotEqual(t, result, ApplyMask("Other Traders", MaskHash))

	assert.Nil(t, ApplyMask(nil, MaskHash))
}

func TestApplyMask_Hash_NumericTypes(t *testing.T) {
	t.Parallel()
	// int and string of same repr hash identically because both go through
	// fmt.Sprintf("%v", ...).
	assert.Equal(t, ApplyMask(12345, MaskHash), ApplyMask("12345", MaskHash))
}

func TestApplyMask_Partial(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "******7890", ApplyMask("1234567890", MaskPartial))
	assert.Equal(t, "***abc", ApplyMask("abc", MaskPartial), "short values keep nothing hidden worth revealing")
	assert.Nil(t, ApplyMask(nil, MaskPartial))
}

func TestApplyMask_Partial_MultiByte(t *testing.T) {
	t.Parallel()
	masked, ok := ApplyMask("श्री गणेश ट्रेडर्स", MaskPartial).(string)
	assert.True(t, ok)
	runes := []rune("श्री गणेश ट्रेडर्स")
	want := []rune(masked)
	assert.Len(t, want, len(runes), "masking is rune-aligned")
	assert.Equal(t, runes[len(runes)-4:], want[len(want)-4:])
}

func TestApplyMask_Null(t *testing.T) {
	t.Parallel()
	assert.Nil(t, ApplyMask("anything", MaskNull))
	assert.Nil(t, ApplyMask(42, MaskNull))
}

func TestApplyMask_NoMask(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "unchanged", ApplyMask("unchanged", ""))
}

func TestMaskRows(t *testing.T) {
	t.Parallel()
	rows := []map[string]any{
		{"party_name": "Acme Traders", "amount": 1500.0},
		{"party_name": "Beta Supplies", "amount": 300.0},
	}
	MaskRows(rows, map[string]MaskType{"party_name": MaskRedact})

	assert.Equal(t, "***", rows[0]["party_name"])
	assert.Equal(t, "***", rows[1]["party_name"])
	assert.Equal(t, 1500.0, rows[0]["amount"], "unmasked columns untouched")
}

func TestMaskRows_NoMasks(t *testing.T) {
	t.Parallel()
	rows := []map[string]any{{"party_name": "Acme Traders"}}
	MaskRows(rows, nil)
	assert.Equal(t, "Acme Traders", rows[0]["party_name"])
}

func TestMaskRows_MissingColumn(t *testing.T) {
	t.Parallel()
	rows := []map[string]any{{"amount": 1500.0}}
	MaskRows(rows, map[string]MaskType{"party_name": MaskRedact})
	assert.Equal(t, 1500.0, rows[0]["amount"])
	_, present := rows[0]["party_name"]
	assert.False(t, present, "masking never adds columns")
}
