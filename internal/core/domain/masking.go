package domain

import (
	"crypto/sha256"
	"fmt"
)

// MaskType is a column masking strategy applied to result rows. Ledger and
// voucher data carries party names, references, and balances that operators
// may not want surfaced to every dashboard client.
type MaskType string

const (
	MaskRedact  MaskType = "redact"
	MaskHash    MaskType = "hash"
	MaskPartial MaskType = "partial"
	MaskNull    MaskType = "null"
)

// Valid reports whether m is a recognised strategy. The zero value ""
// means "no mask" and is valid.
func (m MaskType) Valid() bool {
	switch m {
	case MaskRedact, MaskHash, MaskPartial, MaskNull, "":
		return true
	}
	return false
}

// ApplyMask transforms value according to the mask type. Masked values may
// change type (hash and partial stringify). MaskNull returns nil, which is
// indistinguishable from an ODBC NULL.
func ApplyMask(value any, mask MaskType) any {
	if value == nil {
		return nil
	}
	switch mask {
	case MaskRedact:
		return "***"
	case MaskHash:
		sum := sha256.Sum256([]byte(fmt.Sprintf("%v", value)))
		return fmt.Sprintf("%x", sum)
	case MaskPartial:
		return maskPartial(value)
	case MaskNull:
		return nil
	default:
		return value
	}
}

// maskPartial reveals only the last 4 characters. Safe for multi-byte
// strings (party names in Indian books are frequently non-ASCII).
func maskPartial(value any) string {
	runes := []rune(fmt.Sprintf("%v", value))
	if len(runes) <= 4 {
		return "***" + string(runes)
	}
	masked := make([]rune, len(runes))
	for i := range masked {
		if i < len(runes)-4 {
			masked[i] = '*'
		} else {
			masked[i] = runes[i]
		}
	}
	return string(masked)
}

// MaskRows applies column masks to result rows in place. Keys are result
// column names, i.e. the aliases a report projects, not the $field names.
func MaskRows(rows []map[string]any, masks map[string]MaskType) {
	if len(masks) == 0 {
		return
	}
	for _, row := range rows {
		for col, mask := range masks {
			if val, ok := row[col]; ok {
				row[col] = ApplyMask(val, mask)
			}
		}
	}
}
