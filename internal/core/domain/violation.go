package domain

import (
	"errors"
	"fmt"
)

// ViolationKind tags the rule that rejected a query.
type ViolationKind string

const (
	KindMalformedInput     ViolationKind = "malformed-input"
	KindDangerousKeyword   ViolationKind = "dangerous-keyword"
	KindInjectionPattern   ViolationKind = "injection-pattern"
	KindNotReadOnly        ViolationKind = "not-read-only"
	KindUnknownTable       ViolationKind = "unknown-table"
	KindMissingFieldTokens ViolationKind = "missing-field-tokens"
	KindFunctionNotAllowed ViolationKind = "function-not-whitelisted"
	KindTooComplex         ViolationKind = "too-complex"
)

// Violation is the first rule a query tripped. Evaluation short-circuits,
// so a query carries at most one. It is a normal rejection, not a fault:
// callers get it through the error return and must not execute the query.
type Violation struct {
	Kind   ViolationKind
	Detail string
}

func (v *Violation) Error() string {
	if v.Detail == "" {
		return string(v.Kind)
	}
	return fmt.Sprintf("%s: %s", v.Kind, v.Detail)
}

// KindOf extracts the violation kind from an error returned by a validator.
// Returns "" for nil or non-violation errors.
func KindOf(err error) ViolationKind {
	var v *Violation
	if errors.As(err, &v) {
		return v.Kind
	}
	return ""
}
