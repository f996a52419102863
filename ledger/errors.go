package ledger

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a validation failure per the taxonomy in §7.
type ErrorKind string

const (
	KindStructural    ErrorKind = "structural"
	KindIntegrity     ErrorKind = "integrity"
	KindAuthorization ErrorKind = "authorization"
	KindDomain        ErrorKind = "domain"
)

// FieldError is one accumulated validation failure.
type FieldError struct {
	Kind    ErrorKind
	Message string
}

func (f FieldError) Error() string { return fmt.Sprintf("%s: %s", f.Kind, f.Message) }

// ValidationError aggregates every FieldError found while validating a
// single entry or a full chain. Validation never stops at the first
// failure (§7 propagation policy): it always returns the complete list.
type ValidationError struct {
	Errors []FieldError
}

func (v *ValidationError) add(kind ErrorKind, format string, args ...interface{}) {
	v.Errors = append(v.Errors, FieldError{Kind: kind, Message: fmt.Sprintf(format, args...)})
}

func (v *ValidationError) ok() bool { return v == nil || len(v.Errors) == 0 }

func (v *ValidationError) Error() string {
	if v == nil || len(v.Errors) == 0 {
		return "no validation errors"
	}
	parts := make([]string, len(v.Errors))
	for i, e := range v.Errors {
		parts[i] = e.Error()
	}
	return strings.Join(parts, "; ")
}

// ChainError tags a per-entry ValidationError with the entry's ordinal
// index and a truncated id, per §7's full-chain aggregation rule.
type ChainError struct {
	Index          int
	TruncatedID    string
	ValidationErrs []FieldError
}

func truncateID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}
