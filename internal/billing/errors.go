package billing

import (
	"errors"
	"fmt"
)

// Kind classifies a domain error for callers (and for the HTTP layer).
type Kind string

const (
	KindValidation        Kind = "validation_error"
	KindInvalidTransition Kind = "invalid_transition"
	KindNotFound          Kind = "not_found"
	KindConflict          Kind = "conflict"
)

// Error is a domain rule violation. Rule names the rule that was broken and is
// what errors.Is compares on.
type Error struct {
	Kind    Kind
	Rule    string
	Message string
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Rule
	}
	return e.Message
}

// Is matches any *Error carrying the same rule.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Rule == e.Rule
}

// Sentinel errors, one per rule.
var (
	ErrInvalidTransition = &Error{Kind: KindInvalidTransition, Rule: "invalid_transition", Message: "invalid status transition"}
	ErrEmptyItems        = &Error{Kind: KindValidation, Rule: "empty_items", Message: "document must contain at least one valid line item"}
	ErrInvalidLineItem   = &Error{Kind: KindValidation, Rule: "invalid_line_item", Message: "invalid line item"}
	ErrAlreadyConverted  = &Error{Kind: KindConflict, Rule: "already_converted", Message: "proforma has already been converted"}
	ErrNotEditable       = &Error{Kind: KindInvalidTransition, Rule: "not_editable", Message: "only draft documents can be modified"}
	ErrClientRequired    = &Error{Kind: KindValidation, Rule: "client_required", Message: "client is required"}
	ErrValidation        = &Error{Kind: KindValidation, Rule: "validation_error", Message: "validation failed"}
	ErrNotFound          = &Error{Kind: KindNotFound, Rule: "not_found", Message: "resource not found"}
	ErrConflict          = &Error{Kind: KindConflict, Rule: "conflict", Message: "conflict"}
)

// Errorf returns a copy of base with a formatted message; errors.Is(err, base) still holds.
func Errorf(base *Error, format string, args ...any) *Error {
	return &Error{
		Kind:    base.Kind,
		Rule:    base.Rule,
		Message: fmt.Sprintf(format, args...),
	}
}

// KindOf returns the Kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
