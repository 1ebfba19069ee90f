// Package apperror defines the error taxonomy shared by the billing services
// and the HTTP layer.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Kind sentinels. Match them with errors.Is.
var (
	ErrValidation = errors.New("validation_failed")
	ErrNotFound   = errors.New("not_found")
	ErrConflict   = errors.New("conflict")
	ErrNumbering  = errors.New("numbering_conflict")
)

// Error carries the kind of failure plus enough context to report it to a caller.
type Error struct {
	Kind    error             // one of the Err* sentinels
	Op      string            // operation that failed, e.g. "invoice.cancel"
	Message string            // human-readable reason
	Fields  map[string]string // per-field violations, validation only
	Err     error             // underlying cause, optional
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	b.WriteString(e.Kind.Error())
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if len(e.Fields) > 0 {
		keys := make([]string, 0, len(e.Fields))
		for k := range e.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString(" (")
		for i, k := range keys {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(k + "=" + e.Fields[k])
		}
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap exposes both the kind sentinel and the cause.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// Validation reports input rejected before any write.
func Validation(op string, fields map[string]string) error {
	return &Error{Kind: ErrValidation, Op: op, Fields: fields}
}

// Invalid reports a single invalid field.
func Invalid(op, field, code string) error {
	return Validation(op, map[string]string{field: code})
}

// NotFound reports a missing entity. Foreign-tenant rows are reported the same way.
func NotFound(op, entity string) error {
	return &Error{Kind: ErrNotFound, Op: op, Message: entity + " not found"}
}

// Conflict reports a state transition blocked by a lifecycle invariant.
func Conflict(op, reason string) error {
	return &Error{Kind: ErrConflict, Op: op, Message: reason}
}

// Numbering reports that a document number could not be allocated after retries.
func Numbering(op string, err error) error {
	return &Error{Kind: ErrNumbering, Op: op, Message: "document number allocation failed, retry later", Err: err}
}

// FromDB maps store errors onto the taxonomy. Unknown errors are wrapped with op.
func FromDB(op, entity string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(op, entity)
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Reason returns the human-readable message of an *Error, or err.Error().
func Reason(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Message != "" {
		return ae.Message
	}
	return err.Error()
}

// FieldsOf returns the validation fields carried by err, if any.
func FieldsOf(err error) map[string]string {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Fields
	}
	return nil
}
