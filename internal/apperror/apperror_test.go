package apperror

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestKindsMatchWithErrorsIs(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind error
	}{
		{"validation", Validation("op", map[string]string{"name": "required"}), ErrValidation},
		{"invalid", Invalid("op", "amount", "must_be_positive"), ErrValidation},
		{"not found", NotFound("op", "invoice"), ErrNotFound},
		{"conflict", Conflict("op", "invoice is paid"), ErrConflict},
		{"numbering", Numbering("op", errors.New("dup")), ErrNumbering},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.err, tt.kind)
			wrapped := fmt.Errorf("outer: %w", tt.err)
			assert.ErrorIs(t, wrapped, tt.kind)
		})
	}
}

func TestNumberingKeepsCause(t *testing.T) {
	cause := errors.New("duplicate key")
	err := Numbering("invoice.create", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrNumbering)
}

func TestFromDB(t *testing.T) {
	require.NoError(t, FromDB("op", "invoice", nil))

	err := FromDB("invoice.get", "invoice", gorm.ErrRecordNotFound)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "invoice not found", Reason(err))

	conflict := Conflict("x", "locked")
	assert.Same(t, conflict, FromDB("op", "invoice", conflict))

	other := errors.New("boom")
	err = FromDB("invoice.get", "invoice", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestErrorString(t *testing.T) {
	err := Validation("quotation.create", map[string]string{"name": "required", "items[0].quantity": "min"})
	assert.Equal(t, "quotation.create: validation_failed (items[0].quantity=min, name=required)", err.Error())
	assert.Equal(t, map[string]string{"name": "required", "items[0].quantity": "min"}, FieldsOf(err))

	c := Conflict("invoice.delete", "invoice is paid")
	assert.Equal(t, "invoice.delete: conflict: invoice is paid", c.Error())
	assert.Nil(t, FieldsOf(errors.New("plain")))
}
