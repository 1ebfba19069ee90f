package db

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RunTx runs fn in a single transaction bound to ctx. A cancelled context
// rolls the transaction back.
func RunTx(ctx context.Context, conn *gorm.DB, fn func(tx *gorm.DB) error) error {
	return conn.WithContext(ctx).Transaction(fn)
}

// ForUpdate adds a row lock on dialects that support it. SQLite serialises
// writers already and rejects the clause.
func ForUpdate(tx *gorm.DB) *gorm.DB {
	if tx.Dialector.Name() == "postgres" {
		return tx.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return tx
}

// IsDuplicate reports whether err is a unique constraint violation.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}
