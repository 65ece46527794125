package repo

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Base provides a shared foundation for domain repositories.
type Base struct {
	db       *gorm.DB
	postgres bool
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(db *gorm.DB) Base {
	return Base{db: db, postgres: db != nil && db.Dialector != nil && db.Dialector.Name() == "postgres"}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx rebinds the base to a transaction. A nil tx keeps the current handle.
func (b Base) WithTx(tx *gorm.DB) Base {
	if tx == nil {
		return b
	}
	return Base{db: tx, postgres: b.postgres}
}

// ForUpdate adds a row lock on postgres. Other dialects serialize writers
// themselves and reject the clause.
func (b Base) ForUpdate(q *gorm.DB) *gorm.DB {
	if !b.postgres {
		return q
	}
	return q.Clauses(clause.Locking{Strength: "UPDATE"})
}
