package models

import (
	"context"
	"fmt"

	"github.com/thazinfarms/dairybooks_backend/config"
	"gorm.io/gorm"
)

var (
	// ErrFarmIdRequired is returned when the context lacks a farm id.
	ErrFarmIdRequired = fmt.Errorf("farm id is required")
	// ErrDBNotInitialized is returned when the DB connection has not been established.
	ErrDBNotInitialized = fmt.Errorf("database not initialized")
)

// RunAtomic executes fn inside a single database transaction. Every ledger
// operation takes the tx handle explicitly; nested calls made while handling
// one business event all share the same unit of work. fn returning an error
// rolls everything back; a nil return commits.
//
// There is no automatic retry here. A conflicting concurrent write surfaces
// as a commit error and the caller decides whether to retry the whole event.
func RunAtomic(ctx context.Context, fn func(tx *gorm.DB) error) error {
	db := config.GetDB()
	if db == nil {
		return ErrDBNotInitialized
	}
	return db.WithContext(ctx).Transaction(fn)
}

// configDB returns the shared DB handle bound to ctx, or nil before the
// connection is established.
func configDB(ctx context.Context) *gorm.DB {
	db := config.GetDB()
	if db == nil {
		return nil
	}
	return db.WithContext(ctx)
}
