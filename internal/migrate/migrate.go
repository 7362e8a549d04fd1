// Package migrate applies the embedded SQL migrations to the local state database.
package migrate

import (
	"context"
	"database/sql"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/and161185/motectl/migrations"
)

var (
	setupOnce sync.Once
	setupErr  error
)

// Up runs all pending migrations on db.
func Up(ctx context.Context, db *sql.DB) error {
	setupOnce.Do(func() {
		goose.SetBaseFS(migrations.FS)
		goose.SetLogger(goose.NopLogger())
		setupErr = goose.SetDialect("sqlite3")
	})
	if setupErr != nil {
		return setupErr
	}
	return goose.UpContext(ctx, db, ".")
}
