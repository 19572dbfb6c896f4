package repository

import (
	"context"
	"database/sql"

	"github.com/vibast-solutions/ms-go-accounts/app/repository/migrations"

	"github.com/pressly/goose/v3"
)

// RunMigrations applies the embedded schema migrations. The unique index on
// users.email is the last-resort backstop for concurrent registrations that
// both pass the existence check.
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("mysql"); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, ".")
}
