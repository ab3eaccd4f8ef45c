package postgres

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations/document/*.sql
var documentMigrations embed.FS

//go:embed migrations/relational/*.sql
var relationalMigrations embed.FS

// MigrateDocumentStore applies the document-store schema.
func MigrateDocumentStore(db *sqlx.DB) error {
	return runMigrations(db, documentMigrations, "migrations/document", "document_schema_migrations")
}

// MigrateRelationalStore applies the relational-store schema.
func MigrateRelationalStore(db *sqlx.DB) error {
	return runMigrations(db, relationalMigrations, "migrations/relational", "relational_schema_migrations")
}

func runMigrations(db *sqlx.DB, fs embed.FS, path, table string) error {
	source, err := iofs.New(fs, path)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	driver, err := migratepg.WithInstance(db.DB, &migratepg.Config{MigrationsTable: table})
	if err != nil {
		return fmt.Errorf("migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}
