// Package migration applies the embedded SQL schema with golang-migrate.
package migration

import (
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // postgres:// driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*.sql
var files embed.FS

// ErrEmptyDSN is returned when no database url is configured.
var ErrEmptyDSN = errors.New("migration: database url is empty")

// Up applies every pending migration. It is a no-op when the schema is current.
func Up(dsn string) error {
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: up: %w", err)
	}
	return nil
}

// Down rolls back every migration. Only tests and local resets use it.
func Down(dsn string) error {
	m, err := open(dsn)
	if err != nil {
		return err
	}
	defer func() { _, _ = m.Close() }()

	if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration: down: %w", err)
	}
	return nil
}

func open(dsn string) (*migrate.Migrate, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrEmptyDSN
	}

	src, err := iofs.New(files, "migrations")
	if err != nil {
		return nil, fmt.Errorf("migration: source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, dsn)
	if err != nil {
		return nil, fmt.Errorf("migration: init: %w", err)
	}
	return m, nil
}
