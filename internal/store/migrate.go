// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 TaskVault Contributors

package store

import (
	"cmp"
	"embed"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	// Register pgx/v5 database driver for golang-migrate.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migration is one embedded schema change, e.g. 000002_tokens.
type Migration struct {
	Version uint
	Name    string
}

func (m Migration) String() string {
	return fmt.Sprintf("%06d_%s", m.Version, m.Name)
}

// Migrations lists the embedded migrations in version order.
func Migrations() ([]Migration, error) {
	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").Wrap(err)
	}

	var out []Migration
	for _, entry := range entries {
		base, ok := strings.CutSuffix(entry.Name(), ".up.sql")
		if !ok {
			continue
		}
		num, name, ok := strings.Cut(base, "_")
		version, err := strconv.ParseUint(num, 10, 32)
		if !ok || err != nil || name == "" {
			return nil, oops.Code("MIGRATION_NAME_INVALID").
				With("file", entry.Name()).
				Errorf("migration file must be named NNNNNN_name.up.sql")
		}
		out = append(out, Migration{Version: uint(version), Name: name})
	}
	slices.SortFunc(out, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return out, nil
}

// migrateIface is the part of *migrate.Migrate that Migrator calls.
type migrateIface interface {
	Up() error
	Down() error
	Steps(n int) error
	Version() (version uint, dirty bool, err error)
	Close() (source error, database error)
}

// Migrator applies the TaskVault schema with golang-migrate.
type Migrator struct {
	m migrateIface
}

// NewMigrator connects to databaseURL.
func NewMigrator(databaseURL string) (*Migrator, error) {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, MigrateURL(databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // init error takes precedence
		return nil, oops.Code("MIGRATION_INIT_FAILED").With("operation", "initialize migrator").Wrap(err)
	}

	return &Migrator{m: m}, nil
}

// MigrateURL switches a postgres:// or postgresql:// URL to the pgx5:// scheme
// registered by the golang-migrate pgx driver.
func MigrateURL(databaseURL string) string {
	for _, scheme := range []string{"postgres://", "postgresql://"} {
		if rest, found := strings.CutPrefix(databaseURL, scheme); found {
			return "pgx5://" + rest
		}
	}
	return databaseURL
}

// Up applies all pending migrations. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").Wrap(err)
	}
	return nil
}

// Rollback reverts the most recently applied migration.
func (m *Migrator) Rollback() error {
	if err := m.m.Steps(-1); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			return nil
		}
		return oops.Code("MIGRATION_ROLLBACK_FAILED").Wrap(err)
	}
	return nil
}

// RollbackAll reverts every migration, dropping users, tokens and todos.
func (m *Migrator) RollbackAll() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_ROLLBACK_FAILED").With("all", true).Wrap(err)
	}
	return nil
}

// MigrationStatus describes the schema state of a database.
type MigrationStatus struct {
	Version uint
	// Dirty is set when a migration failed midway; golang-migrate refuses to
	// run until the schema is repaired by hand.
	Dirty   bool
	Applied []Migration
	Pending []Migration
}

// UpToDate reports whether no migration is pending.
func (s MigrationStatus) UpToDate() bool {
	return len(s.Pending) == 0
}

// Status reads the applied version and splits the embedded migrations into
// applied and pending. A fresh database is at version 0.
func (m *Migrator) Status() (MigrationStatus, error) {
	version, dirty, err := m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		version, dirty, err = 0, false, nil
	}
	if err != nil {
		return MigrationStatus{}, oops.Code("MIGRATION_STATUS_FAILED").Wrap(err)
	}

	all, err := Migrations()
	if err != nil {
		return MigrationStatus{}, err
	}

	status := MigrationStatus{Version: version, Dirty: dirty}
	for _, mig := range all {
		if mig.Version <= version {
			status.Applied = append(status.Applied, mig)
		} else {
			status.Pending = append(status.Pending, mig)
		}
	}
	return status, nil
}

// Close releases the migration source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	if err := errors.Join(srcErr, dbErr); err != nil {
		return oops.Code("MIGRATION_CLOSE_FAILED").Wrap(err)
	}
	return nil
}
