// Package db opens the record store selected by configuration.
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryanwahyu/n0dr1e/internal/config"
	"github.com/bryanwahyu/n0dr1e/internal/domain/profiles"
	"github.com/bryanwahyu/n0dr1e/internal/domain/quarantine"
	"github.com/bryanwahyu/n0dr1e/internal/domain/scans"
	"github.com/bryanwahyu/n0dr1e/internal/domain/threats"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/memory"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/mysql"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/postgres"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlite"
	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

// Store bundles the repositories of one backend.
type Store struct {
	Driver     string
	Scans      scans.Repository
	Threats    threats.Repository
	Quarantine quarantine.Repository
	Profiles   profiles.Repository

	sql *sql.DB
}

// Ping checks the backend; the memory store is always up.
func (s *Store) Ping(ctx context.Context) error {
	if s.sql == nil {
		return nil
	}
	return s.sql.PingContext(ctx)
}

func (s *Store) Close() error {
	if s.sql == nil {
		return nil
	}
	return s.sql.Close()
}

// Open connects to the configured backend. withSchema creates the schema first.
func Open(ctx context.Context, cfg config.Database, withSchema bool) (*Store, error) {
	if cfg.Driver == config.DriverMemory {
		m := memory.New()
		return &Store{
			Driver:     cfg.Driver,
			Scans:      m.Scans(),
			Threats:    m.Threats(),
			Quarantine: m.Quarantine(),
			Profiles:   m.Profiles(),
		}, nil
	}

	var (
		conn    *sql.DB
		dialect sqlrepo.Dialect
		migrate func(context.Context, *sql.DB) error
		err     error
	)
	switch cfg.Driver {
	case config.DriverMySQL:
		dialect, migrate = sqlrepo.MySQL, mysql.Migrate
		conn, err = mysql.Connect(ctx, mysql.Options{
			Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, Name: cfg.Name, DSN: cfg.DSN,
		})
	case config.DriverPostgres:
		dialect, migrate = sqlrepo.Postgres, postgres.Migrate
		conn, err = postgres.Connect(ctx, postgres.Options{
			Host: cfg.Host, Port: cfg.Port, User: cfg.User, Password: cfg.Password, Name: cfg.Name, DSN: cfg.DSN,
		})
	case config.DriverSQLite:
		dialect, migrate = sqlrepo.SQLite, sqlite.Migrate
		conn, err = sqlite.Connect(ctx, cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("%s connect: %w", cfg.Driver, err)
	}

	if withSchema {
		if err := migrate(ctx, conn); err != nil {
			conn.Close()
			return nil, err
		}
	}

	repos := sqlrepo.New(conn, dialect)
	return &Store{
		Driver:     cfg.Driver,
		Scans:      repos.Scans,
		Threats:    repos.Threats,
		Quarantine: repos.Quarantine,
		Profiles:   repos.Profiles,
		sql:        conn,
	}, nil
}
