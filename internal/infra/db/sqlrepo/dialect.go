// Package sqlrepo implements the repository ports over database/sql for
// MySQL, PostgreSQL and SQLite. Queries are written with ? placeholders and
// rebound per dialect.
package sqlrepo

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

type Dialect string

const (
	MySQL    Dialect = "mysql"
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

func (d Dialect) Valid() bool {
	switch d {
	case MySQL, Postgres, SQLite:
		return true
	}
	return false
}

// rebind rewrites ? placeholders to $1..$n for PostgreSQL.
func (d Dialect) rebind(q string) string {
	if d != Postgres {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Migrate creates the tables and indexes when missing.
func Migrate(ctx context.Context, db *sql.DB, d Dialect) error {
	stmts, ok := schema[d]
	if !ok {
		return fmt.Errorf("unsupported dialect %q", d)
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrating %s: %w", d, err)
		}
	}
	return nil
}

// Repositories bundles the four repositories over one connection pool.
type Repositories struct {
	Scans      *ScanRepository
	Threats    *ThreatRepository
	Quarantine *QuarantineRepository
	Profiles   *ProfileRepository
}

func New(db *sql.DB, d Dialect) Repositories {
	return Repositories{
		Scans:      NewScanRepository(db, d),
		Threats:    NewThreatRepository(db, d),
		Quarantine: NewQuarantineRepository(db, d),
		Profiles:   NewProfileRepository(db, d),
	}
}

type scanner interface {
	Scan(dest ...any) error
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}
