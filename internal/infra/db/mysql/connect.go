package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	driver "github.com/go-sql-driver/mysql"

	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

// Options for a MySQL connection pool.
type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	// DSN overrides the fields above when set.
	DSN string
}

// FormatDSN builds a driver DSN. parseTime is always on since the
// repositories scan DATETIME columns into time.Time.
func (o Options) FormatDSN() (string, error) {
	if o.DSN != "" {
		cfg, err := driver.ParseDSN(o.DSN)
		if err != nil {
			return "", fmt.Errorf("parsing mysql dsn: %w", err)
		}
		cfg.ParseTime = true
		cfg.Loc = time.UTC
		return cfg.FormatDSN(), nil
	}
	cfg := driver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", o.Host, o.Port)
	cfg.User = o.User
	cfg.Passwd = o.Password
	cfg.DBName = o.Name
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

func Connect(ctx context.Context, o Options) (*sql.DB, error) {
	dsn, err := o.FormatDSN()
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate creates the schema.
func Migrate(ctx context.Context, db *sql.DB) error {
	return sqlrepo.Migrate(ctx, db, sqlrepo.MySQL)
}
