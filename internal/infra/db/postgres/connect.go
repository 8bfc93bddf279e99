package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"github.com/bryanwahyu/n0dr1e/internal/infra/db/sqlrepo"
)

type Options struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	// DSN overrides the fields above when set.
	DSN string
}

func (o Options) FormatDSN() string {
	if o.DSN != "" {
		return o.DSN
	}
	ssl := o.SSLMode
	if ssl == "" {
		ssl = "disable"
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(o.User, o.Password),
		Host:     o.Host + ":" + strconv.Itoa(o.Port),
		Path:     "/" + o.Name,
		RawQuery: url.Values{"sslmode": {ssl}}.Encode(),
	}
	return u.String()
}

func Connect(ctx context.Context, o Options) (*sql.DB, error) {
	db, err := sql.Open("postgres", o.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func Migrate(ctx context.Context, db *sql.DB) error {
	return sqlrepo.Migrate(ctx, db, sqlrepo.Postgres)
}
