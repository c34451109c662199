package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"medvault/internal/config"
)

// pingTimeout bounds each connectivity check while the pool is opened.
const pingTimeout = 5 * time.Second

var (
	sqlOpen        = sql.Open
	registerDriver = func() (string, error) {
		return otelsql.Register("pgx",
			otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
			otelsql.WithSQLCommenter(true),
		)
	}
	// retryDelay is the pause between failed pings; tests shrink it.
	retryDelay = time.Second
)

// BuildPostgresDSN turns the DB_* settings into a pgx URL, e.g.
// postgres://medvault:secret@db:5432/medvault?sslmode=disable.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	if c.Host == "" || c.Port == "" || c.User == "" || c.Name == "" {
		return "", fmt.Errorf("invalid database config: host, port, user, and name are required")
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}
	q := url.Values{}
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     c.Host + ":" + c.Port,
		Path:     c.Name,
		RawQuery: q.Encode(),
	}
	return u.String(), nil
}

// NewPostgres opens the documents metadata store: a traced database/sql pool over the pgx
// stdlib driver. It pings up to ConnectAttempts times so the service can start alongside a
// database container that is still booting. The caller owns and must Close the handle.
func NewPostgres(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}
	driverName, err := registerDriver()
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}
	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	configurePool(db, c)

	if err := waitReady(ctx, db, c.ConnectAttempts); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func configurePool(db *sql.DB, c config.DatabaseConfig) {
	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}
}

// waitReady pings db until it answers, attempts run out or ctx ends. attempts < 1 means one.
func waitReady(ctx context.Context, db *sql.DB, attempts int) error {
	attempts = max(attempts, 1)
	var err error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
			case <-time.After(retryDelay):
			}
		}
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		err = db.PingContext(pingCtx)
		cancel()
		if err == nil {
			return nil
		}
	}
	return err
}
