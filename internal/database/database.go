package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"familyvault/internal/config"
)

const (
	applicationName = "familyvault-web"
	pingTimeout     = 5 * time.Second
)

var sqlOpen = sql.Open

// BuildPostgresDSN renders the URL of the key-value store database. The
// session is tagged with the application name so stored browser state
// can be told apart in pg_stat_activity, and connect_timeout matches the
// startup ping.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	if missing := missingFields(c); len(missing) > 0 {
		return "", fmt.Errorf("invalid database config: missing %s", strings.Join(missing, ", "))
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   c.Name,
		User:   url.User(c.User),
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	}

	q := url.Values{}
	q.Set("application_name", applicationName)
	q.Set("connect_timeout", strconv.Itoa(int(pingTimeout/time.Second)))
	if c.SSLMode != "" {
		q.Set("sslmode", c.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func missingFields(c config.DatabaseConfig) []string {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"DB_HOST", c.Host}, {"DB_PORT", c.Port}, {"DB_USER", c.User}, {"DB_NAME", c.Name},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// NewPostgres connects the Postgres backend of local storage. Queries are
// traced through otelsql; the pool is sized from c and the connection is
// checked before returning.
func NewPostgres(ctx context.Context, c config.DatabaseConfig) (*sql.DB, error) {
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}

	driverName, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register otelsql: %w", err)
	}

	db, err := sqlOpen(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}

	if c.MaxOpenConns > 0 {
		db.SetMaxOpenConns(c.MaxOpenConns)
	}
	if c.MaxIdleConns > 0 {
		db.SetMaxIdleConns(c.MaxIdleConns)
	}
	if c.ConnMaxLifetimeSec > 0 {
		db.SetConnMaxLifetime(time.Duration(c.ConnMaxLifetimeSec) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}

	return db, nil
}
