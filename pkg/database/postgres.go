package database

import (
	"context"
	"fmt"
	"time"

	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/jmoiron/sqlx"
)

// PostgresConfig configures the authoritative relational store connection.
// Mirrors the teacher's MySQL database Config shape (user/password/host/name
// plus pool tuning) adapted
// from the master/slave MySQL split to a single Postgres DSN, since the
// relational store here has no read-replica routing requirement.
type PostgresConfig struct {
	Host                  string        `json:"host,omitempty"`
	Port                  string        `json:"port,omitempty"`
	User                  string        `json:"user,omitempty"`
	Password              string        `json:"password,omitempty"`
	DBName                string        `json:"name,omitempty"`
	SSLMode               string        `json:"sslMode,omitempty"`
	MaxIdleConnections    int           `json:"maxIdleConnections,omitempty"`
	MaxOpenConnections    int           `json:"maxOpenConnections,omitempty"`
	MaxConnectionLifeTime time.Duration `json:"maxConnectionLifeTime,omitempty"`
}

// OpenPostgres opens the sqlx-wrapped Postgres connection pool used by
// internal/repository/postgres.
func OpenPostgres(ctx context.Context, cfg PostgresConfig) (*sqlx.DB, func(), error) {
	logger := ctxzap.Extract(ctx).Sugar()

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, sslMode)

	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, nil, errors.Wrap(err, "postgres: failed to connect")
	}

	db.SetMaxIdleConns(cfg.MaxIdleConnections)
	db.SetMaxOpenConns(cfg.MaxOpenConnections)
	db.SetConnMaxLifetime(cfg.MaxConnectionLifeTime)

	logger.Infof("postgres: connected using user %s at %s:%s/%s", cfg.User, cfg.Host, cfg.Port, cfg.DBName)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Errorf("postgres: failed to close connection pool: %v", err)
		}
	}
	return db, cleanup, nil
}
