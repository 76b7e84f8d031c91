package database

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/grpc-ecosystem/go-grpc-middleware/logging/zap/ctxzap"
	"github.com/pkg/errors"
	"github.com/jmoiron/sqlx"
)

// ClickHouseConfig configures the analytical column store connection.
type ClickHouseConfig struct {
	Hosts    []string      `json:"hosts,omitempty"`
	Database string        `json:"database,omitempty"`
	User     string        `json:"user,omitempty"`
	Password string        `json:"password,omitempty"`
	DialTimeout time.Duration `json:"dialTimeout,omitempty"`
}

// OpenClickHouse opens the sqlx-wrapped ClickHouse connection pool used by
// internal/repository/clickhouse.
func OpenClickHouse(ctx context.Context, cfg ClickHouseConfig) (*sqlx.DB, func(), error) {
	logger := ctxzap.Extract(ctx).Sugar()

	dialTimeout := cfg.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = 10 * time.Second
	}

	conn := clickhouse.OpenDB(&clickhouse.Options{
		Addr: cfg.Hosts,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		DialTimeout: dialTimeout,
	})

	db := sqlx.NewDb(conn, "clickhouse")
	if err := db.PingContext(ctx); err != nil {
		return nil, nil, errors.Wrap(err, "clickhouse: failed to connect")
	}

	logger.Infof("clickhouse: connected to %v database %s", cfg.Hosts, cfg.Database)

	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Errorf("clickhouse: failed to close connection pool: %v", err)
		}
	}
	return db, cleanup, nil
}
