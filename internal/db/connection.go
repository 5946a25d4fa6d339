package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Connect opens a pool of at most maxConns connections and pings it. The
// bot issues one statement at a time, so a handful is plenty. A non-empty
// schemaName becomes every connection's search_path.
func Connect(ctx context.Context, dsn string, maxConns int, schemaName string) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, maxConns, schemaName)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	return p, nil
}

func poolConfig(dsn string, maxConns int, schemaName string) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if maxConns > 0 {
		cfg.MaxConns = int32(maxConns)
	}
	cfg.MinConns = 1
	cfg.MaxConnIdleTime = 30 * time.Second
	cfg.MaxConnLifetime = 5 * time.Minute
	if schemaName != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = pgx.Identifier{schemaName}.Sanitize()
	}
	return cfg, nil
}

func TestConnection(ctx context.Context, p *pgxpool.Pool, log logrus.FieldLogger) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var now time.Time
	err := p.QueryRow(ctx, "SELECT NOW()").Scan(&now)
	if err != nil {
		return fmt.Errorf("test query: %w", err)
	}
	log.WithField("component", "db").Infof("connection successful at %s", now.Format(time.RFC3339))
	return nil
}
