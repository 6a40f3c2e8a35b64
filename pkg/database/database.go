// Package database opens the SQL connection a corpus can be read from. The
// postgres, mysql and sqlite drivers are registered by this package.
package database

import (
	"context"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
	_ "github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/boolean-search-engine/pkg/resilience"
)

type Client struct {
	DB     *sqlx.DB
	driver string
}

// New opens a pool for cfg and pings it, retrying a few times so a database
// that is still starting up does not fail the run.
func New(ctx context.Context, cfg config.DatabaseConfig) (*Client, error) {
	db, err := sqlx.Open(cfg.Driver, cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("opening %s connection: %w", cfg.Driver, err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	err = resilience.Retry(ctx, "ping "+cfg.Driver, resilience.Backoff{}, func(ctx context.Context) error {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		return db.PingContext(ctx)
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Client{DB: db, driver: cfg.Driver}, nil
}

func (c *Client) Driver() string {
	return c.driver
}

func (c *Client) Close() error {
	return c.DB.Close()
}
