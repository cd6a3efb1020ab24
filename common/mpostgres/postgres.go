package mpostgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/opendogma/dogma/common/mlog"
)

// PostgresConnection is a hub which deals with the durable session/token
// store's postgres connection (C8). Unlike the ledger's read-heavy tables,
// the session store is small and single-region, so there is no
// primary/replica split here: one pool handles both reads and writes.
type PostgresConnection struct {
	ConnectionString string
	DBName           string
	ConnectionDB     *pgxpool.Pool
	Connected        bool
	Logger           mlog.Logger
}

// Connect keeps a singleton pool connection with postgres.
func (pc *PostgresConnection) Connect(ctx context.Context) error {
	pc.Logger.Info("connecting to postgres...")

	cfg, err := pgxpool.ParseConfig(pc.ConnectionString)
	if err != nil {
		pc.Logger.Errorf("failed to parse postgres connection string: %v", err)
		return fmt.Errorf("parsing postgres connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		pc.Logger.Errorf("failed to open connection to database %s: %v", pc.DBName, err)
		return fmt.Errorf("opening postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pc.Logger.Errorf("postgres ping failed: %v", err)
		return fmt.Errorf("pinging postgres: %w", err)
	}

	pc.Connected = true
	pc.ConnectionDB = pool

	pc.Logger.Info("connected to postgres")

	return nil
}

// GetDB returns the pool, connecting lazily if necessary.
func (pc *PostgresConnection) GetDB(ctx context.Context) (*pgxpool.Pool, error) {
	if pc.ConnectionDB == nil {
		if err := pc.Connect(ctx); err != nil {
			return nil, err
		}
	}

	return pc.ConnectionDB, nil
}
