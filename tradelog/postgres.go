package tradelog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const createTradesTable = `
CREATE TABLE IF NOT EXISTS trades (
	id         BIGSERIAL PRIMARY KEY,
	ts         TIMESTAMPTZ NOT NULL,
	action     TEXT NOT NULL,
	wallet     TEXT NOT NULL,
	token      TEXT NOT NULL,
	amount_sol DOUBLE PRECISION NOT NULL,
	reason     TEXT NOT NULL DEFAULT ''
)`

const insertTrade = `
INSERT INTO trades (ts, action, wallet, token, amount_sol, reason)
VALUES ($1, $2, $3, $4, $5, $6)`

// PostgresSink mirrors the trade log into Postgres for querying across
// runs. It is optional; the bot runs with CSV alone.
type PostgresSink struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewPostgresSink(ctx context.Context, databaseURL string) (*PostgresSink, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect trade database: %w", err)
	}
	if _, err := pool.Exec(ctx, createTradesTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create trades table: %w", err)
	}
	return &PostgresSink{pool: pool, timeout: 5 * time.Second}, nil
}

func (s *PostgresSink) Record(entry Entry) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	_, err := s.pool.Exec(ctx, insertTrade,
		entry.Timestamp, string(entry.Action), entry.Wallet, entry.Token, entry.AmountSOL, entry.Reason)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *PostgresSink) Close() error {
	s.pool.Close()
	return nil
}
