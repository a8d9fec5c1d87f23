// Package db — pgx-пул и транзакции поверх него.
package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal_bot/pkg/logger"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// SQLSTATE конфликта сериализации.
const serializationFailure = "40001"

const serializableAttempts = 3

// Transaction — общее у пула и pgx.Tx.
type Transaction interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type TxFunc func(ctx context.Context, tx Transaction) error

type TxManager interface {
	RunMaster(ctx context.Context, fn TxFunc) error
	RunSerializable(ctx context.Context, fn TxFunc) error
	Conn() Transaction
}

type PoolConfig struct {
	DSN            string
	MaxConns       int32
	ConnectTimeout time.Duration
}

// NewPool открывает пул и сразу проверяет соединение.
func NewPool(ctx context.Context, conf PoolConfig) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(conf.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	if conf.MaxConns > 0 {
		pc.MaxConns = conf.MaxConns
	}
	if conf.ConnectTimeout > 0 {
		pc.ConnConfig.ConnectTimeout = conf.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}

type PgTxManager struct {
	pool *pgxpool.Pool
}

func NewPgTxManager(pool *pgxpool.Pool) *PgTxManager {
	return &PgTxManager{pool: pool}
}

func (m *PgTxManager) Close() { m.pool.Close() }

func (m *PgTxManager) Conn() Transaction { return m.pool }

func (m *PgTxManager) RunMaster(ctx context.Context, fn TxFunc) error {
	return m.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted}, fn)
}

// RunSerializable повторяет fn при конфликте сериализации.
func (m *PgTxManager) RunSerializable(ctx context.Context, fn TxFunc) error {
	var err error
	for attempt := 1; attempt <= serializableAttempts; attempt++ {
		err = m.inTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable}, fn)
		if !IsSerializationFailure(err) {
			return err
		}
		logger.Warn("[DB] serialization failure, attempt %d/%d", attempt, serializableAttempts)
	}
	return err
}

func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == serializationFailure
}

func (m *PgTxManager) inTx(ctx context.Context, opts pgx.TxOptions, fn TxFunc) (err error) {
	tx, err := m.pool.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			logger.Error("[DB] panic in tx: %v", p)
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return fmt.Errorf("run in tx: %w", err)
	}
	return nil
}
