package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/db"

	"github.com/bytedance/sonic"
	"github.com/jackc/pgx/v5"
)

const schema = `
CREATE TABLE IF NOT EXISTS signals (
	id          BIGSERIAL PRIMARY KEY,
	signal_id   TEXT        NOT NULL DEFAULT '',
	asset       TEXT        NOT NULL,
	timeframe   TEXT        NOT NULL DEFAULT 'M15',
	direction   TEXT        NOT NULL,
	confidence  INT         NOT NULL,
	entry_low   DOUBLE PRECISION NOT NULL,
	entry_high  DOUBLE PRECISION NOT NULL,
	tp          DOUBLE PRECISION NOT NULL,
	sl          DOUBLE PRECISION NOT NULL,
	strategy    TEXT        NOT NULL DEFAULT '',
	session     TEXT        NOT NULL DEFAULT '',
	validity    TEXT        NOT NULL DEFAULT 'ACTIVE',
	is_active   BOOLEAN     NOT NULL DEFAULT TRUE,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS signals_active_idx ON signals (is_active, created_at DESC);

CREATE TABLE IF NOT EXISTS signal_snapshots (
	id         BIGSERIAL PRIMARY KEY,
	signal_ref BIGINT      NOT NULL REFERENCES signals(id) ON DELETE CASCADE,
	payload    JSONB       NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS execution_days (
	day        DATE        PRIMARY KEY,
	signal_id  TEXT        NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

// Signals — таблицы signals / signal_snapshots / execution_days в Supabase.
type Signals struct {
	tx db.TxManager
}

func NewSignals(tx db.TxManager) *Signals {
	return &Signals{tx: tx}
}

func (s *Signals) EnsureSchema(ctx context.Context) error {
	if _, err := s.tx.Conn().Exec(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Save деактивирует прошлый активный сигнал по паре и пишет новый со снапшотом.
func (s *Signals) Save(ctx context.Context, sig models.Signal) (int64, error) {
	snapshot, err := sonic.Marshal(sig)
	if err != nil {
		return 0, fmt.Errorf("encode snapshot: %w", err)
	}

	var id int64
	err = s.tx.RunMaster(ctx, func(ctx context.Context, tx db.Transaction) error {
		if _, err := tx.Exec(ctx,
			`UPDATE signals SET is_active = FALSE WHERE is_active AND asset = $1 AND timeframe = $2`,
			sig.Asset, sig.Timeframe,
		); err != nil {
			return fmt.Errorf("deactivate: %w", err)
		}

		err := tx.QueryRow(ctx, `
			INSERT INTO signals (signal_id, asset, timeframe, direction, confidence, entry_low, entry_high, tp, sl, strategy, session, validity)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
			RETURNING id`,
			sig.SignalID, sig.Asset, sig.Timeframe, string(sig.Direction), sig.Confidence,
			sig.Entry.Low, sig.Entry.High, sig.TP, sig.SL, sig.Strategy, sig.Session, validity(sig),
		).Scan(&id)
		if err != nil {
			return fmt.Errorf("insert signal: %w", err)
		}

		if _, err := tx.Exec(ctx,
			`INSERT INTO signal_snapshots (signal_ref, payload) VALUES ($1, $2)`, id, snapshot,
		); err != nil {
			return fmt.Errorf("insert snapshot: %w", err)
		}
		return nil
	})
	return id, err
}

const selectSignal = `
	SELECT signal_id, asset, timeframe, direction, confidence, entry_low, entry_high, tp, sl, strategy, session, validity, created_at
	FROM signals`

// Latest — последний активный сигнал, nil если нет.
func (s *Signals) Latest(ctx context.Context) (*models.Signal, error) {
	row := s.tx.Conn().QueryRow(ctx, selectSignal+` WHERE is_active ORDER BY created_at DESC LIMIT 1`)
	sig, err := scanSignal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("latest signal: %w", err)
	}
	return &sig, nil
}

func (s *Signals) Active(ctx context.Context, limit int) ([]models.Signal, error) {
	rows, err := s.tx.Conn().Query(ctx, selectSignal+` WHERE is_active ORDER BY created_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("active signals: %w", err)
	}
	defer rows.Close()

	var out []models.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}

// ClaimDay занимает UTC-день. false — день уже занят другим исполнением.
func (s *Signals) ClaimDay(ctx context.Context, date, signalID string) (bool, error) {
	var claimed bool
	err := s.tx.RunSerializable(ctx, func(ctx context.Context, tx db.Transaction) error {
		tag, err := tx.Exec(ctx,
			`INSERT INTO execution_days (day, signal_id) VALUES ($1::date, $2) ON CONFLICT (day) DO NOTHING`,
			date, signalID,
		)
		if err != nil {
			return err
		}
		claimed = tag.RowsAffected() == 1
		return nil
	})
	return claimed, err
}

func scanSignal(row pgx.Row) (models.Signal, error) {
	var (
		sig       models.Signal
		dir       string
		createdAt time.Time
	)
	err := row.Scan(
		&sig.SignalID, &sig.Asset, &sig.Timeframe, &dir, &sig.Confidence,
		&sig.Entry.Low, &sig.Entry.High, &sig.TP, &sig.SL,
		&sig.Strategy, &sig.Session, &sig.Validity, &createdAt,
	)
	if err != nil {
		return sig, err
	}
	sig.Direction = models.Side(dir)
	sig.Timestamp = createdAt.UTC().Format(time.RFC3339)
	sig.Source = "supabase"
	return sig, nil
}

func validity(sig models.Signal) string {
	if sig.Validity == "" {
		return models.ValidityActive
	}
	return sig.Validity
}
