package service

import (
	"context"

	"signal_bot/internal/models"
)

type SignalReader interface {
	Latest(ctx context.Context) (*models.Signal, error)
}

// Supabase берёт последний активный сигнал из таблицы signals.
type Supabase struct {
	repo SignalReader
}

func NewSupabase(repo SignalReader) *Supabase {
	return &Supabase{repo: repo}
}

func (s *Supabase) Name() string { return "supabase" }

func (s *Supabase) Latest(ctx context.Context) (*models.Signal, error) {
	return s.repo.Latest(ctx)
}
