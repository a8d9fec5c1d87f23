package models

import "time"

// DispatchEntry — последняя отправка по ключу asset_timeframe.
type DispatchEntry struct {
	LastSent   time.Time `json:"last_sent"`
	Direction  string    `json:"direction"`
	Entry      Entry     `json:"entry"`
	Confidence int       `json:"confidence"`
}

type DispatchState map[string]DispatchEntry

// Envelope — ответ API сигналов, который проходит через dispatch guard.
type Envelope struct {
	Status  string  `json:"status"`
	Source  string  `json:"source"`
	Asset   string  `json:"asset"`
	Payload Payload `json:"payload"`
}

type Payload struct {
	Signal
	Symbol string `json:"symbol,omitempty"`
	Meta   Meta   `json:"meta"`
}

type Meta struct {
	Status      string    `json:"status"`
	GeneratedAt time.Time `json:"generated_at"`
}

const (
	MetaFresh  = "fresh"
	MetaReplay = "replay"
)
