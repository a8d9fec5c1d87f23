package models

import "time"

type Candle struct {
	Time                   time.Time
	Open, High, Low, Close float64
}

type FeedStatus string

const (
	FeedOK       FeedStatus = "ok"
	FeedDegraded FeedStatus = "degraded"
	FeedDown     FeedStatus = "down"
)

// FeedHealth — содержимое data_feed_health.json.
type FeedHealth struct {
	Status              FeedStatus `json:"status"`
	Source              string     `json:"source"`
	Symbol              string     `json:"symbol"`
	LastPrice           float64    `json:"last_price"`
	LastCheck           time.Time  `json:"last_check"`
	LastSuccess         time.Time  `json:"last_success"`
	LatencyMs           int64      `json:"latency_ms"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastError           string     `json:"last_error,omitempty"`
	StreamConnected     bool       `json:"stream_connected"`
}
