package models

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/bytedance/sonic"
)

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

func (s Side) Valid() bool { return s == SideBuy || s == SideSell }

const ValidityActive = "ACTIVE"

// Volatility — сводка ATR для сообщения в канал.
type Volatility struct {
	ATRPercent float64 `json:"atr_percent"`
	State      string  `json:"state"`
}

// Signal — рекомендация BUY/SELL. Значение не мутируется после создания.
type Signal struct {
	SignalID   string      `json:"signal_id,omitempty"`
	Asset      string      `json:"asset" validate:"required"`
	Timeframe  string      `json:"timeframe,omitempty"`
	Direction  Side        `json:"direction" validate:"required,oneof=BUY SELL"`
	Confidence int         `json:"confidence" validate:"gte=0,lte=100"`
	Entry      Entry       `json:"entry"`
	TP         float64     `json:"tp"`
	SL         float64     `json:"sl"`
	Strategy   string      `json:"strategy,omitempty"`
	Session    string      `json:"session,omitempty"`
	Source     string      `json:"source,omitempty"`
	Validity   string      `json:"validity,omitempty"`
	Timestamp  string      `json:"timestamp,omitempty"`
	ExecutedAt string      `json:"executed_at,omitempty"`
	Status     string      `json:"status,omitempty"`
	Mode       string      `json:"mode,omitempty"`
	Volatility *Volatility `json:"volatility,omitempty"`
}

// Time — executed_at, если есть, иначе timestamp.
func (s Signal) Time() string {
	if s.ExecutedAt != "" {
		return s.ExecutedAt
	}
	return s.Timestamp
}

// Entry — цена входа либо зона [low, high].
type Entry struct {
	Low  float64
	High float64
}

func Price(p float64) Entry { return Entry{Low: p, High: p} }

func Zone(low, high float64) Entry {
	if low > high {
		low, high = high, low
	}
	return Entry{Low: low, High: high}
}

func (e Entry) IsZone() bool { return e.Low != e.High }

// Value — середина зоны.
func (e Entry) Value() float64 { return (e.Low + e.High) / 2 }

func (e Entry) String() string {
	if e.IsZone() {
		return fmt.Sprintf("%s - %s", formatPrice(e.Low), formatPrice(e.High))
	}
	return formatPrice(e.Low)
}

func (e Entry) MarshalJSON() ([]byte, error) {
	if e.IsZone() {
		return sonic.Marshal([2]float64{e.Low, e.High})
	}
	return sonic.Marshal(e.Low)
}

func (e *Entry) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*e = Entry{}
		return nil
	}

	switch b[0] {
	case '[':
		var zone []float64
		if err := sonic.Unmarshal(b, &zone); err != nil {
			return fmt.Errorf("entry zone: %w", err)
		}
		switch len(zone) {
		case 1:
			*e = Price(zone[0])
		case 2:
			*e = Zone(zone[0], zone[1])
		default:
			return fmt.Errorf("entry zone: want 1 or 2 prices, got %d", len(zone))
		}
		return nil
	case '"':
		var s string
		if err := sonic.Unmarshal(b, &s); err != nil {
			return fmt.Errorf("entry: %w", err)
		}
		p, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("entry: %w", err)
		}
		*e = Price(p)
		return nil
	default:
		p, err := strconv.ParseFloat(string(b), 64)
		if err != nil {
			return fmt.Errorf("entry: %w", err)
		}
		*e = Price(p)
		return nil
	}
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
