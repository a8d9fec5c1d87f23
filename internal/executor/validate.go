package executor

import (
	"fmt"
	"time"

	"signal_bot/internal/models"
)

const DefaultTTL = 90 * time.Minute

// Validator проверяет, что сигнал ещё можно исполнять. Любая неясность — отказ.
type Validator struct {
	TTL time.Duration
	Now func() time.Time
}

func NewValidator(ttl time.Duration, now func() time.Time) Validator {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if now == nil {
		now = time.Now
	}
	return Validator{TTL: ttl, Now: now}
}

func (v Validator) IsValid(sig *models.Signal) bool {
	return v.Check(sig) == ""
}

// Check возвращает причину отказа или пустую строку.
func (v Validator) Check(sig *models.Signal) string {
	if sig == nil {
		return "no signal"
	}
	if sig.Validity != models.ValidityActive {
		return fmt.Sprintf("validity %q", sig.Validity)
	}

	raw := sig.Time()
	if raw == "" {
		return "missing timestamp"
	}
	at, err := ParseTime(raw)
	if err != nil {
		return fmt.Sprintf("bad timestamp %q", raw)
	}

	now := time.Now
	if v.Now != nil {
		now = v.Now
	}
	ttl := v.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if age := now().Sub(at); age > ttl {
		return fmt.Sprintf("expired (age %.1f min)", age.Minutes())
	}
	return ""
}

// ParseTime принимает только время со смещением: наивное время не с чем сравнить.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
