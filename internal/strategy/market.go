package strategy

import "time"

// MarketOpen — форекс открыт с вс 22:00 UTC до пт 22:00 UTC.
func MarketOpen(t time.Time) bool {
	t = t.UTC()
	switch t.Weekday() {
	case time.Saturday:
		return false
	case time.Friday:
		return t.Hour() < 22
	case time.Sunday:
		return t.Hour() >= 22
	default:
		return true
	}
}

const (
	SessionOverlap = "London/NY Overlap"
	SessionLondon  = "London"
	SessionNewYork = "New York"
	SessionAsia    = "Asia"
)

// SessionName — торговая сессия по часу UTC.
func SessionName(t time.Time) string {
	h := t.UTC().Hour()
	switch {
	case h >= 12 && h < 16:
		return SessionOverlap
	case h >= 7 && h < 16:
		return SessionLondon
	case h >= 12 && h < 21:
		return SessionNewYork
	default:
		return SessionAsia
	}
}

func sessionScore(t time.Time) int {
	switch SessionName(t) {
	case SessionOverlap:
		return 15
	case SessionLondon, SessionNewYork:
		return 10
	default:
		return 0
	}
}
