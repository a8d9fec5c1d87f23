package models

import (
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEntryAcceptsNumberAndZone(t *testing.T) {
	cases := []struct {
		raw  string
		want Entry
	}{
		{raw: `1.0852`, want: Price(1.0852)},
		{raw: `"1.0852"`, want: Price(1.0852)},
		{raw: `[1.0850, 1.0855]`, want: Entry{Low: 1.0850, High: 1.0855}},
		{raw: `[1.0855, 1.0850]`, want: Entry{Low: 1.0850, High: 1.0855}},
		{raw: `null`, want: Entry{}},
	}
	for _, tc := range cases {
		var e Entry
		require.NoError(t, e.UnmarshalJSON([]byte(tc.raw)), tc.raw)
		assert.Equal(t, tc.want, e, tc.raw)
	}

	var e Entry
	assert.Error(t, e.UnmarshalJSON([]byte(`[1,2,3]`)))
	assert.Error(t, e.UnmarshalJSON([]byte(`"abc"`)))
}

func TestEntryMarshalKeepsShape(t *testing.T) {
	b, err := Price(1.1).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `1.1`, string(b))

	b, err = Zone(1.1, 1.2).MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `[1.1,1.2]`, string(b))
}

func TestSignalDecodesLegacyPayload(t *testing.T) {
	raw := `{"signal_id":"live-20250105-001","asset":"EUR/USD","direction":"BUY","entry":[1.08,1.0805],
		"tp":1.09,"sl":1.075,"confidence":72,"validity":"ACTIVE","executed_at":"2025-01-05T10:00:00Z"}`

	var s Signal
	require.NoError(t, sonic.Unmarshal([]byte(raw), &s))
	assert.Equal(t, SideBuy, s.Direction)
	assert.True(t, s.Entry.IsZone())
	assert.InDelta(t, 1.08025, s.Entry.Value(), 1e-9)
	assert.Equal(t, "2025-01-05T10:00:00Z", s.Time())
}

func TestRecordSignalView(t *testing.T) {
	rec := ExecutionRecord{
		SignalID:    "live-20250105-001",
		ExecutedAt:  time.Date(2025, 1, 5, 10, 30, 0, 0, time.UTC),
		Asset:       "EUR/USD",
		Direction:   SideSell,
		SignalPrice: Price(1.05),
		Status:      StatusExecuted,
		Mode:        ModeSimulation,
	}

	s := rec.Signal()
	assert.Equal(t, ValidityActive, s.Validity)
	assert.Equal(t, "2025-01-05T10:30:00Z", s.ExecutedAt)
	assert.Equal(t, "EXECUTED", s.Status)
	assert.Equal(t, "SIMULATION", s.Mode)
	assert.Equal(t, "2025-01-05", rec.Date())
}
