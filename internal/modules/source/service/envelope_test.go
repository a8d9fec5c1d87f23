package service

import (
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestEnvelope_Shape(t *testing.T) {
	now := time.Date(2025, 1, 6, 10, 0, 0, 0, time.UTC)
	sig := models.Signal{
		Asset:      "EUR/USD",
		Timeframe:  "M15",
		Direction:  models.SideBuy,
		Confidence: 75,
		Entry:      models.Price(1.085),
		Source:     "engine",
	}

	raw, err := sonic.Marshal(Envelope(sig, models.MetaFresh, now))
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, "ok", doc.Get("status").String())
	assert.Equal(t, "engine", doc.Get("source").String())
	assert.Equal(t, "EUR/USD", doc.Get("payload.symbol").String())
	assert.Equal(t, "M15", doc.Get("payload.timeframe").String())
	assert.Equal(t, int64(75), doc.Get("payload.confidence").Int())
	assert.Equal(t, "BUY", doc.Get("payload.direction").String())
	assert.Equal(t, 1.085, doc.Get("payload.entry").Float())
	assert.Equal(t, models.MetaFresh, doc.Get("payload.meta.status").String())
}
