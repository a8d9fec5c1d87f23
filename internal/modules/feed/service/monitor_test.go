package service

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type fetcherMock struct{ mock.Mock }

func (m *fetcherMock) Price(ctx context.Context, symbol string) (float64, error) {
	args := m.Called(ctx, symbol)
	return args.Get(0).(float64), args.Error(1)
}

func TestMonitorStatusTransitions(t *testing.T) {
	f := &fetcherMock{}
	path := filepath.Join(t.TempDir(), "data_feed_health.json")
	m := NewMonitor(f, "EUR/USD", path, 2)
	ctx := context.Background()

	f.On("Price", mock.Anything, "EUR/USD").Return(1.0851, nil).Once()
	f.On("Price", mock.Anything, "EUR/USD").Return(0.0, errors.New("timeout")).Twice()
	f.On("Price", mock.Anything, "EUR/USD").Return(1.0853, nil).Once()

	h := m.Check(ctx)
	assert.Equal(t, models.FeedOK, h.Status)
	assert.Equal(t, 1.0851, h.LastPrice)

	h = m.Check(ctx)
	assert.Equal(t, models.FeedDegraded, h.Status)
	assert.Equal(t, "timeout", h.LastError)

	h = m.Check(ctx)
	assert.Equal(t, models.FeedDown, h.Status)
	assert.Equal(t, 2, h.ConsecutiveFailures)
	assert.Equal(t, 1.0851, h.LastPrice)

	h = m.Check(ctx)
	assert.Equal(t, models.FeedOK, h.Status)
	assert.Zero(t, h.ConsecutiveFailures)

	saved, err := LoadHealth(path)
	require.NoError(t, err)
	assert.Equal(t, models.FeedOK, saved.Status)
	assert.Equal(t, 1.0853, saved.LastPrice)
	f.AssertExpectations(t)
}

func TestMonitorObservePrice(t *testing.T) {
	m := NewMonitor(&fetcherMock{}, "EUR/USD", "", 2)
	at := time.Date(2025, 1, 6, 12, 0, 0, 0, time.UTC)

	m.ObservePrice("GBP/USD", 1.27, at)
	assert.Equal(t, models.FeedDown, m.Status().Status)

	m.ObservePrice("EUR/USD", 1.09, at)
	m.SetStreamConnected(true)
	st := m.Status()
	assert.Equal(t, models.FeedOK, st.Status)
	assert.Equal(t, 1.09, st.LastPrice)
	assert.True(t, st.StreamConnected)
	assert.Equal(t, at, st.LastSuccess)
}
