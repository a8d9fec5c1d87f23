package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"signal_bot/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restServer(t *testing.T, code int, body string) *REST {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signal/latest" {
			w.WriteHeader(http.StatusTeapot)
			return
		}
		w.WriteHeader(code)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return NewREST(srv.URL+"/", time.Second)
}

func TestREST_NoSignal(t *testing.T) {
	for _, code := range []int{http.StatusNotFound, http.StatusForbidden} {
		r := restServer(t, code, `{"status":"AWAITING_EXECUTION"}`)
		sig, err := r.Latest(context.Background())
		require.NoError(t, err)
		assert.Nil(t, sig, "http %d", code)
	}
}

func TestREST_ServerError(t *testing.T) {
	r := restServer(t, http.StatusInternalServerError, `oops`)
	sig, err := r.Latest(context.Background())
	assert.Error(t, err)
	assert.Nil(t, sig)
}

func TestREST_Signal(t *testing.T) {
	r := restServer(t, http.StatusOK, `{
		"signal_id":"live-20250106-001",
		"asset":"EUR/USD",
		"direction":"SELL",
		"confidence":72,
		"entry":[1.0840,1.0850],
		"tp":1.0820,
		"sl":1.0860,
		"validity":"ACTIVE",
		"timestamp":"2025-01-06T10:00:00Z"
	}`)

	sig, err := r.Latest(context.Background())
	require.NoError(t, err)
	require.NotNil(t, sig)
	assert.Equal(t, models.SideSell, sig.Direction)
	assert.Equal(t, models.Zone(1.0840, 1.0850), sig.Entry)
	assert.Equal(t, "rest", sig.Source)
}

func TestREST_InvalidBody(t *testing.T) {
	r := restServer(t, http.StatusOK, `{"asset":"EUR/USD","direction":"HOLD","confidence":50}`)
	_, err := r.Latest(context.Background())
	assert.Error(t, err)

	r = restServer(t, http.StatusOK, `not json`)
	_, err = r.Latest(context.Background())
	assert.Error(t, err)
}
