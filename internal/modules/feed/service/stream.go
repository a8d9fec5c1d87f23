package service

import (
	"context"
	"net/url"
	"strings"
	"time"

	"signal_bot/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/tidwall/gjson"
)

const heartbeatEvery = 10 * time.Second

// PriceSink получает цены из стрима.
type PriceSink interface {
	ObservePrice(symbol string, price float64, at time.Time)
	SetStreamConnected(v bool)
}

// Stream — websocket котировок Twelve Data с переподключением.
type Stream struct {
	url     string
	apiKey  string
	symbols []string
	sink    PriceSink
	dialer  *websocket.Dialer
	backoff time.Duration
}

func NewStream(rawURL, apiKey string, symbols []string, sink PriceSink) *Stream {
	return &Stream{
		url:     rawURL,
		apiKey:  apiKey,
		symbols: symbols,
		sink:    sink,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		backoff: time.Second,
	}
}

// Run держит соединение до отмены ctx.
func (s *Stream) Run(ctx context.Context) {
	target, err := url.Parse(s.url)
	if err != nil {
		logger.Error("[WS] bad stream url %q: %v", s.url, err)
		return
	}
	q := target.Query()
	q.Set("apikey", s.apiKey)
	target.RawQuery = q.Encode()

	for {
		if err := s.session(ctx, target.String()); err != nil {
			logger.Warn("[WS] price stream: %v", err)
		}
		s.sink.SetStreamConnected(false)

		select {
		case <-ctx.Done():
			return
		case <-time.After(s.backoff):
		}
	}
}

func (s *Stream) session(ctx context.Context, target string) error {
	logger.Info("[WS] connect %d symbols", len(s.symbols))
	conn, _, err := s.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return err
	}
	defer func() { _ = conn.Close() }()

	sub := map[string]any{
		"action": "subscribe",
		"params": map[string]string{"symbols": strings.Join(s.symbols, ",")},
	}
	if err := conn.WriteJSON(sub); err != nil {
		return err
	}
	s.sink.SetStreamConnected(true)

	// heartbeat, иначе Twelve Data закрывает соединение
	done := make(chan struct{})
	defer close(done)
	go func() {
		t := time.NewTicker(heartbeatEvery)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
				_ = conn.Close()
				return
			case <-done:
				return
			case <-t.C:
				if err := conn.WriteJSON(map[string]string{"action": "heartbeat"}); err != nil {
					return
				}
			}
		}
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}

		ev := gjson.ParseBytes(msg)
		switch ev.Get("event").String() {
		case "price":
			at := time.Now()
			if ts := ev.Get("timestamp").Int(); ts > 0 {
				at = time.Unix(ts, 0)
			}
			s.sink.ObservePrice(ev.Get("symbol").String(), ev.Get("price").Float(), at)
		case "subscribe-status":
			logger.Info("[WS] subscribe status: %s", ev.Get("status").String())
		}
	}
}

