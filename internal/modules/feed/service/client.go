package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"signal_bot/internal/metrics"
	"signal_bot/internal/models"
	"signal_bot/pkg/logger"
	"signal_bot/pkg/tracing"

	"github.com/pkg/errors"
	"github.com/sony/gobreaker"
	"github.com/tidwall/gjson"
	"golang.org/x/time/rate"
)

var (
	ErrNoAPIKey     = errors.New("twelve data api key is not set")
	ErrBreakerOpen  = errors.New("market data unavailable: circuit open")
	ErrBadTimeframe = errors.New("unsupported timeframe")
)

var intervals = map[string]string{
	"M1":  "1min",
	"M5":  "5min",
	"M15": "15min",
	"M30": "30min",
	"H1":  "1h",
	"H4":  "4h",
	"D1":  "1day",
}

// Interval — таймфрейм в формате Twelve Data.
func Interval(tf string) (string, error) {
	if v, ok := intervals[strings.ToUpper(tf)]; ok {
		return v, nil
	}
	return "", errors.Wrapf(ErrBadTimeframe, "%q", tf)
}

// APIError — ответ Twelve Data со status=error.
type APIError struct {
	Code    int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twelve data error %d: %s", e.Code, e.Message)
}

func (e *APIError) retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

type ClientConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	Retries           int
	RequestsPerMinute int
	FailureThreshold  int
}

// Client — REST клиент Twelve Data: таймаут, ретраи, rate limit и circuit breaker.
type Client struct {
	http    *http.Client
	baseURL string
	apiKey  string
	retries int
	backoff func(attempt int) time.Duration

	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Retries < 1 {
		cfg.Retries = 1
	}
	if cfg.RequestsPerMinute < 1 {
		cfg.RequestsPerMinute = 8
	}
	if cfg.FailureThreshold < 1 {
		cfg.FailureThreshold = 2
	}

	threshold := uint32(cfg.FailureThreshold)
	st := gobreaker.Settings{
		Name:    "twelvedata",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			// битый таймфрейм и прочие ошибки вызывающего — не сбой фида
			return err == nil || errors.Is(err, ErrBadTimeframe)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if to == gobreaker.StateOpen {
				metrics.FeedBreakerOpen.Set(1)
				logger.Error("[ALERT] market data unavailable: %s breaker %s -> %s", name, from, to)
				return
			}
			metrics.FeedBreakerOpen.Set(0)
			logger.Info("[FEED] %s breaker %s -> %s", name, from, to)
		},
	}

	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		retries: cfg.Retries,
		backoff: func(attempt int) time.Duration { return time.Duration(attempt+1) * 2 * time.Second },
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		breaker: gobreaker.NewCircuitBreaker(st),
	}
}

// Price — последняя цена символа.
func (c *Client) Price(ctx context.Context, symbol string) (float64, error) {
	body, err := c.get(ctx, "price", url.Values{"symbol": {symbol}})
	if err != nil {
		return 0, err
	}

	p := gjson.GetBytes(body, "price")
	if !p.Exists() {
		return 0, errors.Errorf("price: no price in response for %s", symbol)
	}
	price := p.Float()
	if price <= 0 {
		return 0, errors.Errorf("price: bad value %q for %s", p.String(), symbol)
	}
	metrics.LastPrice.WithLabelValues(symbol).Set(price)
	return price, nil
}

// TimeSeries — последние n свечей, от старых к новым.
func (c *Client) TimeSeries(ctx context.Context, symbol, timeframe string, n int) ([]models.Candle, error) {
	interval, err := Interval(timeframe)
	if err != nil {
		return nil, err
	}

	body, err := c.get(ctx, "time_series", url.Values{
		"symbol":     {symbol},
		"interval":   {interval},
		"outputsize": {fmt.Sprint(n)},
		"timezone":   {"UTC"},
	})
	if err != nil {
		return nil, err
	}

	values := gjson.GetBytes(body, "values").Array()
	if len(values) == 0 {
		return nil, errors.Errorf("time_series: no values for %s %s", symbol, interval)
	}

	out := make([]models.Candle, 0, len(values))
	// Twelve Data отдаёт от новых к старым
	for i := len(values) - 1; i >= 0; i-- {
		v := values[i]
		ts, err := parseDatetime(v.Get("datetime").String())
		if err != nil {
			logger.Warn("[FEED] skip bar %q: %v", v.Get("datetime").String(), err)
			continue
		}
		out = append(out, models.Candle{
			Time:  ts,
			Open:  v.Get("open").Float(),
			High:  v.Get("high").Float(),
			Low:   v.Get("low").Float(),
			Close: v.Get("close").Float(),
		})
	}
	return out, nil
}

func parseDatetime(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Errorf("bad datetime %q", s)
}

func (c *Client) get(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	span, ctx := tracing.StartSpan(ctx, "feed."+endpoint)
	span.SetTag("symbol", q.Get("symbol"))

	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.withRetry(ctx, endpoint, q)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = ErrBreakerOpen
	}
	tracing.Finish(span, err)

	if err != nil {
		metrics.FeedRequestsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, err
	}
	metrics.FeedRequestsTotal.WithLabelValues(endpoint, "ok").Inc()
	return res.([]byte), nil
}

func (c *Client) withRetry(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt < c.retries; attempt++ {
		body, err := c.do(ctx, endpoint, q)
		if err == nil {
			return body, nil
		}
		lastErr = err

		var apiErr *APIError
		if errors.As(err, &apiErr) && !apiErr.retryable() {
			return nil, err
		}
		if attempt == c.retries-1 {
			break
		}

		wait := c.backoff(attempt)
		logger.Warn("[FEED] %s attempt %d/%d failed: %v, retry in %s", endpoint, attempt+1, c.retries, err, wait)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil, errors.Wrapf(lastErr, "%s failed after %d attempts", endpoint, c.retries)
}

func (c *Client) do(ctx context.Context, endpoint string, q url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "rate limit")
	}

	q.Set("apikey", c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "do request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	if resp.StatusCode >= 300 {
		return nil, &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	// Twelve Data возвращает ошибки с HTTP 200
	if gjson.GetBytes(body, "status").String() == "error" {
		return nil, &APIError{
			Code:    int(gjson.GetBytes(body, "code").Int()),
			Message: gjson.GetBytes(body, "message").String(),
		}
	}
	return body, nil
}
