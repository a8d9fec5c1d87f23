package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"signal_bot/internal/models"
	"signal_bot/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate = validator.New()

// REST читает GET {api_base}/signal/latest у ядра сигналов.
type REST struct {
	base string
	http *http.Client
}

func NewREST(base string, timeout time.Duration) *REST {
	return &REST{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (r *REST) Name() string { return "rest" }

func (r *REST) Latest(ctx context.Context) (*models.Signal, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base+"/signal/latest", nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "fetch latest signal")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.Wrap(err, "read latest signal")
	}

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusForbidden:
		logger.Debug("[SOURCE] no signal available (http %d)", resp.StatusCode)
		return nil, nil
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("signal api: http %d", resp.StatusCode)
	}

	var sig models.Signal
	if err := sonic.Unmarshal(body, &sig); err != nil {
		return nil, errors.Wrap(err, "decode latest signal")
	}
	if err := validate.Struct(sig); err != nil {
		return nil, errors.Wrap(err, "invalid latest signal")
	}
	if sig.Source == "" {
		sig.Source = r.Name()
	}
	return &sig, nil
}
