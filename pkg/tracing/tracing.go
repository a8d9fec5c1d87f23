// Package tracing — глобальный opentracing-трейсер (jaeger или noop) и хелперы для span.
package tracing

import (
	"context"
	"fmt"

	"signal_bot/pkg/logger"

	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics"
)

type Config struct {
	Enabled    bool    `yaml:"enabled"`
	Host       string  `yaml:"host" default:"localhost"`
	Port       int     `yaml:"port" default:"6831"`
	SampleRate float64 `yaml:"sample_rate" default:"1" validate:"gte=0,lte=1"`
	LogSpans   bool    `yaml:"log_spans"`
}

// Init ставит глобальный трейсер для service и возвращает функцию закрытия.
func Init(service string, conf Config) (func(), error) {
	if !conf.Enabled {
		opentracing.SetGlobalTracer(opentracing.NoopTracer{})
		return func() {}, nil
	}

	sampler := &jaegercfg.SamplerConfig{Type: "const", Param: 1}
	if conf.SampleRate < 1 {
		sampler = &jaegercfg.SamplerConfig{Type: "probabilistic", Param: conf.SampleRate}
	}

	cfg := jaegercfg.Configuration{
		ServiceName: service,
		Sampler:     sampler,
		Reporter: &jaegercfg.ReporterConfig{
			LogSpans:           conf.LogSpans,
			LocalAgentHostPort: fmt.Sprintf("%s:%d", conf.Host, conf.Port),
		},
	}

	tracer, closer, err := cfg.NewTracer(jaegercfg.Metrics(metrics.NullFactory))
	if err != nil {
		return nil, fmt.Errorf("jaeger tracer: %w", err)
	}
	opentracing.SetGlobalTracer(tracer)
	logger.Info("[TRACE] jaeger agent %s:%d, sample rate %.2f", conf.Host, conf.Port, conf.SampleRate)

	return func() {
		if err := closer.Close(); err != nil {
			logger.Error("[TRACE] close jaeger tracer: %v", err)
		}
	}, nil
}

func StartSpan(ctx context.Context, name string) (opentracing.Span, context.Context) {
	return opentracing.StartSpanFromContext(ctx, name)
}

// Finish закрывает span и помечает его ошибкой, если она есть.
func Finish(span opentracing.Span, err error) {
	if err != nil {
		ext.Error.Set(span, true)
		span.LogKV("event", "error", "message", err.Error())
	}
	span.Finish()
}
