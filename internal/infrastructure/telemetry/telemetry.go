package telemetry

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/kctmenswear/storefront/internal/infrastructure/config"
)

// Providers bundles the trace, metric and log providers
type Providers struct {
	Tracer   *TracerProvider
	Meter    *MeterProvider
	Logs     *LoggerProvider
	Metrics  *StoreMetrics
	Profiler *Profiler
}

// Setup creates every provider from cfg. Disabled signals use no-op providers.
func Setup(ctx context.Context, cfg config.TelemetryConfig, logger *zap.Logger) (*Providers, error) {
	tp, err := NewTracerProvider(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	mp, err := NewMeterProvider(ctx, cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	lp, err := NewLoggerProvider(ctx, cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		return nil, err
	}
	metrics, err := NewStoreMetrics(mp.Meter(TracerName))
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, err
	}
	profiler, err := NewProfiler(cfg, logger)
	if err != nil {
		_ = tp.Shutdown(ctx)
		_ = mp.Shutdown(ctx)
		_ = lp.Shutdown(ctx)
		return nil, err
	}
	tp.EnableSpanProfiles(profiler)
	return &Providers{Tracer: tp, Meter: mp, Logs: lp, Metrics: metrics, Profiler: profiler}, nil
}

// Shutdown flushes and stops every provider
func (p *Providers) Shutdown(ctx context.Context) error {
	return errors.Join(
		p.Tracer.Shutdown(ctx),
		p.Meter.Shutdown(ctx),
		p.Logs.Shutdown(ctx),
		p.Profiler.Stop(),
	)
}
