package observability

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

// CycleRunner decorates reconciliation cycles with a span, metrics and debug logs.
// Cycles run every poll interval, so successes log at debug level.
type CycleRunner struct {
	inner   ports.CycleRunner
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics cycleMetrics
}

// NewCycleRunner wraps a cycle runner.
func NewCycleRunner(inner ports.CycleRunner, opts ...Option) ports.CycleRunner {
	o := resolve(opts)
	return &CycleRunner{
		inner:   inner,
		tracer:  o.tracer,
		logger:  o.logger,
		metrics: newCycleMetrics(o.meter),
	}
}

func (c *CycleRunner) RunCycle(ctx context.Context) (*ports.Cycle, error) {
	ctx, span := c.tracer.Start(ctx, "OrderReconciler.RunCycle")
	defer span.End()

	cycle, err := c.inner.RunCycle(ctx)
	if cycle != nil {
		span.SetAttributes(
			attribute.Int("orders.count", len(cycle.Orders)),
			attribute.Int("orders.dropped", cycle.Dropped),
		)
		c.metrics.recordDropped(ctx, cycle.Dropped)
	}

	var partial *application.PartialMergeWarning
	switch {
	case err == nil:
		c.metrics.recordCycle(ctx, "ok")
		attrs := []slog.Attr{}
		if cycle != nil {
			attrs = append(attrs, slog.Int("orders", len(cycle.Orders)), slog.Int("dropped", cycle.Dropped))
		}
		c.logger.LogAttrs(ctx, slog.LevelDebug, "reconciliation cycle finished", attrs...)
	case errors.Is(err, context.Canceled):
		c.metrics.recordCycle(ctx, "cancelled")
	case errors.As(err, &partial):
		c.metrics.recordCycle(ctx, "partial")
		for _, src := range partial.Failed {
			c.metrics.recordFailure(ctx, src)
		}
		span.SetStatus(codes.Error, err.Error())
		c.logger.LogAttrs(ctx, slog.LevelWarn, "reconciliation cycle published stale data", slog.String("error", err.Error()))
	default:
		c.metrics.recordCycle(ctx, "failed")
		var fetchErr *application.SourceFetchError
		if errors.As(err, &fetchErr) {
			c.metrics.recordFailure(ctx, fetchErr.Source)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.logger.LogAttrs(ctx, slog.LevelWarn, "reconciliation cycle failed", slog.String("error", err.Error()))
	}
	return cycle, err
}

type cycleMetrics struct {
	cycles   metric.Int64Counter
	failures metric.Int64Counter
	dropped  metric.Int64Counter
}

func newCycleMetrics(m metric.Meter) cycleMetrics {
	if m == nil {
		return cycleMetrics{}
	}
	cycles, _ := m.Int64Counter("orders.reconcile.cycles", metric.WithDescription("Number of reconciliation cycles by outcome"))
	failures, _ := m.Int64Counter("orders.reconcile.failures", metric.WithDescription("Number of failed source fetches"))
	dropped, _ := m.Int64Counter("orders.reconcile.dropped", metric.WithDescription("Number of source records dropped for missing identity"))
	return cycleMetrics{cycles: cycles, failures: failures, dropped: dropped}
}

func (m cycleMetrics) recordCycle(ctx context.Context, outcome string) {
	if m.cycles != nil {
		m.cycles.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}
}

func (m cycleMetrics) recordFailure(ctx context.Context, src ports.Source) {
	if m.failures != nil {
		m.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(src))))
	}
}

func (m cycleMetrics) recordDropped(ctx context.Context, n int) {
	if m.dropped != nil && n > 0 {
		m.dropped.Add(ctx, int64(n))
	}
}

var _ ports.CycleRunner = (*CycleRunner)(nil)
