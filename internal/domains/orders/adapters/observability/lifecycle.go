package observability

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/observability"

// Lifecycle decorates the lifecycle controller with tracing, logging, and metrics.
type Lifecycle struct {
	inner   ports.Lifecycle
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics lifecycleMetrics
}

type Option func(*options)

type options struct {
	tracer trace.Tracer
	logger *slog.Logger
	meter  metric.Meter
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithTracer(tr trace.Tracer) Option {
	return func(o *options) {
		o.tracer = tr
	}
}

func WithMeter(m metric.Meter) Option {
	return func(o *options) {
		o.meter = m
	}
}

func resolve(opts []Option) options {
	o := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}
	if o.tracer == nil {
		o.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return o
}

// NewLifecycle wraps the lifecycle controller.
func NewLifecycle(inner ports.Lifecycle, opts ...Option) ports.Lifecycle {
	o := resolve(opts)
	return &Lifecycle{
		inner:   inner,
		tracer:  o.tracer,
		logger:  o.logger,
		metrics: newLifecycleMetrics(o.meter),
	}
}

func (l *Lifecycle) Approve(ctx context.Context, orderID, approverID string) (*domain.OrderResult, error) {
	return l.observe(ctx, domain.TransitionApprove, orderID, func(ctx context.Context) (*domain.OrderResult, error) {
		return l.inner.Approve(ctx, orderID, approverID)
	}, slog.String("approver.id", approverID))
}

func (l *Lifecycle) MarkReady(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return l.observe(ctx, domain.TransitionMarkReady, orderID, func(ctx context.Context) (*domain.OrderResult, error) {
		return l.inner.MarkReady(ctx, orderID)
	})
}

func (l *Lifecycle) MarkShipped(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return l.observe(ctx, domain.TransitionMarkShipped, orderID, func(ctx context.Context) (*domain.OrderResult, error) {
		return l.inner.MarkShipped(ctx, orderID)
	})
}

func (l *Lifecycle) Delete(ctx context.Context, orderID string) (*domain.OrderResult, error) {
	return l.observe(ctx, domain.TransitionDelete, orderID, func(ctx context.Context) (*domain.OrderResult, error) {
		return l.inner.Delete(ctx, orderID)
	})
}

func (l *Lifecycle) observe(ctx context.Context, t domain.Transition, orderID string, call func(context.Context) (*domain.OrderResult, error), attrs ...slog.Attr) (*domain.OrderResult, error) {
	ctx, span := l.tracer.Start(ctx, "OrderLifecycle."+string(t),
		trace.WithAttributes(attribute.String("order.id", orderID), attribute.String("order.transition", string(t))))
	defer span.End()

	attrs = append(attrs, slog.String("order.id", orderID), slog.String("transition", string(t)))
	l.logInfo(ctx, "applying order transition", attrs...)
	result, err := call(ctx)
	if err != nil {
		l.metrics.record(ctx, t, outcomeOf(err))
		return nil, l.handleError(ctx, span, err, "order transition failed", attrs...)
	}
	outcome := "applied"
	if result != nil && result.NoOp {
		outcome = "noop"
	}
	span.SetAttributes(attribute.String("order.transition.outcome", outcome))
	l.metrics.record(ctx, t, outcome)
	l.logInfo(ctx, "order transition applied", append(attrs, slog.String("outcome", outcome))...)
	return result, nil
}

func (l *Lifecycle) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if l.logger == nil {
		return
	}
	l.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (l *Lifecycle) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if l.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	l.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (l *Lifecycle) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	l.logError(ctx, msg, err, attrs...)
	return err
}

func outcomeOf(err error) string {
	var guard *application.TransitionGuardViolation
	var write *application.TransitionWriteError
	var handoff *application.LogisticsHandoffError
	switch {
	case errors.As(err, &guard):
		return "rejected"
	case errors.As(err, &write):
		return "write_failed"
	case errors.As(err, &handoff):
		return "handoff_failed"
	case errors.Is(err, application.ErrOrderNotFound):
		return "not_found"
	default:
		return "error"
	}
}

type lifecycleMetrics struct {
	transitions metric.Int64Counter
}

func newLifecycleMetrics(m metric.Meter) lifecycleMetrics {
	if m == nil {
		return lifecycleMetrics{}
	}
	transitions, _ := m.Int64Counter("orders.lifecycle.transitions", metric.WithDescription("Number of lifecycle transitions by outcome"))
	return lifecycleMetrics{transitions: transitions}
}

func (m lifecycleMetrics) record(ctx context.Context, t domain.Transition, outcome string) {
	if m.transitions != nil {
		m.transitions.Add(ctx, 1, metric.WithAttributes(
			attribute.String("order.transition", string(t)),
			attribute.String("outcome", outcome),
		))
	}
}

var _ ports.Lifecycle = (*Lifecycle)(nil)
