package observability

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	"github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
)

type stubLifecycle struct {
	result *domain.OrderResult
	err    error
}

func (s stubLifecycle) Approve(context.Context, string, string) (*domain.OrderResult, error) {
	return s.result, s.err
}

func (s stubLifecycle) MarkReady(context.Context, string) (*domain.OrderResult, error) {
	return s.result, s.err
}

func (s stubLifecycle) MarkShipped(context.Context, string) (*domain.OrderResult, error) {
	return s.result, s.err
}

func (s stubLifecycle) Delete(context.Context, string) (*domain.OrderResult, error) {
	return s.result, s.err
}

type stubRunner struct {
	cycle *ports.Cycle
	err   error
}

func (s stubRunner) RunCycle(context.Context) (*ports.Cycle, error) {
	return s.cycle, s.err
}

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	totals := map[string]int64{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				totals[m.Name] += dp.Value
			}
		}
	}
	return totals
}

func newReader() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func TestLifecycle_RecordsTransitions(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("test")
	ctx := context.Background()

	ok := NewLifecycle(stubLifecycle{result: &domain.OrderResult{Status: domain.StatusApproved}}, WithMeter(meter))
	result, err := ok.Approve(ctx, "o1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusApproved, result.Status)

	guardErr := &application.TransitionGuardViolation{Transition: domain.TransitionMarkReady, OrderID: "o1", Err: domain.ErrTransitionNotAllowed}
	failing := NewLifecycle(stubLifecycle{err: guardErr}, WithMeter(meter))
	_, err = failing.MarkReady(ctx, "o1")
	require.ErrorIs(t, err, domain.ErrTransitionNotAllowed)

	require.Equal(t, int64(2), collect(t, reader)["orders.lifecycle.transitions"])
}

func TestCycleRunner_RecordsOutcomes(t *testing.T) {
	reader, provider := newReader()
	meter := provider.Meter("test")
	ctx := context.Background()

	partial := &application.PartialMergeWarning{
		Failed: []ports.Source{ports.SourceCustom},
		Errs:   []error{&application.SourceFetchError{Source: ports.SourceCustom, Err: errors.New("down")}},
	}
	runner := NewCycleRunner(stubRunner{cycle: &ports.Cycle{Dropped: 2}, err: partial}, WithMeter(meter))
	cycle, err := runner.RunCycle(ctx)
	require.NotNil(t, cycle)
	require.ErrorAs(t, err, &partial)

	_, err = NewCycleRunner(stubRunner{cycle: &ports.Cycle{}}, WithMeter(meter)).RunCycle(ctx)
	require.NoError(t, err)

	totals := collect(t, reader)
	require.Equal(t, int64(2), totals["orders.reconcile.cycles"])
	require.Equal(t, int64(1), totals["orders.reconcile.failures"])
	require.Equal(t, int64(2), totals["orders.reconcile.dropped"])
}

func TestOutcomeOf(t *testing.T) {
	require.Equal(t, "write_failed", outcomeOf(&application.TransitionWriteError{Err: errors.New("x")}))
	require.Equal(t, "handoff_failed", outcomeOf(&application.LogisticsHandoffError{Err: errors.New("x")}))
	require.Equal(t, "not_found", outcomeOf(application.ErrOrderNotFound))
	require.Equal(t, "error", outcomeOf(errors.New("x")))
}
