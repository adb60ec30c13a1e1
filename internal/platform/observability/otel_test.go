package observability

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInstruments_NilSafe(t *testing.T) {
	var instruments *Instruments
	require.NotNil(t, instruments.Tracer("orders"))
	require.NotNil(t, instruments.Meter("orders"))
}

func TestInit_ReturnsShutdown(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318")
	instruments, shutdown, err := Init(context.Background(), Settings{ServiceName: "orders-test", LogLevel: slog.LevelWarn, Environment: "test"})
	require.NoError(t, err)
	require.NotNil(t, instruments.Logger)
	require.False(t, instruments.Logger.Enabled(context.Background(), slog.LevelInfo))
	require.NoError(t, shutdown(context.Background()))
}
