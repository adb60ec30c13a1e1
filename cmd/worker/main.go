package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/costume-order-engine/internal/app/api"
	logisticsactivities "github.com/Apurer/costume-order-engine/internal/durable/temporal/activities/logistics"
	logisticsworkflows "github.com/Apurer/costume-order-engine/internal/durable/temporal/workflows/logistics"
	platformobservability "github.com/Apurer/costume-order-engine/internal/platform/observability"
)

func main() {
	ctx := context.Background()
	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.Settings{
		ServiceName: cfg.ServiceName + "-worker",
		LogLevel:    cfg.LogLevel,
	})
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	notifier, err := api.NewLogisticsClient(cfg)
	if err != nil {
		logger.Error("logistics client not configured", slog.String("error", err.Error()))
		os.Exit(1)
	}
	handoffActivities := logisticsactivities.NewActivities(notifier)

	temporalClient, err := api.ConnectTemporalClient(cfg, instruments)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, logisticsworkflows.HandoffTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(logisticsworkflows.HandoffWorkflow, workflow.RegisterOptions{Name: logisticsworkflows.HandoffWorkflowName})
	w.RegisterActivityWithOptions(handoffActivities.NotifyLogistics, activity.RegisterOptions{Name: logisticsactivities.NotifyLogisticsActivityName})

	logger.Info("worker listening", slog.String("taskQueue", logisticsworkflows.HandoffTaskQueue), slog.String("namespace", cfg.TemporalNamespace))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}
