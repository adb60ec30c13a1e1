package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/Apurer/costume-order-engine/internal/app/api"
	ordersmemory "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/memory"
	orderdomain "github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	platformobservability "github.com/Apurer/costume-order-engine/internal/platform/observability"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := api.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	if cfg.PostgresDSN == "" {
		log.Fatal("POSTGRES_DSN not set; nothing to reconcile")
	}
	stores, cleanup := api.BuildStores(ctx, cfg, logger)
	defer cleanup()

	engine := api.NewEngine(cfg, stores, nil, ordersmemory.NewEventRecorder(0), &platformobservability.Instruments{Logger: logger})
	cycle, err := engine.Runner.RunCycle(ctx)
	if cycle == nil {
		log.Fatalf("reconciliation failed: %v", err)
	}
	if err != nil {
		logger.Warn("reconciliation reused stale data", slog.String("error", err.Error()))
	}

	snap := engine.Snapshots.Publish(cycle,
		orderdomain.MembershipFingerprint(cycle.Orders, orderdomain.FingerprintOrdered),
		orderdomain.StatusFingerprint(cycle.Orders, cycle.Payments))
	logger.Info("reconciliation completed",
		slog.Uint64("version", snap.Version),
		slog.Int("orders", len(snap.Orders)),
		slog.Int("dropped", cycle.Dropped),
		slog.Bool("degraded", snap.Degraded),
		slog.String("fingerprint.membership", snap.MembershipPrint),
		slog.String("fingerprint.status", snap.StatusPrint),
		slog.Int(string(orderdomain.ViewPending), len(snap.View(orderdomain.ViewPending))),
		slog.Int(string(orderdomain.ViewApproved), len(snap.View(orderdomain.ViewApproved))),
		slog.Int(string(orderdomain.ViewLogistics), len(snap.View(orderdomain.ViewLogistics))),
		slog.Int(string(orderdomain.ViewShipped), len(snap.View(orderdomain.ViewShipped))),
	)
}
