package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"golang.org/x/sync/errgroup"

	orderserver "github.com/Apurer/costume-order-engine/go"
	platformobservability "github.com/Apurer/costume-order-engine/internal/platform/observability"
)

// Run boots the order engine HTTP API with the polling scheduler, stores and
// hand-off wired, and serves until ctx is cancelled.
func Run(ctx context.Context) error {
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.Settings{
		ServiceName: cfg.ServiceName,
		LogLevel:    cfg.LogLevel,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	stores, cleanupStores := BuildStores(ctx, cfg, logger)
	defer cleanupStores()
	events, closeEvents := BuildEventPublisher(ctx, cfg, logger)
	defer closeEvents()
	notifier, closeNotifier := BuildLogisticsNotifier(cfg, instruments)
	defer closeNotifier()

	engine := NewEngine(cfg, stores, notifier, events, instruments)

	router := gin.New()
	router.Use(gin.Recovery(), otelgin.Middleware(cfg.ServiceName))
	orderserver.NewRouterWithGinEngine(router, orderserver.ApiHandleFunctions{
		AdminOrdersAPI: orderserver.NewAdminOrdersAPI(engine.Snapshots, engine.Scheduler, engine.Lifecycle),
		StorefrontAPI:  orderserver.NewStorefrontAPI(engine.Snapshots),
	})
	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return engine.Scheduler.Run(gctx)
	})
	g.Go(func() error {
		logger.Info("order engine API listening", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("order engine API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
