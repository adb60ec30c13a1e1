package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	logisticsclient "github.com/Apurer/costume-order-engine/internal/clients/http/logistics"
	ordersmemory "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/memory"
	ordersrabbitmq "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/messaging/rabbitmq"
	ordersobs "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/observability"
	orderspostgres "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/persistence/postgres"
	ordersworkflows "github.com/Apurer/costume-order-engine/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/costume-order-engine/internal/domains/orders/application"
	orderdomain "github.com/Apurer/costume-order-engine/internal/domains/orders/domain"
	ordersports "github.com/Apurer/costume-order-engine/internal/domains/orders/ports"
	"github.com/Apurer/costume-order-engine/internal/platform/migrations"
	platformobservability "github.com/Apurer/costume-order-engine/internal/platform/observability"
	platformpostgres "github.com/Apurer/costume-order-engine/internal/platform/postgres"
	platformrabbitmq "github.com/Apurer/costume-order-engine/internal/platform/rabbitmq"
)

// Stores groups the collaborators the engine reads from and writes to.
type Stores struct {
	Standard ordersports.StandardOrderSource
	Custom   ordersports.CustomOrderSource
	Ledger   ordersports.InvoiceLedger
	Writer   ordersports.OrderWriter
	Handoffs ordersports.HandoffStore
}

// MemoryStores backs every collaborator with the in-memory store.
func MemoryStores(store *ordersmemory.Store) Stores {
	return Stores{Standard: store, Custom: store, Ledger: store, Writer: store, Handoffs: ordersmemory.NewHandoffStore()}
}

// Engine is the wired reconciliation and lifecycle core shared by the processes.
type Engine struct {
	Snapshots *ordersapp.SnapshotStore
	Scheduler *ordersapp.Scheduler
	Runner    ordersports.CycleRunner
	Lifecycle ordersports.Lifecycle
}

// NewEngine wires reconciler, scheduler, snapshot store and lifecycle controller.
// A nil notifier disables the logistics hand-off.
func NewEngine(cfg Config, stores Stores, notifier ordersports.LogisticsNotifier, events ordersports.EventPublisher, instruments *platformobservability.Instruments) *Engine {
	logger := effectiveLogger(instruments)
	obsOpts := []ordersobs.Option{
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	}

	reconciler := ordersapp.NewReconciler(stores.Standard, stores.Custom, stores.Ledger,
		ordersapp.WithReconcilerLogger(logger),
		ordersapp.WithFetchTimeout(cfg.FetchTimeout),
		ordersapp.WithInvoicePageSize(cfg.InvoicePageSize),
		ordersapp.WithItemHints(ordersapp.NewItemHints()),
	)
	runner := ordersobs.NewCycleRunner(reconciler, obsOpts...)

	snapshots := ordersapp.NewSnapshotStore(orderdomain.DefaultDiscountTable())
	mode := orderdomain.FingerprintOrdered
	if cfg.FingerprintSorted {
		mode = orderdomain.FingerprintMembership
	}
	scheduler := ordersapp.NewScheduler(runner, snapshots,
		ordersapp.WithSchedulerLogger(logger),
		ordersapp.WithPollInterval(cfg.PollInterval),
		ordersapp.WithBackoff(cfg.InitialBackoff, cfg.MaxBackoff),
		ordersapp.WithFingerprintMode(mode),
	)

	controllerOpts := []ordersapp.ControllerOption{
		ordersapp.WithControllerLogger(logger),
		ordersapp.WithEventPublisher(events),
	}
	if notifier != nil {
		handoff := ordersapp.NewHandoffCoordinator(notifier, stores.Handoffs,
			ordersapp.WithHandoffLogger(logger),
			ordersapp.WithHandoffEvents(events),
		)
		controllerOpts = append(controllerOpts, ordersapp.WithLogisticsHandoff(handoff))
	}
	controller := ordersapp.NewController(stores.Writer, stores.Ledger, snapshots, controllerOpts...)

	return &Engine{
		Snapshots: snapshots,
		Scheduler: scheduler,
		Runner:    runner,
		Lifecycle: ordersobs.NewLifecycle(controller, obsOpts...),
	}
}

// BuildStores connects to PostgreSQL, or falls back to the in-memory store.
func BuildStores(ctx context.Context, cfg Config, logger *slog.Logger) (Stores, func()) {
	db, cleanup := platformpostgres.ConnectOrFallback(ctx, cfg.PostgresDSN, logger)
	if db == nil {
		return MemoryStores(ordersmemory.NewStore()), cleanup
	}
	if err := migrations.Run(db); err != nil {
		logger.Warn("failed to migrate orders schema, falling back to memory", slog.String("error", err.Error()))
		cleanup()
		return MemoryStores(ordersmemory.NewStore()), func() {}
	}
	repo := orderspostgres.NewRepository(db)
	logger.Info("order stores configured with postgres")
	return Stores{
		Standard: repo,
		Custom:   repo,
		Ledger:   repo,
		Writer:   repo,
		Handoffs: orderspostgres.NewHandoffStore(db),
	}, cleanup
}

// BuildEventPublisher publishes to RabbitMQ when configured, else records in memory.
func BuildEventPublisher(ctx context.Context, cfg Config, logger *slog.Logger) (ordersports.EventPublisher, func()) {
	if cfg.RabbitMQURL == "" {
		logger.Info("RABBITMQ_URL not set, recording order events in memory")
		return ordersmemory.NewEventRecorder(cfg.EventHistoryLimit), func() {}
	}
	conn, err := platformrabbitmq.Connect(ctx, cfg.RabbitMQURL)
	if err != nil {
		logger.Warn("rabbitmq unavailable, recording order events in memory", slog.String("error", err.Error()))
		return ordersmemory.NewEventRecorder(cfg.EventHistoryLimit), func() {}
	}
	ch, err := platformrabbitmq.OpenTopicExchange(conn, cfg.RabbitMQExchange)
	if err != nil {
		_ = conn.Close()
		logger.Warn("rabbitmq exchange unavailable, recording order events in memory", slog.String("error", err.Error()))
		return ordersmemory.NewEventRecorder(cfg.EventHistoryLimit), func() {}
	}
	publisher := ordersrabbitmq.NewEventPublisher(ch, cfg.RabbitMQExchange)
	logger.Info("order events published to rabbitmq", slog.String("exchange", cfg.RabbitMQExchange))
	return publisher, func() {
		_ = publisher.Close()
		_ = conn.Close()
	}
}

// BuildLogisticsNotifier prefers the durable Temporal hand-off, then a direct HTTP
// call, and returns nil when logistics is not configured at all.
func BuildLogisticsNotifier(cfg Config, instruments *platformobservability.Instruments) (ordersports.LogisticsNotifier, func()) {
	logger := effectiveLogger(instruments)
	temporalClient, err := ConnectTemporalClient(cfg, instruments)
	if err == nil {
		logger.Info("logistics hand-off runs on Temporal", slog.String("namespace", cfg.TemporalNamespace))
		return ordersworkflows.NewTemporalLogisticsHandoff(temporalClient), temporalClient.Close
	}
	logger.Warn("Temporal unavailable, handing off to logistics inline", slog.String("error", err.Error()))
	notifier, err := NewLogisticsClient(cfg)
	if err != nil {
		logger.Warn("logistics hand-off disabled", slog.String("error", err.Error()))
		return nil, func() {}
	}
	return notifier, func() {}
}

// NewLogisticsClient builds the HTTP logistics notifier.
func NewLogisticsClient(cfg Config) (*logisticsclient.Client, error) {
	if cfg.LogisticsBaseURL == "" {
		return nil, errors.New("LOGISTICS_BASE_URL not set")
	}
	return logisticsclient.NewClient(cfg.LogisticsBaseURL, nil)
}

// ConnectTemporalClient dials Temporal with tracing and structured logging.
func ConnectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(temporalotel.TracerOptions{
		Tracer: instruments.Tracer("temporal-client"),
	})
	if err != nil {
		return nil, fmt.Errorf("temporal tracing interceptor: %w", err)
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.Default()
}
