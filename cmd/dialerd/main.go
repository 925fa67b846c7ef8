package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"autodial_backend/internal/adapters"
	"autodial_backend/internal/ami"
	"autodial_backend/internal/calls"
	callsrepo "autodial_backend/internal/calls/repository"
	"autodial_backend/internal/campaigns"
	"autodial_backend/internal/db"
	"autodial_backend/internal/dispatch"
	"autodial_backend/internal/events"
	apphttp "autodial_backend/internal/http"
	"autodial_backend/internal/http/router"
	"autodial_backend/internal/notify"
	"autodial_backend/internal/operators"
	"autodial_backend/internal/routes"
	"autodial_backend/internal/statefeed"
	"autodial_backend/internal/storage"
	"autodial_backend/platform/config"
	platformdb "autodial_backend/platform/db"
	"autodial_backend/platform/logger"
	"autodial_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting dialer", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.Migrate(ctx, cfg)
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := platformdb.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	// Shared validator instance for dependency injection
	val := validator.New()

	// Named dial routes. An empty ROUTES_FILE yields an empty table and every
	// campaign runs on the global dial defaults.
	routeTable, err := routes.Load(cfg.GetRoutesFile())
	if err != nil {
		log.Error("failed to load routes file", "error", err, "path", cfg.GetRoutesFile())
		panic("failed to load routes file: " + err.Error())
	}
	if routeTable.Len() > 0 {
		log.Info("dial routes loaded", "count", routeTable.Len(), "routes", routeTable.Names())
	}

	// Telegram client for operator-facing messages; nil without a bot token.
	telegram := notify.NewTelegramClient(cfg, log)
	if telegram == nil {
		log.Warn("TELEGRAM_BOT_TOKEN not configured; progress messages disabled")
	}

	// Completion report mailer; nil unless SMTP and a recipient are configured.
	reports := notify.NewReportSender(cfg)

	// Object storage archive for raw campaign intake; nil without an endpoint.
	intakeArchive, err := storage.NewIntakeArchive(cfg, log)
	if err != nil {
		log.Error("failed to initialize intake archive", "error", err)
		panic("failed to initialize intake archive: " + err.Error())
	}
	if intakeArchive != nil {
		if err := withRetry(ctx, log, "ensure intake bucket", 5, 2*time.Second, func() error {
			return intakeArchive.EnsureBucket(ctx)
		}); err != nil {
			log.Error("failed to ensure intake bucket", "error", err, "bucket", cfg.GetMinioBucketIntake())
			panic("failed to ensure intake bucket: " + err.Error())
		}
		log.Info("intake archive initialized", "bucket", cfg.GetMinioBucketIntake())
	}

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	operatorsModule := operators.NewModule(pool, cfg, val, log)
	if err := operatorsModule.Service.EnsureBootstrap(ctx, cfg.GetBootstrapOperatorName(), cfg.GetBootstrapOperatorKey()); err != nil {
		log.Error("failed to bootstrap operator", "error", err)
		panic("failed to bootstrap operator: " + err.Error())
	}

	dispatchClient, err := dispatch.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize dispatch client", "error", err)
		panic("failed to initialize dispatch client: " + err.Error())
	}
	defer dispatchClient.Close()

	settingsReader := adapters.NewOperatorSettingsAdapter(operatorsModule.Repo)

	// The campaigns module reads call records through its own store interface;
	// the calls module feeds campaign counters through the tracker. Both sides
	// are satisfied by adapters so neither domain imports the other.
	callStore := adapters.NewCampaignCallStoreAdapter(callsrepo.New(pool))

	campaignDeps := campaigns.Deps{
		Calls:    callStore,
		Enqueuer: dispatchClient,
		Defaults: settingsReader,
		Routes:   routeTable,
	}
	// Optional collaborators only go into the interface fields when the
	// concrete client exists; a typed nil would defeat the services' checks.
	if telegram != nil {
		campaignDeps.Notifier = telegram
	}
	if intakeArchive != nil {
		campaignDeps.Archiver = intakeArchive
	}
	campaignsModule := campaigns.NewModule(pool, campaignDeps, eventBus, cfg, val, log)

	tracker := adapters.NewCampaignTrackerAdapter(campaignsModule.Tracker)
	callsModule := calls.NewModule(pool, tracker, eventBus, cfg, log)

	// Manager connection and the dial originator running over it.
	amiClient := ami.NewClient(cfg, log)
	originator := dispatch.NewAMIOriginator(amiClient, cfg, adapters.NewRoutePlanAdapter(routeTable))

	workerDeps := dispatch.Deps{
		Aggregator: campaignsModule.Tracker,
		Originator: originator,
		Settings:   settingsReader,
		Bus:        eventBus,
		Campaign:   cfg,
		Log:        log,
	}
	if telegram != nil {
		workerDeps.Notifier = telegram
	}
	worker, err := dispatch.NewWorker(cfg, pool, workerDeps)
	if err != nil {
		log.Error("failed to initialize dispatch worker", "error", err)
		panic("failed to initialize dispatch worker: " + err.Error())
	}

	// Notify module subscribes to domain events (not HTTP-facing).
	notifyModule := notify.NewModule(telegram, reports, campaignsModule.Tracker, log)
	notifyModule.RegisterHandlers(eventBus)

	// Optional MQTT state feed for external consumers.
	mqttPub, err := statefeed.NewMQTTPublisher(cfg)
	if err != nil {
		log.Error("failed to initialize mqtt publisher", "error", err)
		panic("failed to initialize mqtt publisher: " + err.Error())
	}
	if mqttPub != nil {
		defer mqttPub.Close()
		feed := statefeed.NewFeed(mqttPub, cfg, log)
		feed.RegisterHandlers(eventBus)
		log.Info("mqtt state feed enabled", "broker", cfg.GetMQTTBrokerURL(), "prefix", cfg.GetMQTTTopicPrefix())
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   platformdb.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			operatorsModule,
			campaignsModule,
			callsModule,
		},
	}

	engine := router.New(app)

	// ========================================================================
	// Run
	// ========================================================================

	// Shard workers first, then the manager session that feeds them.
	callsModule.Engine.Start(ctx)
	go func() {
		if err := amiClient.Run(ctx, callsModule.Engine.HandleEvent); err != nil {
			log.Error("ami client stopped", "error", err)
		}
	}()

	workerDone := make(chan struct{})
	go func() {
		worker.Run(ctx)
		close(workerDone)
	}()

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
			return
		}
		srvErr <- nil
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Error("http server shutdown failed", "error", err)
		}
		// The dispatch worker drains in-flight campaign jobs, the engine
		// drains its shard queues. Both watch the signal context.
		<-workerDone
		callsModule.Engine.Wait()
		log.Info("shutdown complete")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
