// Package main is the entry point of the progression API server.
//
// The server owns the HTTP API, the in-process event bus with its
// handlers (league standings feed, marketing contact sync) and the
// scheduler that rolls league seasons over.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/legacy-quest/progression-engine/config"
	"github.com/legacy-quest/progression-engine/internal/application/command"
	"github.com/legacy-quest/progression-engine/internal/application/eventhandler"
	"github.com/legacy-quest/progression-engine/internal/application/query"
	"github.com/legacy-quest/progression-engine/internal/bootstrap"
	"github.com/legacy-quest/progression-engine/internal/domain/shared"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/content"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/external/marketing"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/messaging"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/metrics"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/scheduler"
	"github.com/legacy-quest/progression-engine/internal/infrastructure/scheduler/jobs"
	httpapi "github.com/legacy-quest/progression-engine/internal/interface/http"
	"github.com/legacy-quest/progression-engine/internal/interface/http/handlers"
	"github.com/legacy-quest/progression-engine/pkg/circuitbreaker"
	"github.com/legacy-quest/progression-engine/pkg/logger"
	"github.com/legacy-quest/progression-engine/pkg/timeutil"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. Configuration & logging
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg.Log, cfg.App.Name, cfg.App.Version)
	log.Info("starting progression server",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("timezone", cfg.App.Location.String()),
		logger.String("storage", cfg.StorageDriver()),
	)

	m := metrics.New()

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Storage & content
	// ─────────────────────────────────────────────────────────────────────────
	storage, err := bootstrap.OpenStorage(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("open storage: %w", err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			log.Warn("storage close failed", logger.Err(err))
		}
	}()

	catalog, err := content.Load(cfg.Game.CatalogPath)
	if err != nil {
		return fmt.Errorf("load mission catalog: %w", err)
	}
	log.Info("mission catalog loaded", logger.Int("missions", len(catalog.Missions())))

	// ─────────────────────────────────────────────────────────────────────────
	// 3. Event bus
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.AsyncMode = cfg.Events.AsyncMode
	busCfg.WorkerPoolSize = cfg.Events.Workers
	busCfg.Logger = log
	busCfg.Metrics = m
	bus := messaging.NewInMemoryEventBus(busCfg)

	dispatcher := messaging.NewDispatcher(messaging.DispatcherConfig{
		EventBus:            bus,
		DeadLetterQueueSize: cfg.Events.DeadLetterSize,
		Logger:              log,
		Metrics:             m,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Application layer
	// ─────────────────────────────────────────────────────────────────────────
	clock := timeutil.SystemClock{}
	deps := command.Deps{
		Profiles:  storage.Profiles,
		Locker:    storage.Locker,
		Publisher: bus,
		Recorder:  m,
		Flags:     cfg.Features,
		Clock:     clock,
		Logger:    log,
		Location:  cfg.App.Location,
		LockTTL:   cfg.Game.LockTTL,
	}
	missions := command.MissionDeps{Deps: deps, Catalog: catalog, Runs: storage.Runs}
	reads := query.Deps{
		Profiles:  storage.Profiles,
		Standings: storage.Standings,
		Catalog:   catalog,
		Runs:      storage.Runs,
		Clock:     clock,
		Logger:    log,
		Location:  cfg.App.Location,
	}
	rollover := command.NewRolloverSeasonHandler(deps, storage.Standings)

	// ─────────────────────────────────────────────────────────────────────────
	// 5. Event handlers
	// ─────────────────────────────────────────────────────────────────────────
	breakerHook := func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
		m.CircuitState(name, int(to))
	}

	mktCfg := marketing.DefaultClientConfig(cfg.Marketing.WebhookURL)
	mktCfg.APIKey = cfg.Marketing.APIKey
	mktCfg.IncludeEmail = cfg.Marketing.IncludeEmail
	mktCfg.Timeout = cfg.Marketing.Timeout
	mktCfg.Breaker = circuitbreaker.WebhookBreaker(breakerHook)
	mktCfg.Logger = log
	mkt := marketing.NewClient(mktCfg)
	if !mkt.Enabled() {
		log.Info("marketing webhook not configured, contact sync disabled")
	}

	feed := eventhandler.NewStandingsFeedHandler(storage.Standings, eventhandler.StandingsFeedConfig{
		Location: cfg.App.Location,
		Logger:   log,
	})
	contacts := eventhandler.NewContactSyncHandler(mkt, eventhandler.ContactSyncConfig{
		Flags:    cfg.Features,
		Recorder: m,
		Logger:   log,
	})

	registrations := []struct {
		event shared.EventType
		reg   messaging.HandlerRegistration
	}{
		{shared.EventXPCredited, messaging.HandlerRegistration{Name: "standings_feed", Handler: feed.Handle, Timeout: cfg.Events.HandlerTimeout}},
		{shared.EventProfileSignedUp, messaging.HandlerRegistration{Name: "contact_sync", Handler: contacts.Handle, Timeout: 3 * cfg.Marketing.Timeout}},
	}
	for _, r := range registrations {
		if err := dispatcher.RegisterHandler(r.event, r.reg); err != nil {
			return fmt.Errorf("register %s: %w", r.reg.Name, err)
		}
	}
	if err := dispatcher.Start(); err != nil {
		return fmt.Errorf("start dispatcher: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 6. Scheduler
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:       log,
		Timezone:     cfg.App.Location,
		TickInterval: cfg.Scheduler.TickInterval,
	})
	rolloverJob := jobs.NewSeasonRolloverJob(rollover, cfg.League.RolloverTimeout, log)
	rolloverSchedule, err := newRolloverSchedule(cfg.League, cfg.App.Location)
	if err != nil {
		return fmt.Errorf("rollover schedule: %w", err)
	}
	if err := sched.Register(rolloverJob, rolloverSchedule); err != nil {
		return fmt.Errorf("register rollover job: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. Health checks
	// ─────────────────────────────────────────────────────────────────────────
	health := handlers.NewCompositeHealthChecker(cfg.App.Version)
	storageBreaker := circuitbreaker.StorageBreaker(breakerHook)
	health.AddCheck("profiles", func(ctx context.Context) error {
		return storageBreaker.Execute(ctx, storage.Profiles.Ping)
	})
	if storage.Redis != nil {
		health.AddCheck("redis", handlers.PingCheck(storage.Redis))
	}
	if dlq := dispatcher.DeadLetterQueue(); dlq != nil {
		health.AddSoftCheck("dead_letters", func(context.Context) error {
			if n := dlq.Size(); n > 0 {
				return fmt.Errorf("%d events in dead letter queue", n)
			}
			return nil
		})
	}
	health.AddSoftCheck("scheduler", func(context.Context) error {
		if cfg.Scheduler.Enabled && !sched.IsRunning() {
			return errors.New("scheduler is not running")
		}
		return nil
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 8. HTTP server
	// ─────────────────────────────────────────────────────────────────────────
	httpCfg := httpapi.DefaultConfig()
	httpCfg.Host = cfg.HTTP.Host
	httpCfg.Port = cfg.HTTP.Port
	httpCfg.ReadTimeout = cfg.HTTP.ReadTimeout
	httpCfg.WriteTimeout = cfg.HTTP.WriteTimeout
	httpCfg.IdleTimeout = cfg.HTTP.IdleTimeout
	httpCfg.EnableCORS = cfg.HTTP.EnableCORS
	httpCfg.AllowedOrigins = cfg.HTTP.AllowedOrigins
	httpCfg.EnableMetrics = cfg.HTTP.EnableMetrics
	httpCfg.RateLimitPerMinute = cfg.HTTP.RateLimitPerMinute

	server := httpapi.NewServer(httpCfg, httpapi.Dependencies{
		ClaimStreak:    command.NewClaimStreakHandler(deps),
		Signup:         command.NewSignupHandler(deps),
		SyncProgress:   command.NewSyncProgressHandler(deps),
		IssueSession:   command.NewIssueSessionHandler(deps),
		StartMission:   command.NewStartMissionHandler(missions),
		AdvanceMission: command.NewAdvanceMissionHandler(missions),
		AbandonMission: command.NewAbandonMissionHandler(missions),
		GetStreak:      query.NewGetStreakHandler(reads),
		GetProfile:     query.NewGetProfileHandler(reads),
		GetLeague:      query.NewGetLeagueStandingHandler(reads),
		ListMissions:   query.NewListMissionsHandler(reads),
		GetRun:         query.NewGetRunHandler(reads),
		HealthChecker:  health,
		Metrics:        m,
		Logger:         log,
		Clock:          clock,
		Demo:           storage.Demo,
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 9. Run until signalled
	// ─────────────────────────────────────────────────────────────────────────
	if cfg.Scheduler.Enabled {
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		// Seasons that ended while the server was down are closed now
		// rather than at the next scheduled run.
		go func() {
			if _, err := sched.RunNow(ctx, rolloverJob.Name()); err != nil {
				log.Warn("startup rollover failed", logger.Err(err))
			}
		}()
	}
	serverErr := server.StartAsync()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil {
			log.Error("http server failed", logger.Err(err))
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 10. Graceful shutdown: stop intake first, then drain.
	// ─────────────────────────────────────────────────────────────────────────
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	uptime := server.Uptime()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", logger.Err(err))
	}
	if sched.IsRunning() {
		if err := sched.Stop(); err != nil {
			log.Warn("scheduler stop failed", logger.Err(err))
		}
	}
	if err := bus.Close(); err != nil {
		log.Warn("event bus close failed", logger.Err(err))
	}
	if err := dispatcher.Stop(); err != nil {
		log.Warn("dispatcher stop failed", logger.Err(err))
	}

	log.Info("server stopped", logger.Duration("uptime", uptime))
	return nil
}

// newRolloverSchedule builds the rollover job's schedule: the cron line in
// loc, or the plain interval when cron is switched off.
func newRolloverSchedule(c config.LeagueConfig, loc *time.Location) (scheduler.Schedule, error) {
	if !c.CronEnabled() {
		return scheduler.NewIntervalSchedule(c.RolloverInterval), nil
	}
	ce, err := scheduler.ParseCronExpressionIn(c.RolloverCron, loc)
	if err != nil {
		return nil, err
	}
	return ce, nil
}
