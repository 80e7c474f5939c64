// Package app is the composition root: it wires config, logging, both
// storage engines, the provider registry, the controller, the scheduler,
// the SSE hub, and the gin router into one runnable process — adapted from
// the teacher's internal/app/app.go.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	appHTTP "github.com/domainscout/core/internal/http"
	httpH "github.com/domainscout/core/internal/http/handlers"
	httpMW "github.com/domainscout/core/internal/http/middleware"
	"github.com/domainscout/core/internal/jobs/availability"
	"github.com/domainscout/core/internal/jobs/controller"
	"github.com/domainscout/core/internal/jobs/pricing"
	"github.com/domainscout/core/internal/jobs/scheduler"
	"github.com/domainscout/core/internal/notifier"
	"github.com/domainscout/core/internal/platform/config"
	"github.com/domainscout/core/internal/platform/logger"
	"github.com/domainscout/core/internal/platform/otelx"
	"github.com/domainscout/core/internal/providers"
	"github.com/domainscout/core/internal/repos"
	"github.com/domainscout/core/internal/sse"
	"github.com/domainscout/core/internal/store"
)

const serviceVersion = "0.1.0"

type App struct {
	Log        *logger.Logger
	Cfg        config.Config
	Server     *appHTTP.Server
	Controller *controller.Controller
	Scheduler  *scheduler.Scheduler
	Hub        *sse.Hub

	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	cfg, err := config.Load(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("load config: %w", err)
	}

	otelShutdown := otelx.Init(context.Background(), log, serviceVersion)

	indexDB, err := store.OpenIndex(cfg.PostgresDSN)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("open job index: %w", err)
	}
	indexRepo := repos.NewJobIndexRepo(indexDB)

	jobStores := store.NewJobStores(cfg.DataDir)

	reg, err := providers.NewRegistry(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init provider registry: %w", err)
	}

	checker := availability.NewHTTPChecker(os.Getenv("RDAP_BASE_URL"), 10*time.Second)
	priceLookup := pricing.NewHTTPLookup(os.Getenv("PRICING_BASE_URL"), 10*time.Second)
	email := notifier.NewNoop(log)

	ctrl := controller.New(
		log, jobStores, indexRepo, reg, email, cfg.Pricing,
		cfg.MaxBatches, cfg.TargetResults, cfg.BatchDelay,
		checker, priceLookup,
	)

	hub := sse.NewHub(log)
	if cfg.RedisURL != "" {
		bridge, err := sse.NewRedisBridge(log, cfg.RedisURL, "", hub)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis sse bridge: %w", err)
		}
		hub.SetBridge(bridge)
		if err := bridge.StartForwarder(context.Background()); err != nil {
			log.Sync()
			return nil, fmt.Errorf("start redis sse forwarder: %w", err)
		}
	}
	ctrl.SetStreamer(hub)

	sched := scheduler.New(log, indexRepo, ctrl, cfg.SchedulerPollInterval, cfg.SchedulerClaimLimit)

	srv := appHTTP.NewServer(appHTTP.RouterConfig{
		Auth:   httpMW.NewAuth(log, cfg.JWTSecretKey),
		Job:    httpH.NewJobHandler(ctrl, hub),
		Global: httpH.NewGlobalHandler(ctrl, indexRepo),
		Health: httpH.NewHealthHandler(),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Server:       srv,
		Controller:   ctrl,
		Scheduler:    sched,
		Hub:          hub,
		otelShutdown: otelShutdown,
	}, nil
}

// Start launches the scheduler ticker if configured; the HTTP server is
// run separately by the caller via Run.
func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	if a.Cfg.RunScheduler {
		go a.Scheduler.Run(ctx)
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
