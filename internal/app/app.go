package app

import (
	"context"
	"fmt"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/calmora/voice-backend/internal/auth"
	"github.com/calmora/voice-backend/internal/content"
	"github.com/calmora/voice-backend/internal/db"
	"github.com/calmora/voice-backend/internal/dialog"
	"github.com/calmora/voice-backend/internal/handlers"
	"github.com/calmora/voice-backend/internal/logger"
	"github.com/calmora/voice-backend/internal/observability"
	"github.com/calmora/voice-backend/internal/render"
	"github.com/calmora/voice-backend/internal/server"
	"github.com/calmora/voice-backend/internal/states"
	"github.com/calmora/voice-backend/internal/storage"
	"github.com/calmora/voice-backend/internal/telemetry"
)

const serviceName = "voice-backend"

type App struct {
	Log      *logger.Logger
	Cfg      Config
	Router   *gin.Engine
	Store    storage.Gateway
	Executor *dialog.Executor

	otelShutdown func(context.Context) error
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

	log.Info("Loading environment variables...")
	cfg := LoadConfig(log)

	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: serviceName,
		Environment: cfg.Env,
	})

	store, err := newStore(log, cfg)
	if err != nil {
		log.Sync()
		return nil, err
	}

	renderer, err := render.New(log, cfg.ViewsPath)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init renderer: %w", err)
	}

	engine := dialog.NewEngine(log, states.StateInitial, states.StateTerminal)
	states.Register(engine, cfg.QAEnabled)

	resolver := dialog.NewResolver(log, dialog.ResolverConfig{
		LaunchState:      "LaunchIntent",
		ExitState:        states.StateExit,
		SelectionState:   states.StateSelection,
		MediaStatusState: states.StateMediaStatus,
	})

	events := telemetry.NewSink(log)
	tier := auth.NewTierClassifier(log, cfg.JWTSecretKey)
	contentClient := content.NewClient(log, cfg.ContentAPIBase, cfg.ContentTimeout)

	pipeline := BuildPipeline(HookDeps{
		Log:          log,
		Store:        store,
		Content:      contentClient,
		Renderer:     renderer,
		Events:       events,
		Tier:         tier,
		SafetyMargin: cfg.SafetyMargin,
	})

	fault := dialog.NewFaultHandler(log, renderer, events)
	executor := dialog.NewExecutor(log, pipeline, engine, resolver, renderer, fault)

	router := server.NewRouter(server.RouterConfig{
		ServiceName:      serviceName,
		AlexaHandler:     handlers.NewAlexaHandler(log, executor, cfg.DefaultBudget),
		AssistantHandler: handlers.NewAssistantHandler(log, executor, cfg.DefaultBudget),
	})

	return &App{
		Log:          log,
		Cfg:          cfg,
		Router:       router,
		Store:        store,
		Executor:     executor,
		otelShutdown: otelShutdown,
	}, nil
}

func newStore(log *logger.Logger, cfg Config) (storage.Gateway, error) {
	switch cfg.StorageDriver {
	case "memory":
		log.Warn("Using in-memory storage; user records will not survive restarts")
		return storage.NewMemoryGateway(), nil
	case "redis":
		return storage.NewRedisGateway(log, cfg.RedisAddr)
	case "gorm", "postgres", "sqlite":
		gdb, err := db.New(log)
		if err != nil {
			return nil, err
		}
		return storage.NewGormGateway(gdb, log)
	default:
		return nil, fmt.Errorf("unknown STORAGE_DRIVER %q", cfg.StorageDriver)
	}
}

func (a *App) Run() error {
	if a == nil || a.Router == nil {
		return fmt.Errorf("app not initialized")
	}
	a.Log.Info("Starting HTTP server", "addr", a.Cfg.HTTPAddr)
	return a.Router.Run(a.Cfg.HTTPAddr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.otelShutdown != nil {
		_ = a.otelShutdown(context.Background())
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
