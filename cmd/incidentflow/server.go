package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/incidentflow/api/handlers"
	"github.com/BaSui01/incidentflow/config"
	"github.com/BaSui01/incidentflow/internal/metrics"
	"github.com/BaSui01/incidentflow/internal/server"
	"github.com/BaSui01/incidentflow/llm"
	"github.com/BaSui01/incidentflow/slack"
	"github.com/BaSui01/incidentflow/store"
	"github.com/BaSui01/incidentflow/triage"
	"github.com/BaSui01/incidentflow/workflow"
)

// Server assembles the engine, its collaborators, and the HTTP surfaces.
type Server struct {
	cfg    *config.Config
	logger *zap.Logger

	httpManager    *server.Manager
	metricsManager *server.Manager

	reportHandler  *handlers.ReportHandler
	actionsHandler *handlers.ActionsHandler

	closeStore func() error
}

// NewServer wires all components from config.
func NewServer(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	s := &Server{cfg: cfg, logger: logger}

	ckptStore, closeStore, err := buildStore(cfg.Store, logger)
	if err != nil {
		return nil, err
	}
	s.closeStore = closeStore

	provider, err := llm.NewOpenAIProvider(llm.OpenAIConfig{
		APIKey:  cfg.LLM.APIKey,
		BaseURL: cfg.LLM.BaseURL,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create llm provider: %w", err)
	}

	var notifier triage.Notifier
	var updater handlers.MessageUpdater
	var verifier *slack.SignatureVerifier
	if cfg.Slack.BotToken != "" {
		client, err := slack.NewClient(slack.Config{BotToken: cfg.Slack.BotToken}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create slack client: %w", err)
		}
		notifier = client
		updater = client
		verifier, err = slack.NewSignatureVerifier(cfg.Slack.SigningSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to create signature verifier: %w", err)
		}
	} else {
		logger.Warn("slack bot token not configured, notifications disabled")
	}

	steps := triage.NewSteps(
		triage.NewLLMClassifier(provider, logger),
		triage.NewLLMAdvisor(provider, logger),
		notifier,
		buildRouting(cfg.Slack),
		logger,
	)

	collector := metrics.NewCollector("incidentflow", prometheus.DefaultRegisterer, logger)

	engine, err := triage.NewEngine(steps, ckptStore, logger,
		workflow.WithStepObserver(collector.RecordStepDuration))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}
	trigger := triage.NewResumeTrigger(engine, logger)

	s.reportHandler = handlers.NewReportHandler(engine, collector, logger)
	mux := http.NewServeMux()
	s.reportHandler.Register(mux)
	if verifier != nil {
		s.actionsHandler = handlers.NewActionsHandler(verifier, updater, trigger, collector, logger)
		s.actionsHandler.Register(mux)
	}

	serverCfg := server.DefaultConfig()
	serverCfg.Addr = cfg.Server.HTTPAddr
	serverCfg.ReadTimeout = cfg.Server.ReadTimeout
	serverCfg.WriteTimeout = cfg.Server.WriteTimeout
	serverCfg.ShutdownTimeout = cfg.Server.ShutdownTimeout
	s.httpManager = server.NewManager(handlers.WithMetrics(mux, collector), serverCfg, logger)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsCfg := server.DefaultConfig()
	metricsCfg.Addr = cfg.Server.MetricsAddr
	s.metricsManager = server.NewManager(metricsMux, metricsCfg, logger)

	return s, nil
}

// Run starts both servers and blocks until a shutdown signal or a server
// failure.
func (s *Server) Run() error {
	if err := s.httpManager.Start(); err != nil {
		return err
	}
	if err := s.metricsManager.Start(); err != nil {
		return err
	}
	s.logger.Info("incidentflow started",
		zap.String("http_addr", s.cfg.Server.HTTPAddr),
		zap.String("metrics_addr", s.cfg.Server.MetricsAddr))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		s.logger.Info("received signal", zap.String("signal", sig.String()))
	case err := <-s.httpManager.Err():
		if err != nil {
			s.logger.Error("http server failed", zap.Error(err))
		}
	case err := <-s.metricsManager.Err():
		if err != nil {
			s.logger.Error("metrics server failed", zap.Error(err))
		}
	}

	return s.shutdown()
}

func (s *Server) shutdown() error {
	ctx := context.Background()
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.httpManager.Shutdown(ctx) })
	g.Go(func() error { return s.metricsManager.Shutdown(ctx) })
	err := g.Wait()

	// Let in-flight runs reach their next checkpoint before closing the
	// store underneath them.
	s.reportHandler.Wait()
	if s.actionsHandler != nil {
		s.actionsHandler.Wait()
	}
	if s.closeStore != nil {
		if cerr := s.closeStore(); cerr != nil && err == nil {
			err = cerr
		}
	}

	s.logger.Info("shutdown complete")
	return err
}

// buildStore selects the checkpoint backend from config.
func buildStore(cfg config.StoreConfig, logger *zap.Logger) (workflow.Store, func() error, error) {
	switch cfg.Driver {
	case "sqlite":
		st, err := store.NewSQLite(cfg.SQLitePath, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		return st, st.Close, nil
	case "redis":
		st, err := store.NewRedis(store.RedisConfig{
			Addr:      cfg.Redis.Addr,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			PoolSize:  cfg.Redis.PoolSize,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open redis store: %w", err)
		}
		return st, st.Close, nil
	case "memory":
		return store.NewMemory(), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

// buildRouting converts the config channel map into the typed routing
// table.
func buildRouting(cfg config.SlackConfig) triage.Routing {
	channels := make(map[triage.Category]string, len(cfg.Channels))
	for name, channel := range cfg.Channels {
		c := triage.Category(name)
		if c.Valid() {
			channels[c] = channel
		}
	}
	return triage.Routing{Channels: channels, Default: cfg.DefaultChannel}
}
