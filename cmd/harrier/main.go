// Harrier - Automated insurance claim adjudication.
// Copyright (c) 2025 opensource.finance
// Licensed under the Apache License 2.0

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/opensource-finance/harrier/internal/alert"
	"github.com/opensource-finance/harrier/internal/analysis"
	"github.com/opensource-finance/harrier/internal/api"
	"github.com/opensource-finance/harrier/internal/awsutil"
	"github.com/opensource-finance/harrier/internal/bus"
	"github.com/opensource-finance/harrier/internal/cache"
	"github.com/opensource-finance/harrier/internal/claims"
	"github.com/opensource-finance/harrier/internal/config"
	"github.com/opensource-finance/harrier/internal/domain"
	"github.com/opensource-finance/harrier/internal/history"
	"github.com/opensource-finance/harrier/internal/model"
	"github.com/opensource-finance/harrier/internal/narrative"
	"github.com/opensource-finance/harrier/internal/notify"
	"github.com/opensource-finance/harrier/internal/pipeline"
	"github.com/opensource-finance/harrier/internal/repository"
	"github.com/opensource-finance/harrier/internal/rules"
	"github.com/opensource-finance/harrier/internal/scoring"
	"github.com/opensource-finance/harrier/internal/vertex"
	"github.com/opensource-finance/harrier/internal/worker"
)

// Version information (set via ldflags)
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := newLogger(os.Stdout, cfg.Logging)
	slog.SetDefault(logger)

	slog.Info("starting harrier",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
		"document_analyzer", cfg.Providers.DocumentAnalyzer,
		"narrative", cfg.Providers.Narrative,
		"mailer", cfg.Notify.Mailer,
	)

	if cfg.Tracing.Enabled {
		slog.Info("tracing enabled", "service", cfg.Tracing.ServiceName)
	} else {
		otel.SetTracerProvider(noop.NewTracerProvider())
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		slog.Error("harrier stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("harrier shutdown complete")
}

func run(ctx context.Context, cfg *domain.Config, logger *slog.Logger) error {
	alerts, err := alert.New(cfg.Alerting)
	if err != nil {
		return fmt.Errorf("failed to initialize alerting: %w", err)
	}
	defer alerts.Flush(2 * time.Second)

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	providers, err := newProviders(ctx, cfg.Providers, cfg.Notify)
	if err != nil {
		return err
	}
	defer providers.Close()

	historySvc := history.NewService(repo, cfg.Scoring.HistoryWindow)
	var features pipeline.FeatureSource = historySvc
	if !cfg.Scoring.HistoryFeatures {
		features = history.ZeroFeatures{}
		slog.Info("history features disabled, model sees a cold-start claimant")
	}

	engine, err := rules.NewEngine(cfg.Rules, historySvc, 100)
	if err != nil {
		return fmt.Errorf("failed to initialize rule engine: %w", err)
	}
	defer engine.Close()
	if n, err := engine.ReloadFromStore(ctx, repo); err != nil {
		slog.Warn("failed to load custom rules, starting with builtin checks only", "error", err)
	} else if n == 0 {
		slog.Info("no custom rules in database - configure via POST /rules API")
	} else {
		slog.Info("custom rules loaded", "rules_count", n)
	}

	scorer, err := scoring.New(cfg.Scoring)
	if err != nil {
		return fmt.Errorf("failed to initialize risk scorer: %w", err)
	}

	analyzer, err := providers.analyzer(cfg.Providers)
	if err != nil {
		return err
	}
	narrativeAnalyzer, err := providers.narrative(cfg.Providers)
	if err != nil {
		return err
	}

	mailer, err := providers.mailer(cfg.Notify, logger)
	if err != nil {
		return err
	}
	notifier := notify.NewService(repo, busImpl, mailer, cfg.Notify, logger)
	dispatcher := notify.NewDispatcher(notifier, busImpl, logger)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start notification dispatcher: %w", err)
	}
	defer dispatcher.Stop()

	proc, err := pipeline.New(cfg.Pipeline, pipeline.Deps{
		Store:      repo,
		Rules:      engine,
		Scorer:     scorer,
		Analyzer:   analyzer,
		Classifier: analysis.NewKeywordClassifier(),
		Narrative:  narrativeAnalyzer,
		Model:      model.NewLogistic(model.DefaultCoefficients()),
		Features:   features,
		Notifier:   notifier,
		Alerts:     alerts,
		Logger:     logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize pipeline: %w", err)
	}

	claimSvc, err := claims.NewService(claims.Config{
		StatusTTL: cfg.Cache.StatusTTL,
		LockTTL:   cfg.Pipeline.LockTTL,
	}, claims.Deps{
		Repo:     repo,
		Cache:    cacheImpl,
		Bus:      busImpl,
		Pipeline: proc,
		Notifier: notifier,
		Logger:   logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize claims service: %w", err)
	}

	// Async worker (Pro tier)
	var asyncWorker *worker.Worker
	if cfg.Tier == domain.TierPro || os.Getenv("HARRIER_ASYNC_WORKER") == "true" {
		asyncWorker = worker.NewWorker(busImpl, claimSvc, logger)
		if err := asyncWorker.Start(worker.Config{WorkerCount: cfg.Pipeline.MaxParallel}); err != nil {
			return fmt.Errorf("failed to start async worker: %w", err)
		}
	}

	srv := api.NewServer(cfg.Server, api.Deps{
		Claims:  claimSvc,
		Engine:  engine,
		Repo:    repo,
		Cache:   cacheImpl,
		Bus:     busImpl,
		Logger:  logger,
		Version: Version,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	slog.Info("harrier is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
	case err := <-serverErr:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	}

	// Stop taking queued claims before the server goes away.
	if asyncWorker != nil {
		if err := asyncWorker.Stop(); err != nil {
			slog.Error("failed to stop async worker", "error", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}
	return nil
}

func newLogger(w io.Writer, cfg domain.LoggingConfig) *slog.Logger {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// providerSet holds the cloud clients shared by the analyzers, the
// narrative provider and the mailer. Clients are created only when a
// selected provider needs them.
type providerSet struct {
	aws    *session.Session
	vertex *vertex.Client
	docs   *analysis.LocalStore
}

func newProviders(ctx context.Context, cfg domain.ProvidersConfig, notifyCfg domain.NotifyConfig) (*providerSet, error) {
	p := &providerSet{}
	if cfg.DocumentRoot != "" {
		docs, err := analysis.OpenLocalStore(cfg.DocumentRoot)
		if err != nil {
			return nil, err
		}
		p.docs = docs
		slog.Info("local documents enabled", "root", docs.Dir())
	}
	needsAWS := cfg.DocumentAnalyzer == "textract" || cfg.Narrative == "comprehend" ||
		cfg.Narrative == "bedrock" || notifyCfg.Mailer == "ses"
	needsVertex := cfg.DocumentAnalyzer == "vertex" || cfg.Narrative == "vertex"
	if cfg.DocumentAnalyzer == "auto" {
		needsAWS = true
		needsVertex = cfg.VertexProject != ""
	}

	if needsAWS {
		sess, err := awsutil.NewSession(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create AWS session: %w", err)
		}
		p.aws = sess
		slog.Info("aws session created", "region", cfg.AWSRegion)
	}
	if needsVertex {
		client, err := vertex.NewClient(ctx, cfg.VertexProject, cfg.VertexLocation)
		if err != nil {
			return nil, fmt.Errorf("failed to create Vertex AI client: %w", err)
		}
		p.vertex = client
		slog.Info("vertex client created", "project", cfg.VertexProject, "location", cfg.VertexLocation)
	}
	return p, nil
}

func (p *providerSet) analyzer(cfg domain.ProvidersConfig) (domain.DocumentAnalyzer, error) {
	local := analysis.NewFileAnalyzer(p.docs)
	switch cfg.DocumentAnalyzer {
	case "local":
		return local, nil
	case "textract":
		return analysis.NewTextract(p.aws).WithLocal(p.docs), nil
	case "vertex":
		return p.vertexAnalyzer(cfg), nil
	case "auto":
		router := analysis.NewRouter(local).
			Route(analysis.SchemeS3, analysis.NewTextract(p.aws))
		if p.vertex != nil {
			router.Route(analysis.SchemeGCS, p.vertexAnalyzer(cfg))
		}
		return router, nil
	default:
		return nil, fmt.Errorf("%w: unknown document analyzer %q", domain.ErrInvalidInput, cfg.DocumentAnalyzer)
	}
}

func (p *providerSet) vertexAnalyzer(cfg domain.ProvidersConfig) *analysis.VertexAnalyzer {
	return analysis.NewVertexAnalyzer(p.vertex.Model(cfg.VertexModel, analysis.VertexSystemPrompt, true)).
		WithLocal(p.docs)
}

func (p *providerSet) narrative(cfg domain.ProvidersConfig) (domain.NarrativeAnalyzer, error) {
	switch cfg.Narrative {
	case "heuristic":
		return narrative.NewHeuristic(), nil
	case "comprehend":
		return narrative.NewComprehend(p.aws, narrative.NewHeuristic()), nil
	case "bedrock":
		llm := narrative.NewLLM(narrative.NewBedrockCompleter(p.aws, cfg.BedrockModel))
		return narrative.NewComprehend(p.aws, llm), nil
	case "vertex":
		return narrative.NewLLM(narrative.NewVertexCompleter(p.vertex.Model(cfg.VertexModel, "", false))), nil
	default:
		return nil, fmt.Errorf("%w: unknown narrative provider %q", domain.ErrInvalidInput, cfg.Narrative)
	}
}

func (p *providerSet) mailer(cfg domain.NotifyConfig, logger *slog.Logger) (notify.Mailer, error) {
	switch cfg.Mailer {
	case "log":
		return notify.NewLogMailer(logger), nil
	case "ses":
		if p.aws == nil {
			return nil, fmt.Errorf("ses mailer needs an AWS session")
		}
		return notify.NewSESMailer(p.aws), nil
	default:
		return nil, fmt.Errorf("%w: unknown mailer %q", domain.ErrInvalidInput, cfg.Mailer)
	}
}

func (p *providerSet) Close() error {
	var err error
	if p.vertex != nil {
		err = p.vertex.Close()
	}
	if p.docs != nil {
		err = errors.Join(err, p.docs.Close())
	}
	return err
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  HARRIER - Claim Adjudication Engine")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    POST /claims                     - Submit a claim")
	fmt.Println("    POST /claims/submit-and-process  - Submit and adjudicate")
	fmt.Println("    GET  /claims/{id}/status         - Claim status")
	fmt.Println("    PUT  /claims/{id}/status         - Manual review update")
	fmt.Println("    POST /claims/{id}/process        - Run the pipeline")
	fmt.Println("    GET  /claims/{id}/decisions      - Decision trail")
	fmt.Println("    POST /rules                      - Create a custom rule")
	fmt.Println()
	fmt.Println("  Health:")
	fmt.Println("    GET  /health")
	fmt.Println("    GET  /ready")
	fmt.Println()
}
