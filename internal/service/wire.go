package service

import (
	"context"
	"fmt"
	"time"

	"github.com/xiaot623/gogo/marketing/internal/adapter/ingress"
	"github.com/xiaot623/gogo/marketing/internal/adapter/llm"
	"github.com/xiaot623/gogo/marketing/internal/adapter/provider"
	"github.com/xiaot623/gogo/marketing/internal/agents"
	"github.com/xiaot623/gogo/marketing/internal/config"
	"github.com/xiaot623/gogo/marketing/internal/conversation"
	"github.com/xiaot623/gogo/marketing/internal/metrics"
	"github.com/xiaot623/gogo/marketing/internal/observe"
	"github.com/xiaot623/gogo/marketing/internal/pipeline"
	"github.com/xiaot623/gogo/marketing/internal/report"
	store "github.com/xiaot623/gogo/marketing/internal/repository"
	"github.com/xiaot623/gogo/marketing/internal/router"
	"github.com/xiaot623/gogo/marketing/internal/tools"
	"github.com/xiaot623/gogo/marketing/policy"
)

// Build constructs every component from cfg once and returns the service
// that owns them. client overrides the configured LLM when non-nil.
func Build(ctx context.Context, cfg *config.Config, obs *observe.Observer, client llm.LLMClient) (*Service, error) {
	if obs == nil {
		obs = observe.Discard()
	}
	logger := obs.Log()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	reports, err := report.NewStore(cfg.ReportDir)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	if client == nil {
		client = llm.NewLLMClient(llm.Options{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Timeout: cfg.LLMTimeout,
			Mock:    cfg.MockMode(),
		}, logger)
	}

	m := metrics.New()
	registry := tools.NewRegistry(cfg.FetchTimeout)
	registry.SetCallHook(func(name string, elapsed time.Duration, err error) {
		m.ObserveProvider(name, err)
		if err != nil {
			logger.Debug().Str("tool", name).Int("elapsed_ms", int(elapsed.Milliseconds())).Err(err).Msg("provider tier failed")
		}
	})

	providers, err := buildProviders(ctx, cfg)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := provider.Register(registry, providers); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	engine, err := policy.NewEngine(ctx, policy.DefaultPolicy)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize policy engine: %w", err)
	}

	log := conversation.New(db)
	notifier := ingress.NewClient(cfg.IngressURL, logger)
	runner := &pipeline.Runner{
		Log:      log,
		Store:    db,
		Reports:  reports,
		Obs:      obs,
		Metrics:  m,
		Notifier: notifier,
	}

	taskRegistry := router.NewRegistry()
	if err := agents.Register(taskRegistry, &agents.Deps{
		Runner:         runner,
		LLM:            client,
		Model:          cfg.OpenAIModel,
		Tools:          registry,
		Chains:         cfg.Chains,
		Policy:         engine,
		ForbiddenWords: cfg.ForbiddenWords,
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	rules, err := router.RulesFromConfig(cfg.TaskKeywords)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	detector := router.NewDetector(rules)

	return New(Components{
		Store:    db,
		Log:      log,
		Router:   router.New(detector, taskRegistry, log, obs, m, cfg.ContinuationCues),
		Registry: taskRegistry,
		Detector: detector,
		Reports:  reports,
		Tools:    registry,
		Config:   cfg,
		Obs:      obs,
		Metrics:  m,
		Ingress:  notifier,
	}), nil
}

func buildProviders(ctx context.Context, cfg *config.Config) (provider.Set, error) {
	google, err := provider.NewGoogle(ctx, provider.GoogleConfig{
		APIKey:   cfg.GoogleSearchAPIKey,
		EngineID: cfg.GoogleSearchEngineID,
	})
	if err != nil {
		return provider.Set{}, fmt.Errorf("failed to initialize google search: %w", err)
	}

	set := provider.Set{
		Naver: provider.NewNaver(provider.NaverConfig{
			DataLabClientID:     cfg.NaverDataLabClientID,
			DataLabClientSecret: cfg.NaverDataLabClientSecret,
			DataLabURL:          cfg.NaverDataLabURL,
			SearchClientID:      cfg.NaverShoppingClientID,
			SearchClientSecret:  cfg.NaverShoppingSecret,
			RatePerSec:          cfg.NaverRatePerSec,
			Timeout:             cfg.FetchTimeout,
		}),
		Google:    google,
		Synthetic: provider.NewSynthetic(),
	}
	if cfg.StatCounterEnabled() {
		set.StatCounter = provider.NewStatCounter(cfg.StatCounterURL, cfg.StatCounterTTL, cfg.FetchTimeout)
	}
	return set, nil
}
