package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/tablefinder/internal/config"
	"github.com/kailas-cloud/tablefinder/internal/db"
	dbRedis "github.com/kailas-cloud/tablefinder/internal/db/redis"
	"github.com/kailas-cloud/tablefinder/internal/domain"
	"github.com/kailas-cloud/tablefinder/internal/domain/locale"
	"github.com/kailas-cloud/tablefinder/internal/domain/location"
	"github.com/kailas-cloud/tablefinder/internal/metrics"
	budgetrepo "github.com/kailas-cloud/tablefinder/internal/repository/budget"
	"github.com/kailas-cloud/tablefinder/internal/repository/dataset"
	"github.com/kailas-cloud/tablefinder/internal/repository/geocache"
	"github.com/kailas-cloud/tablefinder/internal/repository/place"
	restaurantrepo "github.com/kailas-cloud/tablefinder/internal/repository/restaurant"
	sessionrepo "github.com/kailas-cloud/tablefinder/internal/repository/session"
	chiTransport "github.com/kailas-cloud/tablefinder/internal/transport/chi"
	geminiLLM "github.com/kailas-cloud/tablefinder/internal/transport/gemini"
	openaiLLM "github.com/kailas-cloud/tablefinder/internal/transport/openai"
	chatuc "github.com/kailas-cloud/tablefinder/internal/usecase/chat"
	completionuc "github.com/kailas-cloud/tablefinder/internal/usecase/completion"
	"github.com/kailas-cloud/tablefinder/internal/usecase/extraction"
	healthuc "github.com/kailas-cloud/tablefinder/internal/usecase/health"
	searchuc "github.com/kailas-cloud/tablefinder/internal/usecase/search"
	sessionuc "github.com/kailas-cloud/tablefinder/internal/usecase/session"
	usageuc "github.com/kailas-cloud/tablefinder/internal/usecase/usage"
)

// app is the assembled service.
type app struct {
	handler http.Handler
	sweeper *sessionuc.Sweeper
	store   db.Store
}

// Close releases the cache connection.
func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

// buildApp is the composition root.
func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	// Explicit registration (no init())
	metrics.RegisterLLMMetrics()
	metrics.RegisterSearchMetrics()

	ds, err := loadDataset(cfg.Dataset)
	if err != nil {
		return nil, err
	}
	restaurants := restaurantrepo.New(ds.Restaurants)
	gazetteer, err := place.NewGazetteer(ds.Places)
	if err != nil {
		return nil, fmt.Errorf("gazetteer: %w", err)
	}
	logger.Info("Dataset loaded",
		zap.Int("restaurants", restaurants.Count()),
		zap.Int("places", gazetteer.Len()),
	)

	// Optional Redis/Valkey backend for the geocode cache and budget counters.
	var store db.Store
	if cfg.Cache.Enabled() {
		store, err = openStore(ctx, cfg.Cache)
		if err != nil {
			return nil, err
		}
		logger.Info("Connected to cache", zap.String("driver", cfg.Cache.Driver), zap.Strings("addrs", cfg.Cache.Addrs))
	}

	var geocoder chatuc.Geocoder = gazetteer
	if store != nil {
		geocoder = geocache.New(gazetteer, store,
			time.Duration(cfg.Cache.TTLSec)*time.Second, metrics.GeocodeCacheTotal, logger)
	}

	llm, err := buildCompleter(ctx, cfg.LLM, store, logger)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}

	rules, err := buildRules(cfg.FollowUp)
	if err != nil {
		if store != nil {
			store.Close()
		}
		return nil, err
	}
	extractor := extraction.New(llm.completer, extraction.Config{
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.LLM.Timeout(),
		DefaultLocale: locale.Parse(cfg.Locale.Default, locale.TraditionalChinese),
		Rules:         rules,
	}, logger)

	sessions := sessionrepo.New(cfg.Session.HistoryTurns)
	chat := chatuc.New(
		sessions,
		location.NewNormalizer(cfg.Search.DefaultRadiusKm),
		geocoder,
		extractor,
		extraction.NewFallback(),
		searchuc.New(restaurants, cfg.Search.TopK),
		chatuc.Config{CommitRetries: cfg.Session.CommitRetries},
		logger,
	)
	sessionSvc := sessionuc.New(sessions, cfg.Session.TTL(), logger)
	sweeper := sessionuc.NewSweeper(sessions, cfg.Session.TTL(), cfg.Session.SweepInterval(), logger)

	// Pass nil interfaces (not typed nil pointers) for absent components.
	var cachePinger healthuc.CachePinger
	if store != nil {
		cachePinger = store
	}
	health := healthuc.New(restaurants, cachePinger, llm.health, logger)
	usage := usageuc.New(llm.budget, cfg.LLM.Provider)

	limiter := chiTransport.NewClientRateLimiter(
		cfg.HTTP.RateLimit.Requests,
		time.Duration(cfg.HTTP.RateLimit.PeriodSec)*time.Second,
		cfg.HTTP.RateLimit.Burst,
	)
	server := chiTransport.NewServer(chat, restaurants, sessionSvc, health, usage, limiter, logger)

	return &app{handler: server.Routes(), sweeper: sweeper, store: store}, nil
}

func loadDataset(cfg config.DatasetConfig) (dataset.File, error) {
	ds, err := dataset.Load(cfg.Path)
	if err != nil {
		return dataset.File{}, fmt.Errorf("load dataset: %w", err)
	}
	return ds, nil
}

func buildRules(cfg config.FollowUpConfig) (extraction.Rules, error) {
	rules, err := extraction.DefaultRules().Extend(extraction.Overrides{
		QuestionMarks:         cfg.QuestionMarks,
		QuestionIndicators:    cfg.QuestionIndicators,
		MissingInfoIndicators: cfg.MissingInfoIndicators,
		Patterns:              cfg.Patterns,
	})
	if err != nil {
		return extraction.Rules{}, fmt.Errorf("followup rules: %w", err)
	}
	return rules, nil
}

func openStore(ctx context.Context, cfg config.CacheConfig) (db.Store, error) {
	// rueidis speaks RESP to both Redis and Valkey.
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    cfg.Addrs,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s store: %w", cfg.Driver, err)
	}
	if err := store.WaitForReady(ctx, time.Duration(cfg.ReadinessTimeout)*time.Second); err != nil {
		store.Close()
		return nil, fmt.Errorf("%s not ready: %w", cfg.Driver, err)
	}
	return store, nil
}

// buildCompleter assembles the decorator chain: provider -> Instrumented (budget).
// Provider "none" returns nil interfaces; every request then takes the keyword path.
// llmStack holds the completer and its side views. Every field is a nil
// interface when the matching piece is not configured.
type llmStack struct {
	completer extraction.Completer
	health    healthuc.LLMChecker
	budget    usageuc.BudgetReader
}

func buildCompleter(
	ctx context.Context,
	cfg config.LLMConfig,
	store db.Store,
	logger *zap.Logger,
) (llmStack, error) {
	var base interface {
		domain.Completer
		domain.HealthChecker
	}
	switch cfg.Provider {
	case "openai":
		base = openaiLLM.NewCompleter(&openaiLLM.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
	case "gemini":
		g, err := geminiLLM.NewCompleter(ctx, &geminiLLM.Config{
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Project:  cfg.Project,
			Location: cfg.Location,
			Model:    cfg.Model,
			Provider: cfg.Provider,
			Logger:   logger,
		})
		if err != nil {
			return llmStack{}, err
		}
		base = g
	default:
		logger.Warn("No LLM provider configured, using keyword extraction only")
		return llmStack{}, nil
	}

	stack := llmStack{health: base}

	// Go gotcha: a nil *BudgetTracker wrapped in Budget != nil.
	var budget completionuc.Budget
	if cfg.Budget.DailyTokens > 0 || cfg.Budget.MonthlyTokens > 0 {
		tracker := completionuc.NewBudgetTracker(
			cfg.Provider, cfg.Budget.DailyTokens, cfg.Budget.MonthlyTokens,
			completionuc.BudgetAction(cfg.Budget.Action), logger,
		)
		if store != nil {
			tracker.WithStore(ctx, budgetrepo.New(store, 48*time.Hour, 62*24*time.Hour))
		}
		budget = tracker
		stack.budget = tracker
	}

	logger.Info("LLM completer created",
		zap.String("provider", cfg.Provider),
		zap.String("model", cfg.Model),
		zap.Bool("budget", budget != nil),
	)
	stack.completer = completionuc.NewInstrumentedCompleter(base, cfg.Provider, cfg.Model, budget, logger)
	return stack, nil
}
