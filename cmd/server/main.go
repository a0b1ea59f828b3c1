package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/example/load-matching/internal/advisory"
	"github.com/example/load-matching/internal/config"
	"github.com/example/load-matching/internal/dispatch"
	"github.com/example/load-matching/internal/geo"
	httpapi "github.com/example/load-matching/internal/http"
	"github.com/example/load-matching/internal/ingest"
	"github.com/example/load-matching/internal/logging"
	"github.com/example/load-matching/internal/match"
	"github.com/example/load-matching/internal/payments"
	"github.com/example/load-matching/internal/pricing"
	"github.com/example/load-matching/internal/scoring"
	"github.com/example/load-matching/internal/storage"
	"github.com/example/load-matching/internal/vehicle"
)

func main() {
	cfg, err := config.LoadServerConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.PGDSN != "" && cfg.RunMigrations {
		if err := runMigrations(cfg.PGDSN); err != nil {
			logger.Error("migrations failed", "error", err)
			os.Exit(1)
		}
		logger.Info("migrations applied")
	}

	var store interface {
		storage.LoadStore
		storage.DriverStore
		storage.MatchStore
		storage.CalculationStore
	}
	if cfg.PGDSN != "" {
		pg, err := storage.NewPostgresStore(cfg.PGDSN)
		if err != nil {
			logger.Error("postgres connection failed", "error", err)
			os.Exit(1)
		}
		defer pg.Close()
		store = pg
	} else {
		logger.Warn("PG_DSN not set, using in-memory store")
		store = storage.NewMemoryStore()
	}

	var geoIndex geo.DriverIndex
	if cfg.RedisAddr != "" {
		geoIndex = geo.NewRedisIndex(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisGeoKey)
	} else {
		geoIndex = geo.NewIndex()
	}

	var kafkaProducer *ingest.KafkaProducer
	if len(cfg.KafkaBrokers) > 0 {
		kafkaProducer = ingest.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer kafkaProducer.Close()
	}

	pricingCfg := pricing.DefaultConfig()
	if cfg.DistanceRatePerKm > 0 {
		pricingCfg.DistanceRatePerKm = cfg.DistanceRatePerKm
	}
	if cfg.WeightRatePerKg > 0 {
		pricingCfg.WeightRatePerKg = cfg.WeightRatePerKg
	}
	pricingCfg.AdvisoryTimeout = cfg.AdvisoryTimeout

	var priceAdvisor pricing.Advisor
	var vehicleAdvisor vehicle.Advisor
	if cfg.GeminiAPIKey != "" {
		gemini, err := advisory.NewGeminiAdvisor(ctx, cfg.GeminiAPIKey)
		if err != nil {
			logger.Error("gemini init failed, advisory disabled", "error", err)
		} else {
			defer gemini.Close()
			priceAdvisor = gemini
			vehicleAdvisor = gemini
		}
	}

	engine := pricing.NewEngine(pricingCfg, priceAdvisor, store, logger)
	matcher := vehicle.NewMatcher(vehicleAdvisor, cfg.AdvisoryTimeout, logger)

	policy := scoring.DefaultPolicy()
	policy.MinScore = cfg.MinMatchScore
	scorer := scoring.NewScorer(policy)

	wsReg := dispatch.NewWSRegistry()
	notifier := dispatch.NewPushDispatcher(cfg.PushEndpoint, cfg.PushKey, wsReg, logger)

	var processor match.PaymentProcessor
	if cfg.StripeAPIKey != "" {
		processor = payments.NewStripeProcessor(cfg.StripeAPIKey, cfg.StripeCurrency)
	}

	matchCfg := match.DefaultConfig()
	matchCfg.MatchExpiry = cfg.MatchExpiry
	matchCfg.MaxMatches = cfg.MaxMatches
	matchCfg.DefaultMaxDistanceKm = cfg.DefaultMaxDistanceKm
	orch := match.NewOrchestrator(matchCfg, store, store, store, scorer, notifier, processor, logger)

	srv := httpapi.NewServer(httpapi.Deps{
		Loads:    store,
		Drivers:  store,
		Matches:  store,
		Calcs:    store,
		Pricer:   engine,
		Vehicles: matcher,
		Orch:     orch,
		GeoIndex: geoIndex,
		Kafka:    kafkaProducer,
		WSReg:    wsReg,
		Logger:   logger,
	})

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("load-matching listening", "addr", cfg.HTTPAddr)
		errCh <- httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("http server stopped", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func runMigrations(dsn string) error {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	b, err := os.ReadFile(filepath.Join("migrations", "001_create_core.sql"))
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	_, err = db.ExecContext(ctx, string(b))
	return err
}
