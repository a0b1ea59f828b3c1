package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/segmentio/kafka-go"

	"github.com/example/load-matching/internal/config"
	"github.com/example/load-matching/internal/geo"
	"github.com/example/load-matching/internal/logging"
	"github.com/example/load-matching/internal/match"
	"github.com/example/load-matching/internal/models"
	"github.com/example/load-matching/internal/scoring"
	"github.com/example/load-matching/internal/storage"
)

var (
	msgsConsumed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_messages_consumed_total",
		Help: "Total driver location messages consumed",
	})
	msgsInvalid = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_messages_invalid_total",
		Help: "Total invalid messages received",
	})
	locationUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_location_updates_total",
		Help: "Total successful location updates",
	})
	locationErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_location_errors_total",
		Help: "Total location updates that failed after retries",
	})
	sweepRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "sweeper_expiry_runs_total",
		Help: "Total expiry sweep executions",
	})
)

func init() {
	prometheus.MustRegister(msgsConsumed, msgsInvalid, locationUpdates, locationErrors, sweepRuns)
}

func main() {
	cfg, err := config.LoadSweeperConfig()
	logger := logging.NewLogger(cfg.LogLevel)
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var store interface {
		storage.LoadStore
		storage.DriverStore
		storage.MatchStore
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

	// metrics and health server
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})
		logger.Info("metrics/health listening", "addr", cfg.MetricsAddr)
		if err := http.ListenAndServe(cfg.MetricsAddr, mux); err != nil {
			logger.Error("metrics server stopped", "error", err)
		}
	}()

	orch := match.NewOrchestrator(match.DefaultConfig(), store, store, store,
		scoring.NewScorer(scoring.DefaultPolicy()), nil, nil, logger)

	go runExpirySweep(ctx, orch, cfg.SweepInterval, logger)

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
		GroupID:  cfg.KafkaGroup,
		MinBytes: 10e3,
		MaxBytes: 10e6,
	})
	defer reader.Close()

	applier := &storeApplier{index: geoIndex, drivers: store}
	logger.Info("sweeper consuming", "topic", cfg.KafkaTopic, "brokers", cfg.KafkaBrokers, "group", cfg.KafkaGroup)

	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		m, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("shutting down sweeper")
				return
			}
			logger.Warn("kafka read error", "error", err, "backoff", backoff)
			time.Sleep(backoff)
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second

		msgsConsumed.Inc()

		var u models.DriverLocationUpdate
		if err := json.Unmarshal(m.Value, &u); err != nil || u.DriverID == "" {
			msgsInvalid.Inc()
			logger.Warn("invalid location message", "error", err)
			continue
		}

		if err := applyWithRetry(ctx, applier, u, 3, 200*time.Millisecond); err != nil {
			locationErrors.Inc()
			logger.Warn("location update failed", "driver_id", u.DriverID, "error", err)
			continue
		}
		locationUpdates.Inc()
	}
}

func runExpirySweep(ctx context.Context, orch *match.Orchestrator, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sweepRuns.Inc()
			if _, err := orch.ProcessExpiredMatches(ctx); err != nil {
				logger.Error("expiry sweep failed", "error", err)
			}
		}
	}
}

// locationApplier is the small seam between the consume loop and the
// stores, kept as an interface for tests.
type locationApplier interface {
	Apply(ctx context.Context, u models.DriverLocationUpdate) error
}

type storeApplier struct {
	index   geo.DriverIndex
	drivers storage.DriverStore
}

func (s *storeApplier) Apply(ctx context.Context, u models.DriverLocationUpdate) error {
	s.index.Upsert(u)
	err := s.drivers.UpdateDriverLocation(ctx, u.DriverID, u.Location, u.At)
	if errors.Is(err, models.ErrNotFound) {
		// Location reports may outrun driver registration.
		return nil
	}
	return err
}

// applyWithRetry retries transient store failures with doubling backoff.
func applyWithRetry(ctx context.Context, a locationApplier, u models.DriverLocationUpdate, attempts int, delay time.Duration) error {
	var err error
	for i := 0; i < attempts; i++ {
		if err = a.Apply(ctx, u); err == nil {
			return nil
		}
		if i < attempts-1 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return err
}
