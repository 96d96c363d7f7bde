package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"regassist/internal/checklist"
	"regassist/internal/diff"
	jwttoken "regassist/internal/jwt_token"
	"regassist/internal/pipeline"
	"regassist/internal/platform/config"
	"regassist/internal/platform/httpserver"
	"regassist/internal/platform/logger"
	"regassist/internal/platform/metrics"
	"regassist/internal/platform/redis"
	"regassist/internal/risk"
	"regassist/internal/risk/ruleset"
	httptransport "regassist/internal/transport/http"
	"regassist/pkg/platform/audit"
	"regassist/pkg/platform/audit/publishers/kafka"
	"regassist/pkg/platform/audit/store/memory"
	"regassist/pkg/platform/audit/store/postgres"
	"regassist/pkg/platform/audit/worker"
	"regassist/pkg/platform/circuit"
	"regassist/pkg/platform/middleware/ratelimit"
)

const shutdownTimeout = 10 * time.Second

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Server, log *slog.Logger) error {
	m := metrics.New()
	var checks []httptransport.Option

	rules := ruleset.Default()
	if cfg.RulesetPath != "" {
		loaded, err := ruleset.Load(cfg.RulesetPath)
		if err != nil {
			return fmt.Errorf("load ruleset: %w", err)
		}
		rules = loaded
	}
	log.Info("ruleset loaded", "version", rules.Version)

	store, db, err := buildAuditStore(ctx, cfg.Postgres, log)
	if err != nil {
		return err
	}
	if db != nil {
		defer db.Close()
		checks = append(checks, httptransport.WithHealthCheck("postgres", db.PingContext))
	}

	g, gctx := errgroup.WithContext(ctx)

	auditOpts := []audit.Option{audit.WithLogger(log), audit.WithMetrics(audit.NewMetrics())}
	if len(cfg.Kafka.Brokers) > 0 {
		pub, err := kafka.New(cfg.Kafka.Brokers, cfg.Kafka.Topic, kafka.WithLogger(log))
		if err != nil {
			return fmt.Errorf("create kafka publisher: %w", err)
		}
		defer pub.Close()
		if err := pub.EnsureTopic(ctx, 1, 1); err != nil {
			log.Warn("ensure audit topic failed", "topic", cfg.Kafka.Topic, "error", err)
		}
		forwarder := worker.NewWorker(pub, cfg.Kafka.BufferCapacity, worker.WithLogger(log))
		g.Go(func() error {
			return forwarder.Run(gctx)
		})
		auditOpts = append(auditOpts, audit.WithSink(forwarder))
		checks = append(checks, httptransport.WithHealthCheck("kafka", pub.Ping))
		log.Info("audit forwarding enabled", "brokers", cfg.Kafka.Brokers, "topic", cfg.Kafka.Topic)
	}
	auditLog := audit.New(store, auditOpts...)

	classifier, redisClient, err := buildClassifier(ctx, cfg, rules, auditLog, m, log)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
		checks = append(checks, httptransport.WithHealthCheck("redis", redisClient.Health))
	}

	service, err := pipeline.New(auditLog,
		pipeline.WithClassifier(classifier),
		pipeline.WithDiffEngine(diff.New(
			diff.WithMaxClauses(cfg.Diff.MaxClauses),
			diff.WithThreshold(cfg.Diff.SimilarityThreshold),
			diff.WithMetrics(m),
		)),
		pipeline.WithChecklistGenerator(checklist.New(rules, checklist.WithMetrics(m))),
		pipeline.WithMaxInFlight(cfg.Scorer.MaxInFlight),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
	)
	if err != nil {
		return fmt.Errorf("create pipeline: %w", err)
	}

	handlerOpts := append(checks, httptransport.WithMetricsHandler(promhttp.Handler()))
	if cfg.Auth.JWTSigningKey != "" {
		jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
		handlerOpts = append(handlerOpts, httptransport.WithJWTValidator(jwttoken.NewJWTServiceAdapter(jwtService)))
	} else {
		log.Warn("JWT_SIGNING_KEY is empty; /v1 routes are unauthenticated")
	}
	if cfg.RateLimit.PerSecond > 0 {
		handlerOpts = append(handlerOpts, httptransport.WithRateLimiter(ratelimit.New(cfg.RateLimit.PerSecond, cfg.RateLimit.Burst, log)))
	}
	router := httptransport.NewRouter(httptransport.New(service, auditLog, log, handlerOpts...))
	srv := httpserver.New(cfg.Addr, router)

	g.Go(func() error {
		log.Info("starting regassist", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// buildAuditStore selects Postgres when DATABASE_URL is set and the
// in-memory store otherwise. db is nil for the in-memory store.
func buildAuditStore(ctx context.Context, cfg config.PostgresConfig, log *slog.Logger) (audit.Store, *sql.DB, error) {
	if cfg.URL == "" {
		log.Warn("DATABASE_URL is empty; audit trail is in-memory and lost on restart")
		return memory.NewInMemoryStore(), nil, nil
	}
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ping postgres: %w", err)
	}
	store := postgres.New(db)
	if err := store.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("migrate audit store: %w", err)
	}
	return store, db, nil
}

// buildClassifier returns the rule-based classifier, or the external scorer
// with rule-based fallback when SCORER_URL is set. Responses are cached in
// Redis when REDIS_URL is set as well.
func buildClassifier(ctx context.Context, cfg config.Server, rules *ruleset.Ruleset, recorder risk.Recorder, m *metrics.Metrics, log *slog.Logger) (risk.Classifier, *redis.Client, error) {
	ruleBased := risk.NewRuleBased(rules)
	if cfg.Scorer.URL == "" {
		log.Info("SCORER_URL is empty; classification is rule-based only")
		return ruleBased, nil, nil
	}

	var scorer risk.Scorer = risk.NewHTTPScorer(cfg.Scorer.URL,
		risk.WithRateLimit(cfg.Scorer.RatePerSecond, cfg.Scorer.Burst),
	)

	client, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	if client != nil {
		scorer = risk.NewCachingScorer(scorer, client, cfg.Scorer.CacheTTL,
			risk.WithCacheLogger(log),
			risk.WithCacheMetrics(m),
		)
	}

	external := risk.NewExternal(scorer, ruleBased,
		risk.WithTimeout(cfg.Scorer.Timeout),
		risk.WithRecorder(recorder),
		risk.WithBreaker(circuit.New("risk-scorer")),
		risk.WithLogger(log),
		risk.WithMetrics(m),
	)
	return external, client, nil
}
