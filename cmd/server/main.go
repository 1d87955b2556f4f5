package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"custos/internal/approval"
	approvalhandler "custos/internal/approval/handler"
	approvalmetrics "custos/internal/approval/metrics"
	"custos/internal/coordinator"
	coordinatorhandler "custos/internal/coordinator/handler"
	"custos/internal/custody"
	custodyhandler "custos/internal/custody/handler"
	jwttoken "custos/internal/jwt_token"
	"custos/internal/lease"
	"custos/internal/ledger"
	ledgerhandler "custos/internal/ledger/handler"
	ledgermetrics "custos/internal/ledger/metrics"
	"custos/internal/platform/config"
	"custos/internal/platform/httpserver"
	"custos/internal/platform/logger"
	"custos/internal/platform/metrics"
	platformredis "custos/internal/platform/redis"
	"custos/internal/policy"
	policymetrics "custos/internal/policy/metrics"
	"custos/internal/verification"
	verificationmetrics "custos/internal/verification/metrics"
	"custos/pkg/platform/httputil"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience)

	platformMetrics := metrics.New()
	policyMetrics := policymetrics.New()
	verificationMetrics := verificationmetrics.New()
	approvalMetrics := approvalmetrics.New()
	ledgerMetrics := ledgermetrics.New()

	var (
		assetStore    custody.Store
		approvalStore approval.Store
		ledgerStore   ledger.Store
	)
	if cfg.Postgres.DSN != "" {
		db, err := sql.Open("postgres", cfg.Postgres.DSN)
		if err != nil {
			fatal(log, "open postgres", err)
		}
		defer db.Close()
		if err := db.PingContext(ctx); err != nil {
			fatal(log, "ping postgres", err)
		}
		assetStore = custody.NewPostgresStore(db)
		approvalStore = approval.NewPostgresStore(db)
		ledgerStore = ledger.NewPostgresStore(db)
		log.Info("using postgres storage")
	} else {
		assetStore = custody.NewInMemoryStore()
		approvalStore = approval.NewInMemoryStore()
		ledgerStore = ledger.NewInMemoryStore()
		log.Warn("DATABASE_URL not set, using in-memory storage")
	}

	var leases lease.Keyed = lease.NewMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		fatal(log, "connect redis", err)
	}
	if redisClient != nil {
		defer redisClient.Close()
		leases = lease.NewRedis(redisClient.Client)
		log.Info("using redis asset leases")
	}

	ldg := ledger.New(ledgerStore, ledgerMetrics)
	if len(cfg.Kafka.Brokers) > 0 {
		announcer, err := ledger.NewAnnouncer(cfg.Kafka.Brokers, cfg.Kafka.Topic, log, ledgerMetrics)
		if err != nil {
			fatal(log, "create audit announcer", err)
		}
		ldg.SetSink(announcer)
		go func() {
			if err := announcer.Run(ctx); err != nil {
				log.Error("audit announcer stopped", "error", err)
			}
		}()
		log.Info("announcing audit records", "topic", cfg.Kafka.Topic)
	}

	providers := verification.PassingMocks(cfg.MockNetworkPhone)
	gatherer := verification.NewGatherer(providers, providers, providers, cfg.VerificationTimeout, log, verificationMetrics)

	approvals := approval.NewService(approvalStore, approvalMetrics)
	engine := policy.NewEngine(policy.DefaultRuleSet())
	coord := coordinator.NewService(
		assetStore,
		engine,
		approvals,
		ldg,
		leases,
		cfg.LeaseTTL,
		cfg.LeaseRetries,
		log,
		policyMetrics,
	)

	router := chi.NewRouter()
	coordinatorhandler.New(coord, gatherer, log, platformMetrics, jwtService).Register(router)
	approvalhandler.New(coord, approvals, log, platformMetrics, jwtService).Register(router)
	custodyhandler.New(assetStore, coord, log, platformMetrics, jwtService).Register(router)
	ledgerhandler.New(ldg, log, platformMetrics, jwtService, cfg.OpsTokenHash).Register(router)
	router.Handle("/metrics", promhttp.Handler())
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	srv := httpserver.New(cfg.Addr, router)

	log.Info("starting custos", "addr", cfg.Addr)

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			fatal(log, "server error", err)
		}
	}()

	<-ctx.Done()
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		fatal(log, "graceful shutdown failed", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, "error", err)
	os.Exit(1)
}
