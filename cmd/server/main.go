package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"phi-gateway/internal/admin"
	"phi-gateway/internal/audit"
	"phi-gateway/internal/consent"
	"phi-gateway/internal/platform/config"
	"phi-gateway/internal/platform/httpserver"
	"phi-gateway/internal/platform/logger"
	"phi-gateway/internal/platform/metrics"
	"phi-gateway/internal/platform/postgres"
	redisplatform "phi-gateway/internal/platform/redis"
	"phi-gateway/internal/ratelimit"
	"phi-gateway/internal/secrets"
	"phi-gateway/internal/token"
	httptransport "phi-gateway/internal/transport/http"
)

const shutdownTimeout = 10 * time.Second

// main wires dependencies and owns the process lifecycle. The deployment mode
// is read once here and passed explicitly into every constructor that needs
// it; nothing else consults the environment.
func main() {
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)

	secretStore, err := secrets.New(cfg.Networked, log,
		secrets.WithDegradationCounter(m.SecretStoreDegradation))
	if err != nil {
		log.Error("secret store unavailable", "error", err)
		os.Exit(1)
	}

	pool, err := postgres.New(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	if cfg.Networked && pool == nil {
		log.Error("DATABASE_URL is required in networked mode")
		os.Exit(1)
	}
	if cfg.Networked && cfg.JWTSigningKey == "" {
		log.Error("JWT_SIGNING_KEY is required in networked mode")
		os.Exit(1)
	}
	if pool != nil {
		defer pool.Close()
	}

	redisClient, err := redisplatform.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	var (
		consentStore consent.Store
		auditStore   audit.Store
		auditLog     admin.AuditLog
		directory    admin.Directory
		reporting    admin.Reporting
	)
	if pool != nil {
		pgAudit := audit.NewPostgresStore(pool)
		consentStore = consent.NewPostgresStore(pool)
		auditStore = pgAudit
		auditLog = pgAudit
		directory = admin.NewPostgresDirectory(pool)
		reporting = admin.NewPostgresReporting(pool)
	} else {
		memAudit := audit.NewInMemoryStore()
		consentStore = consent.NewInMemoryStore()
		auditStore = memAudit
		auditLog = memAudit
		directory = admin.NewInMemoryDirectory()
		reporting = admin.NewInMemoryReporting()
	}

	var bucketStore ratelimit.BucketStore
	if redisClient != nil {
		bucketStore = ratelimit.NewRedisBucketStore(redisClient.Client)
	} else {
		bucketStore = ratelimit.NewInMemoryBucketStore()
	}

	worker := audit.NewWorker(auditStore, log,
		audit.WithDropCounter(m.AuditQueueDrops),
		audit.WithFailureCounter(m.AuditWriteFailures))

	recorder := audit.NewRecorder(worker, log, cfg.Networked)

	tokenService := token.NewService(cfg.JWTSigningKey)
	consentService := consent.NewService(consentStore, log)
	adminService := admin.NewService(directory, reporting, cfg.AdminEmails, log)

	limiter := ratelimit.NewMiddleware(
		ratelimit.NewService(bucketStore, cfg.RateLimit, cfg.RateLimitWindow),
		log,
		ratelimit.WithDisabled(!cfg.Networked),
		ratelimit.WithRejectionCounter(m.RateLimitRejections),
	)

	router := httptransport.NewRouter(httptransport.Deps{
		Logger:         log,
		Networked:      cfg.Networked,
		Validator:      tokenService,
		Secrets:        secretStore,
		AuditWorker:    worker,
		Metrics:        m,
		RateLimit:      limiter,
		Consent:        consent.NewHandler(consentService, log),
		Admin:          admin.NewHandler(adminService, consentService, auditLog, recorder, log),
		MetricsHandler: promhttp.Handler(),
	})

	srv := httpserver.New(cfg.Addr, router)

	mode := "local"
	if cfg.Networked {
		mode = "networked"
	}
	log.Info("starting phi-gateway", "addr", cfg.Addr, "mode", mode)

	g, gctx := errgroup.WithContext(ctx)

	// The worker gets its own lifetime: it must keep draining until the
	// listener has finished serving in-flight requests, since each of those
	// still enqueues an audit record as it completes.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g.Go(func() error {
		if err := worker.Run(workerCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		stopWorker()
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
