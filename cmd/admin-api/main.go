// cmd/admin-api/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"kalikascan-admin/internal/common/auth"
	awsclients "kalikascan-admin/internal/common/aws"
	"kalikascan-admin/internal/common/config"
	"kalikascan-admin/internal/common/database"
	"kalikascan-admin/internal/common/logger"
	"kalikascan-admin/internal/common/observability"
	"kalikascan-admin/internal/common/push"
	"kalikascan-admin/internal/notifier"
	"kalikascan-admin/internal/presence"

	da "kalikascan-admin/internal/api/applications/delete-application"
	ra "kalikascan-admin/internal/api/applications/review-application"

	lu "kalikascan-admin/internal/api/users/list-users"
	sr "kalikascan-admin/internal/api/users/set-role"
	tb "kalikascan-admin/internal/api/users/toggle-ban"

	ca "kalikascan-admin/internal/api/admins/create-admin"
	sp "kalikascan-admin/internal/api/notifications/send-push"
	hb "kalikascan-admin/internal/api/presence/heartbeat"

	ha "kalikascan-admin/internal/api/reports/health-assessments"
	mp "kalikascan-admin/internal/api/reports/map-posts"
	ps "kalikascan-admin/internal/api/reports/plant-scans"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withRequestTelemetry feeds the OTel pipeline alongside the promauto
// per-operation collectors the handlers maintain themselves.
func withRequestTelemetry(obs *observability.Observability, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		obs.RecordRequestProcessed(r.Context(), r.URL.Path, fmt.Sprintf("%d", rec.status))
		obs.RecordRequestDuration(r.Context(), r.URL.Path, time.Since(start))
	})
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting admin API...",
		zap.String("environment", cfg.App.Environment),
		zap.String("address", cfg.Server.Address),
	)

	obs := observability.New("admin-api")
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")

	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry ---
	var esClient *database.ElasticsearchClient
	err = retryWithBackoff(func() error {
		var err error
		esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
		if err != nil {
			return err
		}
		return esClient.Ping()
	}, 15, 2*time.Second, zapLog, "Elasticsearch connection")

	if err != nil {
		zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
	}
	zapLog.Info("Elasticsearch connected successfully")

	// --- Init External Service Clients ---
	identity := auth.NewIdentityClient(cfg.Auth)
	pushClient := push.NewClient(cfg.Notifications)

	var sesClient awsclients.SESService
	if cfg.Notifications.Email.Enabled {
		client, err := awsclients.NewSESClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SES client init failed", zap.Error(err))
		}
		sesClient = client
	}

	var snsClient awsclients.SNSService
	if cfg.Notifications.SMS.Enabled {
		client, err := awsclients.NewSNSClient(ctx, cfg.Notifications.AWS.Region)
		if err != nil {
			zapLog.Fatal("SNS client init failed", zap.Error(err))
		}
		snsClient = client
	}

	notify := notifier.New(cfg.Notifications, pg.DB, log, pushClient, sesClient, snsClient)
	tracker := presence.NewTracker(cfg.Presence, rdb.Client, log)

	zapLog.Info("All external service clients initialized")

	// --- Build Operation Handlers ---
	reviewHandler := ra.NewHandler(ra.LoadConfig(), pg.DB, log, identity, notify)
	deleteHandler := da.NewHandler(da.LoadConfig(), pg.DB, log, identity)

	toggleBanHandler := tb.NewHandler(tb.LoadConfig(), pg.DB, log, identity, identity)
	setRoleHandler := sr.NewHandler(sr.LoadConfig(), pg.DB, log, identity)

	listUsersCfg := lu.LoadConfig()
	listUsersCfg.DefaultLimit = cfg.Reports.DefaultLimit
	listUsersCfg.MaxLimit = cfg.Reports.MaxLimit
	listUsersHandler := lu.NewHandler(listUsersCfg, pg.DB, log, identity)

	createAdminHandler := ca.NewHandler(ca.LoadConfig(), cfg.Notifications, pg.DB, log, identity, identity, sesClient)
	sendPushHandler := sp.NewHandler(sp.LoadConfig(), log, identity, notify)
	heartbeatHandler := hb.NewHandler(hb.LoadConfig(), tracker, log, identity)

	scansCfg := ps.LoadConfig()
	scansCfg.Index = cfg.Reports.ScanIndex
	scansCfg.DefaultLimit = cfg.Reports.DefaultLimit
	scansCfg.MaxLimit = cfg.Reports.MaxLimit
	scansHandler := ps.NewHandler(scansCfg, esClient.Client, log, identity)

	mapPostsCfg := mp.LoadConfig()
	mapPostsCfg.DefaultLimit = cfg.Reports.DefaultLimit
	mapPostsCfg.MaxLimit = cfg.Reports.MaxLimit
	mapPostsHandler := mp.NewHandler(mapPostsCfg, pg.DB, log, identity)

	assessmentsCfg := ha.LoadConfig()
	assessmentsCfg.DefaultLimit = cfg.Reports.DefaultLimit
	assessmentsCfg.MaxLimit = cfg.Reports.MaxLimit
	assessmentsHandler := ha.NewHandler(assessmentsCfg, pg.DB, log, identity)

	// --- Routes ---
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/admin/expert-applications/review", reviewHandler.Handle)
	mux.HandleFunc("POST /api/admin/expert-applications/delete", deleteHandler.Handle)

	mux.HandleFunc("POST /api/admin/users/toggle-ban", toggleBanHandler.Handle)
	mux.HandleFunc("POST /api/admin/users/set-role", setRoleHandler.Handle)
	mux.HandleFunc("GET /api/admin/users", listUsersHandler.Handle)

	mux.HandleFunc("POST /api/admin/create-admin", createAdminHandler.Handle)
	mux.HandleFunc("POST /api/notify/indie", sendPushHandler.Handle)

	mux.HandleFunc("POST /api/admin/heartbeat", heartbeatHandler.Handle)
	mux.HandleFunc("GET /api/admin/presence/online", heartbeatHandler.HandleOnline)

	mux.HandleFunc("GET /api/admin/reports/plant-scans", scansHandler.Handle)
	mux.HandleFunc("GET /api/admin/reports/map-posts", mapPostsHandler.Handle)
	mux.HandleFunc("GET /api/admin/reports/health-assessments", assessmentsHandler.Handle)

	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		status := "healthy"
		code := http.StatusOK
		checks := map[string]string{"postgres": "ok", "redis": "ok", "elasticsearch": "ok"}

		if err := pg.Ping(r.Context()); err != nil {
			checks["postgres"] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if err := rdb.Ping(r.Context()); err != nil {
			checks["redis"] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}
		if err := esClient.Ping(); err != nil {
			checks["elasticsearch"] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status": status,
			"checks": checks,
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      withRequestTelemetry(obs, mux),
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Millisecond,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Millisecond,
	}

	go func() {
		zapLog.Info("Admin API listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, draining connections...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(),
		time.Duration(cfg.Server.ShutdownTimeout)*time.Millisecond)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("server shutdown failed", zap.Error(err))
	}

	zapLog.Info("Admin API stopped gracefully")
}
