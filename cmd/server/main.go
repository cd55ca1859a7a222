// Server runs the Pick-3 session gateway: it exchanges credentials with the
// remote backend, hands out opaque session IDs, and keeps tokens and
// subscription status fresh behind them.
package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	audithandler "pick3-session-gateway/internal/audit/handler"
	auditrepo "pick3-session-gateway/internal/audit/repository"

	"pick3-session-gateway/internal/audit"
	"pick3-session-gateway/internal/backend"
	"pick3-session-gateway/internal/config"
	"pick3-session-gateway/internal/db"
	healthhandler "pick3-session-gateway/internal/health/handler"
	"pick3-session-gateway/internal/server"
	sessionhandler "pick3-session-gateway/internal/session/handler"
	sessionrepo "pick3-session-gateway/internal/session/repository"
	sessionservice "pick3-session-gateway/internal/session/service"
	"pick3-session-gateway/internal/subscription"
	"pick3-session-gateway/internal/telemetry"
	otelsetup "pick3-session-gateway/internal/telemetry/otel"
	"pick3-session-gateway/internal/telemetry/producer"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.BackendBaseURL == "" {
		log.Fatal("BACKEND_BASE_URL is required")
	}

	ctx := context.Background()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, "pick3-session-gateway", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("otel: %v", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	var (
		sessions sessionrepo.Repository
		audits   auditrepo.Repository
		pinger   healthhandler.Pinger
	)
	if cfg.DatabaseURL != "" {
		pool, err := db.Open(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("db: %v", err)
		}
		defer pool.Close()
		sessions = sessionrepo.NewPostgresRepository(pool)
		audits = auditrepo.NewPostgresRepository(pool)
		pinger = pool
	} else {
		log.Println("DATABASE_URL empty, using in-memory session store")
		sessions = sessionrepo.NewMemoryRepository()
	}

	client := backend.NewClient(cfg.BackendBaseURL,
		backend.WithCallTimeout(cfg.BackendCallTimeout()),
		backend.WithSubscriptionTimeout(cfg.SubscriptionCallTimeout()),
	)
	fetcher := subscription.NewClientFetcher(client)
	syncer := subscription.NewSyncer(fetcher, subscription.Policy{
		MaxRetries:   cfg.SubscriptionMaxRetries,
		InitialDelay: cfg.InitialDelay(),
		Multiplier:   cfg.SubscriptionBackoffMultiplier,
		MaxDelay:     cfg.MaxDelay(),
		GraceDelay:   cfg.GraceDelay(),
	})

	var auditor audit.AuditLogger
	if audits != nil {
		auditor = audit.NewLogger(audits, server.ContextIP)
	}

	emitter := buildEmitter(cfg, providers)

	manager := sessionservice.NewManager(sessions, client, fetcher, syncer,
		auditor, emitter, nil, cfg.RefreshBuffer())

	deps := server.Deps{
		Session: sessionhandler.NewHandler(manager),
		Health:  healthhandler.NewHandler(pinger),
		Emitter: emitter,
	}
	if audits != nil {
		deps.Audit = audithandler.NewHandler(audits, manager)
	}

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           server.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("HTTP server listening on %s", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("serve: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down HTTP server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
	time.Sleep(telemetry.ShutdownDrainDuration)
	log.Println("HTTP server stopped")
}

// buildEmitter prefers Kafka when brokers are configured, falling back to
// OTel logs when an OTLP endpoint is set, else no telemetry.
func buildEmitter(cfg *config.Config, providers *otelsetup.Providers) telemetry.EventEmitter {
	if brokers := cfg.TelemetryKafkaBrokersList(); len(brokers) > 0 {
		p, err := producer.NewKafkaProducer(brokers, cfg.TelemetryKafkaTopic)
		if err != nil {
			log.Printf("telemetry: kafka producer: %v", err)
			return nil
		}
		log.Printf("telemetry: emitting session events to Kafka topic %s", cfg.TelemetryKafkaTopic)
		return p
	}
	if cfg.OTLPEndpoint != "" {
		return otelsetup.NewEventEmitter(providers.LoggerProvider)
	}
	return nil
}
