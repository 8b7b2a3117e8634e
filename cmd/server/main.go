// Command server runs the document integrity service: issuance, ledger
// anchoring, watermarking, and verification behind one HTTP API.
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"veristamp/internal/audit"
	"veristamp/internal/document"
	"veristamp/internal/filestore"
	"veristamp/internal/issue"
	"veristamp/internal/issuertoken"
	"veristamp/internal/ledger"
	"veristamp/internal/lineage"
	"veristamp/internal/platform/config"
	"veristamp/internal/platform/httpserver"
	"veristamp/internal/platform/logger"
	"veristamp/internal/platform/redis"
	httptransport "veristamp/internal/transport/http"
	"veristamp/internal/verify"
	"veristamp/internal/watermark"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx := context.Background()

	files, err := filestore.New(cfg.StorageRoot)
	if err != nil {
		log.Error("storage root unusable", "error", err)
		os.Exit(1)
	}

	// Postgres when configured, in-memory otherwise (dev and tests).
	var store document.Store
	var db *sql.DB
	if cfg.PostgresDSN != "" {
		db, err = sql.Open("postgres", cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres open failed", "error", err)
			os.Exit(1)
		}
		pg := document.NewPostgres(db)
		if err := pg.EnsureSchema(ctx); err != nil {
			log.Error("postgres schema setup failed", "error", err)
			os.Exit(1)
		}
		store = pg
		log.Info("document store ready", "backend", "postgres")
	} else {
		store = document.NewInMemoryStore()
		log.Warn("no postgres DSN configured, using in-memory document store")
	}

	var gw ledger.Gateway = ledger.NewInMemory()
	gw = ledger.NewResilient(gw, cfg.Ledger, log)

	redisClient, err := redis.New(cfg.Redis)
	if err != nil {
		log.Error("redis connection failed", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		gw = ledger.NewCached(gw, redisClient, cfg.Redis.LookupTTL, log)
		defer redisClient.Close()
		log.Info("ledger lookup cache enabled")
	}

	var publisher audit.Publisher = audit.NopPublisher{}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("kafka connection failed", "error", err)
			os.Exit(1)
		}
		publisher = kp
		defer kp.Close()
		log.Info("audit trail enabled", "topic", cfg.AuditTopic)
	}

	tracker := lineage.NewTracker(store, files, lineage.WithLogger(log))
	composer := watermark.NewComposer(files, tracker, watermark.WithLogger(log))
	issuer := issue.NewService(store, files, tracker, gw, composer, cfg.PublicBaseURL,
		issue.WithLogger(log), issue.WithAuditPublisher(publisher))
	engine := verify.NewEngine(tracker, gw, files,
		verify.WithLogger(log), verify.WithAuditPublisher(publisher))
	tokens := issuertoken.NewService(cfg.JWTSigningKey, "veristamp", "veristamp-issuers")

	var checks []httptransport.HealthCheck
	if db != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		checks = append(checks, httptransport.HealthCheck{Name: "redis", Check: redisClient.Health})
	}

	handler := httptransport.NewHandler(issuer, engine, log)
	srv := httpserver.New(cfg.Addr, httptransport.NewRouter(handler, tokens, log, checks...))

	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
	if db != nil {
		_ = db.Close()
	}
}
