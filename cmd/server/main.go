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

	"github.com/go-chi/chi/v5"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"tenderwatch/internal/fraud/graphclient"
	fraudhandler "tenderwatch/internal/fraud/handler"
	fraudmetrics "tenderwatch/internal/fraud/metrics"
	fraudservice "tenderwatch/internal/fraud/service"
	fraudstore "tenderwatch/internal/fraud/store"
	"tenderwatch/internal/jwttoken"
	"tenderwatch/internal/platform/config"
	"tenderwatch/internal/platform/httpserver"
	"tenderwatch/internal/platform/logger"
	platformredis "tenderwatch/internal/platform/redis"
	tenderstore "tenderwatch/internal/tender/store"
	"tenderwatch/pkg/platform/audit"
	"tenderwatch/pkg/platform/audit/publisher"
	kafkasink "tenderwatch/pkg/platform/audit/sink/kafka"
	memorysink "tenderwatch/pkg/platform/audit/sink/memory"
	"tenderwatch/pkg/platform/middleware/request"
)

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in the internal service
// packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("failed to open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		log.Error("failed to reach database", "error", err)
		os.Exit(1)
	}

	cache, err := platformredis.New(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		os.Exit(1)
	}
	if cache != nil {
		defer cache.Close()
		log.Info("redis cache enabled")
	}

	var auditSink audit.Sink
	if len(cfg.KafkaBrokers) > 0 {
		kafka, err := kafkasink.New(cfg.KafkaBrokers, cfg.AuditTopic, log)
		if err != nil {
			log.Error("failed to connect to kafka", "error", err)
			os.Exit(1)
		}
		auditSink = kafka
		log.Info("kafka audit sink enabled", "topic", cfg.AuditTopic)
	} else {
		auditSink = memorysink.New()
	}
	auditor := publisher.NewPublisher(auditSink, log, publisher.WithAsyncBuffer(256))
	defer auditor.Close()

	var graph fraudservice.GraphAnalyzer
	if cfg.GraphServiceURL != "" {
		graph = graphclient.New(cfg.GraphServiceURL, cfg.GraphServiceTimeout)
		log.Info("graph analysis service enabled", "url", cfg.GraphServiceURL)
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "tenderwatch")

	tenders := tenderstore.NewPostgres(db)
	results := fraudstore.NewPostgres(db)

	fraud := fraudservice.NewService(fraudservice.Deps{
		Tenders: tenders,
		Results: results,
		Tx:      newFraudPostgresTx(db),
		Graph:   graph,
		Cache:   cache,
		Audit:   auditor,
		Metrics: fraudmetrics.New(),
		Logger:  log,
	}, fraudservice.Config{
		RepeatWinnerThreshold:  cfg.RepeatWinnerThreshold,
		PriceOutlierMultiplier: cfg.PriceOutlierMultiplier,
	})

	router := chi.NewRouter()
	router.Use(request.ID)
	router.Use(request.Time)
	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Handle("/metrics", promhttp.Handler())
	fraudhandler.New(fraud, log, jwtService).Register(router)

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		log.Info("starting tenderwatch", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
