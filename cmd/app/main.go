package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/local/pdfsqueeze/internal/config"
	"github.com/local/pdfsqueeze/internal/converter"
	"github.com/local/pdfsqueeze/internal/dispatcher"
	"github.com/local/pdfsqueeze/internal/docmodel"
	"github.com/local/pdfsqueeze/internal/filetype"
	"github.com/local/pdfsqueeze/internal/intake"
	"github.com/local/pdfsqueeze/internal/limiter"
	"github.com/local/pdfsqueeze/internal/logger"
	"github.com/local/pdfsqueeze/internal/metrics"
	"github.com/local/pdfsqueeze/internal/orchestrator"
	"github.com/local/pdfsqueeze/internal/queue"
	"github.com/local/pdfsqueeze/internal/statuscheck"
	"github.com/local/pdfsqueeze/internal/storage"
	"github.com/local/pdfsqueeze/internal/store"
	"github.com/local/pdfsqueeze/internal/web"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	_ = logger.Init(logger.Options{
		Level:        cfg.Logging.Level,
		Pretty:       cfg.Logging.Pretty,
		File:         cfg.Logging.File,
		MaxSizeMB:    cfg.Logging.MaxSizeMB,
		MaxBackups:   cfg.Logging.MaxBackups,
		MaxAgeDays:   cfg.Logging.MaxAgeDays,
		Compress:     cfg.Logging.Compress,
		SendToAxiom:  cfg.Axiom.Send && cfg.Axiom.APIKey != "",
		AxiomAPIKey:  cfg.Axiom.APIKey,
		AxiomOrgID:   cfg.Axiom.OrgID,
		AxiomDataset: cfg.Axiom.Dataset,
		AxiomFlush:   cfg.Axiom.FlushInterval,
	})
	defer logger.Close()

	metrics.Init()

	rq, err := queue.NewRedisQueue(cfg.Queue.RedisURL, cfg.Queue.Stream, cfg.Queue.Group, cfg.Queue.PollInterval)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to redis")
	}
	defer rq.Close()

	rs, err := store.NewRedisStatus(cfg.Queue.RedisURL, cfg.Storage.ResultTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init redis status store")
	}
	defer rs.Close()

	provider := docmodel.NewPDFProvider()
	detector := filetype.New()
	conv := converter.NewLibreOffice(cfg.Converter.SofficePath, cfg.Converter.Timeout, 2)
	resolver := intake.New(detector, conv)
	if guard, err := limiter.New(limiter.Options{RedisURL: cfg.Queue.RedisURL}); err != nil {
		log.Warn().Err(err).Msg("converter guard unavailable")
	} else {
		resolver.WithGuard(guard)
		defer guard.CloseClient()
	}

	checker := statuscheck.New(statuscheck.Options{
		Redis:       rq,
		S3Bucket:    cfg.Storage.S3Bucket,
		ResultDir:   cfg.Storage.ResultDir,
		SofficePath: cfg.Converter.SofficePath,
	})

	rootCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()

	// Dispatcher workers (optional: set RUN_DISPATCHER=0 for an API-only node)
	runDispatcher := os.Getenv("RUN_DISPATCHER")
	if runDispatcher == "" || runDispatcher == "1" || runDispatcher == "true" {
		disp := dispatcher.New(cfg.Worker, rq, rs, provider).WithResolver(resolver)
		if cfg.Storage.S3Bucket != "" {
			if s3c, err := storage.NewS3Client(rootCtx, cfg.Storage.S3Bucket); err != nil {
				log.Warn().Err(err).Msg("s3 unavailable, results stay local only")
			} else {
				disp.WithPublisher(storage.NewResultPublisher(s3c, cfg.Storage.S3Prefix))
			}
		}
		disp.Start()
		defer disp.Stop(context.Background())
	}

	orch := orchestrator.New(orchestrator.Dependencies{
		Queue:       rq,
		Status:      rs,
		Provider:    provider,
		Detector:    detector,
		Resolver:    resolver,
		Checker:     checker,
		Compression: cfg.Compression,
		Storage:     cfg.Storage,
	})
	mux := http.NewServeMux()
	orch.RegisterRoutes(mux)

	dash := web.New(cfg.Server, checker, rq.Depths)
	dash.RegisterRoutes(mux)

	mux.Handle("/metrics", metrics.Handler())

	orchestrator.StartJanitor(rootCtx, cfg.Storage)
	go gaugeQueueDepths(rootCtx, rq)

	addr := cfg.Server.Addr
	if port := os.Getenv("PORT"); port != "" {
		addr = ":" + port
	}
	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		log.Info().Str("addr", addr).Msg("HTTP server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("http server error")
		}
	}()

	<-rootCtx.Done()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	log.Info().Msg("shutdown complete")
}

func gaugeQueueDepths(ctx context.Context, rq *queue.RedisQueue) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ready, delayed, dlq, err := rq.Depths(ctx)
			if err != nil {
				continue
			}
			metrics.SetQueueDepth("ready", ready)
			metrics.SetQueueDepth("delayed", delayed)
			metrics.SetQueueDepth("dlq", dlq)
		}
	}
}
