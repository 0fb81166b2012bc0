package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"disputeai/auth"
	"disputeai/config"
	"disputeai/db"
	"disputeai/dispute"
	"disputeai/events"
	"disputeai/evidence"
	"disputeai/extract"
	"disputeai/letter"
	"disputeai/schema"
	"disputeai/wizard"
)

// serve wires the dependencies and runs the HTTP server until ctx is done.
func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	pool, err := db.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	fields := schema.Dispute()

	llm := extract.DefaultConfig()
	llm.APIKey = cfg.LLM.APIKey
	llm.BaseURL = cfg.LLM.BaseURL
	if cfg.LLM.Model != "" {
		llm.Model = cfg.LLM.Model
	}
	if cfg.LLM.TimeoutSeconds > 0 {
		llm.Timeout = cfg.LLM.TimeoutSeconds
	}
	if cfg.LLM.RequestsPerSecond > 0 {
		llm.RequestsPerSecond = cfg.LLM.RequestsPerSecond
	}
	extractor, err := extract.NewOpenAIExtractor(llm, fields)
	if err != nil {
		return err
	}

	storage, err := evidence.NewS3Storage(evidence.S3Config{
		Endpoint:      cfg.Storage.Endpoint,
		AccessKey:     cfg.Storage.AccessKey,
		SecretKey:     cfg.Storage.SecretKey,
		Bucket:        cfg.Storage.Bucket,
		Region:        cfg.Storage.Region,
		UseSSL:        cfg.Storage.UseSSL,
		PublicBaseURL: cfg.Storage.PublicBaseURL,
	})
	if err != nil {
		return err
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		return err
	}

	var publisher events.Publisher = events.Noop{}
	if len(cfg.Events.KafkaBrokers) > 0 {
		kp, err := events.NewKafkaPublisher(cfg.Events.KafkaBrokers, map[string]string{
			events.TypeDisputeSubmitted: cfg.Events.Topic,
		})
		if err != nil {
			return err
		}
		defer func() {
			if err := kp.Close(); err != nil {
				logger.Warn("close kafka publisher", zap.Error(err))
			}
		}()
		publisher = kp
	}

	store, closeStore, err := newSessionStore(ctx, cfg.Session)
	if err != nil {
		return err
	}
	defer closeStore()

	disputes := dispute.NewRepository(pool)
	gateway := dispute.NewGateway(disputes, publisher, logger.Named("dispute"))
	controller := wizard.NewController(fields, extractor, evidence.NewCollector(storage, cfg.Storage.MaxFileBytes), gateway, logger.Named("wizard"))

	server := &Server{
		authService:    auth.NewService(auth.NewRepository(pool), cfg.Auth.JWTSecret).WithTokenTTL(cfg.Auth.TokenTTL),
		wizardService:  wizard.NewService(controller, store, logger.Named("wizard")),
		disputeService: dispute.NewService(disputes),
		letters:        letter.NewRenderer(),
		converter:      letter.NewClient(cfg.Letter.Endpoint, cfg.Letter.APIKey, time.Duration(cfg.Letter.TimeoutSeconds)*time.Second),
		logger:         logger.Named("http"),
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           server.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http server listening", zap.String("addr", cfg.HTTP.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		logger.Info("http server shutting down")
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func newSessionStore(ctx context.Context, cfg config.SessionConfig) (wizard.Store, func(), error) {
	if cfg.Backend != "redis" {
		return wizard.NewMemoryStore(cfg.TTL), func() {}, nil
	}
	client, err := wizard.ConnectRedis(ctx, cfg.RedisURL)
	if err != nil {
		return nil, nil, err
	}
	return wizard.NewRedisStore(client, cfg.TTL), func() { _ = client.Close() }, nil
}
