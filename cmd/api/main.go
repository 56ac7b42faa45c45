package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/your-org/ft9362/internal/api"
	"github.com/your-org/ft9362/internal/api/ws"
	"github.com/your-org/ft9362/internal/capture"
	"github.com/your-org/ft9362/internal/config"
	"github.com/your-org/ft9362/internal/fpmatch/weights"
	"github.com/your-org/ft9362/internal/models"
	"github.com/your-org/ft9362/internal/observability"
	"github.com/your-org/ft9362/internal/queue"
	"github.com/your-org/ft9362/internal/storage"
	"github.com/your-org/ft9362/pkg/dto"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("starting FT9362 matcher API", "port", cfg.Server.Port)

	w, err := loadWeights(cfg.Matcher.WeightsPath)
	if err != nil {
		slog.Error("load network weights", "error", err, "path", cfg.Matcher.WeightsPath)
		os.Exit(1)
	}
	matcher := &capture.Matcher{Weights: w, Config: capture.ConfigFromYAML(cfg.Matcher)}

	db, err := storage.NewPostgresStore(cfg.Database)
	if err != nil {
		slog.Error("connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	minioStore, err := storage.NewMinIOStore(cfg.MinIO)
	if err != nil {
		slog.Error("connect to minio", "error", err)
		os.Exit(1)
	}
	if err := minioStore.EnsureBucket(context.Background()); err != nil {
		slog.Warn("ensure minio bucket", "error", err)
	}

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	hub := ws.NewHub()
	go hub.Run()

	matchConsumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create match consumer", "error", err)
		os.Exit(1)
	}
	defer matchConsumer.Close()

	consumeCtx, consumeCancel := context.WithCancel(context.Background())
	defer consumeCancel()

	err = matchConsumer.ConsumeMatches(consumeCtx, "api-matches", func(ctx context.Context, msg jetstream.Msg) error {
		var result models.MatchResult
		if err := json.Unmarshal(msg.Data(), &result); err != nil {
			return err
		}
		hub.BroadcastEvent(&dto.WSEvent{
			Type:      "match_result",
			SessionID: result.SessionID,
			Data: dto.MatchResponse{
				Matched:         result.Matched,
				BestDistance:    result.BestDistance,
				MatchedFingerID: result.MatchedFingerID,
				TTAVotes:        result.TTAVotes,
				TTATotal:        result.TTATotal,
				BestNCC:         result.BestNCC,
			},
		})
		return nil
	})
	if err != nil {
		slog.Warn("start match consumer", "error", err)
	}

	router := api.NewRouter(api.RouterConfig{
		APIKey:   cfg.Server.APIKey,
		DB:       db,
		MinIO:    minioStore,
		Producer: producer,
		Hub:      hub,
		Matcher:  matcher,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("API server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
	}

	slog.Info("API server stopped")
}

// loadWeights reads the network weights blob; an empty or missing path
// falls back to a correctly-shaped zero blob so the service still starts
// (every probe then embeds to the same constant vector — useful for
// smoke-testing the plumbing without a trained network on hand).
func loadWeights(path string) (*weights.Weights, error) {
	if path == "" {
		return weights.Zero(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("weights file not found, using zero-valued weights", "path", path)
			return weights.Zero(), nil
		}
		return nil, err
	}
	defer f.Close()
	return weights.Load(f)
}
