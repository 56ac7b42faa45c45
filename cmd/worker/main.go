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
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/ft9362/internal/capture"
	"github.com/your-org/ft9362/internal/config"
	"github.com/your-org/ft9362/internal/fpmatch"
	"github.com/your-org/ft9362/internal/fpmatch/weights"
	"github.com/your-org/ft9362/internal/models"
	"github.com/your-org/ft9362/internal/observability"
	"github.com/your-org/ft9362/internal/queue"
	"github.com/your-org/ft9362/internal/storage"
)

// worker processes verify/identify captures published asynchronously by a
// capture front-end (cmd/sensorsim or a real sensor driver) instead of the
// synchronous REST capture path — the NATS CAPTURES/MATCHES round trip
// SPEC_FULL §2's domain stack table describes. Enroll sessions stay on the
// synchronous path in cmd/api, since EnrollSession's in-progress template
// accumulation is process-local state a stateless worker pool can't share.
func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting FT9362 match worker", "cpu_cores", runtime.NumCPU())

	w, err := loadWeights(cfg.Matcher.WeightsPath)
	if err != nil {
		slog.Error("load network weights", "error", err)
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

	producer, err := queue.NewProducer(cfg.NATS.URL)
	if err != nil {
		slog.Error("connect to nats producer", "error", err)
		os.Exit(1)
	}
	defer producer.Close()

	if err := producer.EnsureStreams(context.Background()); err != nil {
		slog.Warn("ensure nats streams", "error", err)
	}

	consumer, err := queue.NewConsumer(cfg.NATS.URL)
	if err != nil {
		slog.Error("create consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	const workerCount = 4
	err = consumer.ConsumeCaptures(ctx, "match-workers", func(ctx context.Context, msg jetstream.Msg) error {
		var task models.CaptureTask
		if err := json.Unmarshal(msg.Data(), &task); err != nil {
			slog.Error("unmarshal capture task", "error", err)
			return nil // don't retry on unmarshal errors
		}

		start := time.Now()
		err := processCapture(ctx, db, minioStore, producer, matcher, task)
		observability.InferenceDuration.WithLabelValues("worker_capture").Observe(time.Since(start).Seconds())
		if err != nil {
			return fmt.Errorf("process capture %s: %w", task.CaptureID, err)
		}
		return nil
	}, workerCount)
	if err != nil {
		slog.Error("start capture consumer", "error", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("worker metrics listening", "addr", ":8082")
		if err := http.ListenAndServe(":8082", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				depth, err := producer.QueueDepth(ctx)
				if err == nil {
					observability.QueueDepth.Set(float64(depth))
				}
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down worker...")
	cancel()
	time.Sleep(2 * time.Second)
	slog.Info("worker stopped")
}

func processCapture(ctx context.Context, db *storage.PostgresStore, minioStore *storage.MinIOStore, producer *queue.Producer, matcher *capture.Matcher, task models.CaptureTask) error {
	sess, err := db.GetCaptureSession(ctx, task.SessionID)
	if err != nil {
		return fmt.Errorf("get session: %w", err)
	}
	if sess == nil {
		return fmt.Errorf("session %s not found", task.SessionID)
	}
	if sess.Mode == models.CaptureModeEnroll {
		slog.Warn("enroll capture submitted via async path, ignoring", "session_id", task.SessionID)
		return nil
	}

	raw, err := minioStore.GetObject(ctx, task.FrameRef)
	if err != nil {
		return fmt.Errorf("fetch frame %s: %w", task.FrameRef, err)
	}
	if len(raw) < fpmatch.MinRawFrameBytes {
		return fmt.Errorf("frame %s too short", task.FrameRef)
	}
	img := fpmatch.DecodeRaw(raw)

	var fingerID *uuid.UUID
	var result fpmatch.Result

	switch sess.Mode {
	case models.CaptureModeVerify:
		if sess.FingerID == nil {
			return fmt.Errorf("verify session %s missing finger_id", task.SessionID)
		}
		f, err := db.GetFinger(ctx, *sess.FingerID)
		if err != nil || f == nil {
			return fmt.Errorf("load finger: %w", err)
		}
		templates, err := fpmatch.DecodeTemplates(f.TemplateSet)
		if err != nil {
			return fmt.Errorf("decode templates: %w", err)
		}
		result, err = capture.VerifyOne(ctx, matcher, img, templates)
		if err != nil {
			return err
		}
		fingerID = sess.FingerID

	case models.CaptureModeIdentify:
		probe := fpmatch.Embed(matcher.Weights, img)
		rows, err := db.IdentifyCandidates(ctx, probe[:], 5)
		if err != nil {
			return fmt.Errorf("identify candidates: %w", err)
		}
		candidates := make([]capture.IdentifyCandidate, 0, len(rows))
		for _, row := range rows {
			f, err := db.GetFinger(ctx, row.FingerID)
			if err != nil || f == nil {
				continue
			}
			templates, err := fpmatch.DecodeTemplates(f.TemplateSet)
			if err != nil {
				continue
			}
			candidates = append(candidates, capture.IdentifyCandidate{FingerID: f.ID.String(), Templates: templates})
		}
		var found bool
		var idStr string
		idStr, result, found = capture.Identify(ctx, matcher, img, candidates)
		if found {
			parsed, err := uuid.Parse(idStr)
			if err == nil {
				fingerID = &parsed
			}
		}
	}

	ev := &models.MatchEvent{
		SessionID:               task.SessionID,
		Mode:                    sess.Mode,
		Matched:                 result.Matched,
		BestDistance:            result.BestDistance,
		MatchedFingerID:         fingerID,
		TemplatesBelowThreshold: result.TemplatesBelowThreshold,
		TTAVotes:                result.TTAVotes,
		TTATotal:                result.TTATotal,
		BestNCC:                 result.BestNCC,
		ProbeOrientation:        result.ProbeOrientation,
		MinOrientationDiff:      result.MinOrientationDiff,
	}
	if err := db.CreateMatchEvent(ctx, ev); err != nil {
		return fmt.Errorf("store match event: %w", err)
	}

	sess.Status = models.CaptureStatusCompleted
	sess.StagesDone = 1
	if err := db.UpdateCaptureSession(ctx, sess); err != nil {
		slog.Warn("update session status", "error", err)
	}

	return producer.PublishMatch(ctx, task.SessionID.String(), models.MatchResult{
		SessionID:       task.SessionID,
		Matched:         ev.Matched,
		BestDistance:    ev.BestDistance,
		MatchedFingerID: ev.MatchedFingerID,
		TTAVotes:        ev.TTAVotes,
		TTATotal:        ev.TTATotal,
		BestNCC:         ev.BestNCC,
	})
}

func loadWeights(path string) (*weights.Weights, error) {
	if path == "" {
		return weights.Zero(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return weights.Zero(), nil
		}
		return nil, err
	}
	defer f.Close()
	return weights.Load(f)
}
