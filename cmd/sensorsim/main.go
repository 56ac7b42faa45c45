// cmd/sensorsim stands in for the USB capture front-end spec.md §1 puts
// out of scope: it publishes synthetic raw sensor frames on command instead
// of reading a real FT9362 over USB, so the rest of the system (capture
// sessions, worker, matcher) can be exercised end to end without hardware.
// Its command loop and retry shape are grounded on the same ingest
// control-loop pattern the teacher used for its RTSP/file stream manager.
package main

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/ft9362/internal/config"
	"github.com/your-org/ft9362/internal/fpmatch"
	"github.com/your-org/ft9362/internal/models"
	"github.com/your-org/ft9362/internal/observability"
	"github.com/your-org/ft9362/internal/queue"
	"github.com/your-org/ft9362/internal/storage"
)

// controlCommand is the JSON payload expected on the "capture.control"
// subject (the subject Producer.PublishControl writes to) — start/stop a
// synthetic capture loop for one session.
type controlCommand struct {
	Action    string `json:"action"`
	SessionID string `json:"session_id"`
}

func parseCommand(data []byte) (controlCommand, error) {
	var cmd controlCommand
	if err := json.Unmarshal(data, &cmd); err != nil {
		return controlCommand{}, fmt.Errorf("parse control command: %w", err)
	}
	if cmd.Action == "" || cmd.SessionID == "" {
		return controlCommand{}, fmt.Errorf("control command missing action or session_id")
	}
	return cmd, nil
}

// activeCapture is one running synthetic frame generator.
type activeCapture struct {
	cancel context.CancelFunc
}

// manager tracks one activeCapture per session and retries frame
// publication with exponential backoff, the same resilience shape the
// teacher's stream manager used for flaky upstream sources.
type manager struct {
	mu        sync.Mutex
	active    map[string]*activeCapture
	producer  *queue.Producer
	minio     *storage.MinIOStore
	intervalMs int
}

func newManager(producer *queue.Producer, minio *storage.MinIOStore, intervalMs int) *manager {
	return &manager{
		active:     make(map[string]*activeCapture),
		producer:   producer,
		minio:      minio,
		intervalMs: intervalMs,
	}
}

func (m *manager) handleCommand(ctx context.Context, cmd controlCommand) error {
	switch cmd.Action {
	case "start":
		return m.startCapture(ctx, cmd.SessionID)
	case "stop":
		m.stopCapture(cmd.SessionID)
		return nil
	default:
		return fmt.Errorf("unknown action %q", cmd.Action)
	}
}

func (m *manager) startCapture(parent context.Context, sessionID string) error {
	m.mu.Lock()
	if _, exists := m.active[sessionID]; exists {
		m.mu.Unlock()
		return fmt.Errorf("session %s already capturing", sessionID)
	}
	ctx, cancel := context.WithCancel(parent)
	m.active[sessionID] = &activeCapture{cancel: cancel}
	m.mu.Unlock()

	go m.runCapture(ctx, sessionID)
	slog.Info("sensorsim capture started", "session_id", sessionID)
	return nil
}

func (m *manager) stopCapture(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ac, ok := m.active[sessionID]; ok {
		ac.cancel()
		delete(m.active, sessionID)
		slog.Info("sensorsim capture stopped", "session_id", sessionID)
	}
}

func (m *manager) activeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

func (m *manager) stopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, ac := range m.active {
		ac.cancel()
		delete(m.active, id)
	}
}

func (m *manager) runCapture(ctx context.Context, sessionID string) {
	interval := time.Duration(m.intervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	backoff := time.Second
	const maxBackoff = 30 * time.Second
	seq := 0

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			frame := syntheticRawFrame(seq)
			key := fmt.Sprintf("captures/%s/%d.raw", sessionID, seq)

			if err := m.minio.PutObject(ctx, key, frame, "application/octet-stream"); err != nil {
				slog.Warn("sensorsim: store frame failed, backing off", "session_id", sessionID, "error", err, "backoff", backoff)
				time.Sleep(backoff)
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}

			task := models.CaptureTask{
				SessionID: uuid.MustParse(sessionID),
				CaptureID: uuid.New(),
				Timestamp: timestampNow(seq),
				FrameRef:  key,
				Seq:       seq,
			}
			if err := m.producer.PublishCapture(ctx, sessionID, task); err != nil {
				slog.Warn("sensorsim: publish capture failed, backing off", "session_id", sessionID, "error", err, "backoff", backoff)
				time.Sleep(backoff)
				if backoff < maxBackoff {
					backoff *= 2
				}
				continue
			}

			backoff = time.Second
			seq++
		}
	}
}

// timestampNow derives a deterministic stamp from the sequence number
// (Unix epoch plus 100ms per frame) instead of reading the wall clock; it
// orders frames within a session but does not reflect the capture time.
func timestampNow(seq int) time.Time {
	return time.Unix(0, 0).Add(time.Duration(seq) * 100 * time.Millisecond).UTC()
}

// syntheticRawFrame builds a plausible raw sensor frame: a 6-byte header
// followed by little-endian int16 samples forming a faint ridge-like
// sinusoidal pattern plus noise, shaped exactly like decode.go expects
// (rawHeader + ImageSize calibration/image samples).
func syntheticRawFrame(seq int) []byte {
	buf := make([]byte, fpmatch.MinRawFrameBytes)
	r := rand.New(rand.NewSource(int64(seq) + 1))

	for i := 0; i < fpmatch.ImageSize; i++ {
		row := i / fpmatch.ImageWidth
		col := i % fpmatch.ImageWidth
		ridge := math.Sin(float64(col)/3.0+float64(seq)*0.05) * math.Cos(float64(row)/5.0)
		noise := (r.Float64() - 0.5) * 0.2
		v := int16((ridge*0.4 + 0.5 + noise) * 2048)
		off := 6 + fpmatch.ImageSize*2 + i*2
		binary.LittleEndian.PutUint16(buf[off:off+2], uint16(v))
	}
	return buf
}

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	intervalMs := flag.Int("interval-ms", 200, "synthetic frame interval in milliseconds")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	observability.SetupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting FT9362 sensor simulator", "interval_ms", *intervalMs)

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

	mgr := newManager(producer, minioStore, *intervalMs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nc, err := nats.Connect(cfg.NATS.URL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		slog.Error("connect to nats for control", "error", err)
		os.Exit(1)
	}
	defer nc.Close()

	_, err = nc.Subscribe("capture.control", func(msg *nats.Msg) {
		cmd, err := parseCommand(msg.Data)
		if err != nil {
			slog.Error("parse command", "error", err)
			return
		}
		slog.Info("received command", "action", cmd.Action, "session_id", cmd.SessionID)
		if err := mgr.handleCommand(ctx, cmd); err != nil {
			slog.Error("handle command", "error", err, "action", cmd.Action, "session_id", cmd.SessionID)
		}
	})
	if err != nil {
		slog.Error("subscribe to control", "error", err)
		os.Exit(1)
	}

	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ok"}`))
		})
		slog.Info("sensorsim metrics listening", "addr", ":8081")
		if err := http.ListenAndServe(":8081", mux); err != nil {
			slog.Error("metrics server error", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down sensorsim...", "active_captures", mgr.activeCount())
	cancel()
	mgr.stopAll()
	time.Sleep(500 * time.Millisecond)
	slog.Info("sensorsim stopped")
}
