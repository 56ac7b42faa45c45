package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/ft9362/internal/config"
	"github.com/your-org/ft9362/internal/models"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Fingers ---

func (s *PostgresStore) CreateFinger(ctx context.Context, label, ownerRef string, templateSet []byte) (*models.Finger, error) {
	f := &models.Finger{
		ID:          uuid.New(),
		Label:       label,
		OwnerRef:    ownerRef,
		TemplateSet: templateSet,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO fingers (id, label, owner_ref, template_set) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		f.ID, f.Label, f.OwnerRef, f.TemplateSet,
	).Scan(&f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create finger: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) GetFinger(ctx context.Context, id uuid.UUID) (*models.Finger, error) {
	f := &models.Finger{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, label, owner_ref, template_set, created_at, updated_at FROM fingers WHERE id = $1`, id,
	).Scan(&f.ID, &f.Label, &f.OwnerRef, &f.TemplateSet, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get finger: %w", err)
	}
	return f, nil
}

func (s *PostgresStore) ListFingers(ctx context.Context, ownerRef string) ([]models.Finger, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, label, owner_ref, created_at, updated_at FROM fingers WHERE owner_ref = $1 ORDER BY created_at DESC`,
		ownerRef)
	if err != nil {
		return nil, fmt.Errorf("list fingers: %w", err)
	}
	defer rows.Close()

	var fingers []models.Finger
	for rows.Next() {
		var f models.Finger
		if err := rows.Scan(&f.ID, &f.Label, &f.OwnerRef, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan finger: %w", err)
		}
		fingers = append(fingers, f)
	}
	return fingers, nil
}

func (s *PostgresStore) DeleteFinger(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM fingers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete finger: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finger not found")
	}
	return nil
}

// --- Finger templates (pgvector ANN index) ---

// AddFingerTemplate indexes one template's embedding so identify-mode can
// shortlist candidate fingers by cosine distance before the exact §4.6
// verifier runs — new scope beyond the driver, see SPEC_FULL §3.
func (s *PostgresStore) AddFingerTemplate(ctx context.Context, fingerID uuid.UUID, seq int, embedding []float32, orientation float32) (*models.FingerTemplate, error) {
	ft := &models.FingerTemplate{
		ID:          uuid.New(),
		FingerID:    fingerID,
		Seq:         seq,
		Embedding:   embedding,
		Orientation: orientation,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO finger_templates (id, finger_id, seq, embedding, orientation) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		ft.ID, ft.FingerID, ft.Seq, vec, ft.Orientation,
	).Scan(&ft.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add finger template: %w", err)
	}
	return ft, nil
}

func (s *PostgresStore) DeleteFingerTemplates(ctx context.Context, fingerID uuid.UUID) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM finger_templates WHERE finger_id = $1`, fingerID)
	if err != nil {
		return fmt.Errorf("delete finger templates: %w", err)
	}
	return nil
}

// IdentifyCandidates returns the fingers whose nearest template embedding is
// closest to probe, ordered nearest-first. It is a pre-filter only: the
// exact decision still comes from fpmatch.Verify against the shortlisted
// finger's full template set.
func (s *PostgresStore) IdentifyCandidates(ctx context.Context, embedding []float32, limit int) ([]CandidateFinger, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	rows, err := s.pool.Query(ctx, `
		SELECT ft.finger_id, MIN(ft.embedding <=> $1) AS dist
		FROM finger_templates ft
		GROUP BY ft.finger_id
		ORDER BY dist
		LIMIT $2`, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("identify candidates: %w", err)
	}
	defer rows.Close()

	var candidates []CandidateFinger
	for rows.Next() {
		var c CandidateFinger
		if err := rows.Scan(&c.FingerID, &c.CosineDistance); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		candidates = append(candidates, c)
	}
	return candidates, nil
}

type CandidateFinger struct {
	FingerID       uuid.UUID `json:"finger_id"`
	CosineDistance float32   `json:"cosine_distance"`
}

// --- Capture sessions ---

func (s *PostgresStore) CreateCaptureSession(ctx context.Context, sess *models.CaptureSession) error {
	sess.ID = uuid.New()
	sess.Status = models.CaptureStatusActive
	return s.pool.QueryRow(ctx,
		`INSERT INTO capture_sessions (id, mode, finger_id, status, stages_done, stages_total)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		sess.ID, sess.Mode, sess.FingerID, sess.Status, sess.StagesDone, sess.StagesTotal,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
}

func (s *PostgresStore) GetCaptureSession(ctx context.Context, id uuid.UUID) (*models.CaptureSession, error) {
	sess := &models.CaptureSession{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, mode, finger_id, status, stages_done, stages_total, error_message, created_at, updated_at
		 FROM capture_sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.Mode, &sess.FingerID, &sess.Status, &sess.StagesDone, &sess.StagesTotal,
		&sess.ErrorMessage, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get capture session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) UpdateCaptureSession(ctx context.Context, sess *models.CaptureSession) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE capture_sessions SET status = $1, stages_done = $2, error_message = $3 WHERE id = $4`,
		sess.Status, sess.StagesDone, sess.ErrorMessage, sess.ID)
	return err
}

// --- Match events ---

func (s *PostgresStore) CreateMatchEvent(ctx context.Context, ev *models.MatchEvent) error {
	ev.ID = uuid.New()
	ev.CreatedAt = time.Now()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO match_events (id, session_id, mode, matched, best_distance, matched_finger_id,
			templates_below_threshold, tta_votes, tta_total, best_ncc, probe_orientation, min_orientation_diff,
			debug_frame_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		ev.ID, ev.SessionID, ev.Mode, ev.Matched, ev.BestDistance, ev.MatchedFingerID,
		ev.TemplatesBelowThreshold, ev.TTAVotes, ev.TTATotal, ev.BestNCC, ev.ProbeOrientation, ev.MinOrientationDiff,
		ev.DebugFrameKey, ev.CreatedAt)
	return err
}

func (s *PostgresStore) ListMatchEvents(ctx context.Context, sessionID uuid.UUID, limit int) ([]models.MatchEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, session_id, mode, matched, best_distance, matched_finger_id,
			templates_below_threshold, tta_votes, tta_total, best_ncc, probe_orientation, min_orientation_diff,
			debug_frame_key, created_at
		 FROM match_events WHERE session_id = $1 ORDER BY created_at DESC LIMIT $2`, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("list match events: %w", err)
	}
	defer rows.Close()

	var events []models.MatchEvent
	for rows.Next() {
		var ev models.MatchEvent
		if err := rows.Scan(&ev.ID, &ev.SessionID, &ev.Mode, &ev.Matched, &ev.BestDistance, &ev.MatchedFingerID,
			&ev.TemplatesBelowThreshold, &ev.TTAVotes, &ev.TTATotal, &ev.BestNCC, &ev.ProbeOrientation, &ev.MinOrientationDiff,
			&ev.DebugFrameKey, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan match event: %w", err)
		}
		events = append(events, ev)
	}
	return events, nil
}
