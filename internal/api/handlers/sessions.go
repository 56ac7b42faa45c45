package handlers

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/ft9362/internal/api/ws"
	"github.com/your-org/ft9362/internal/capture"
	"github.com/your-org/ft9362/internal/fpmatch"
	"github.com/your-org/ft9362/internal/models"
	"github.com/your-org/ft9362/internal/queue"
	"github.com/your-org/ft9362/internal/storage"
	"github.com/your-org/ft9362/pkg/dto"
)

// pending is the in-memory state an active session needs between captures;
// it does not survive an API process restart, the same way the driver's
// enroll/verify action state lives only as long as the device is open
// (original_source/driver/focaltech-0752.c).
type pending struct {
	mode      models.CaptureSessionMode
	enroll    *capture.EnrollSession
	label     string
	owner     string
	fingerID  *uuid.UUID
	templates fpmatch.TemplateSet
}

// SessionHandler drives enroll/verify/identify capture sessions: session
// lifecycle in Postgres, per-capture matching against fpmatch, and
// broadcasting completed decisions over the WebSocket hub.
type SessionHandler struct {
	db       *storage.PostgresStore
	producer *queue.Producer
	hub      *ws.Hub
	matcher  *capture.Matcher

	mu       sync.Mutex
	sessions map[uuid.UUID]*pending
}

func NewSessionHandler(db *storage.PostgresStore, producer *queue.Producer, hub *ws.Hub, matcher *capture.Matcher) *SessionHandler {
	return &SessionHandler{
		db:       db,
		producer: producer,
		hub:      hub,
		matcher:  matcher,
		sessions: make(map[uuid.UUID]*pending),
	}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	mode := models.CaptureSessionMode(req.Mode)
	sess := &models.CaptureSession{Mode: mode}
	p := &pending{mode: mode}

	switch mode {
	case models.CaptureModeEnroll:
		if req.Label == "" || req.OwnerRef == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "label and owner_ref required for enroll"})
			return
		}
		sess.StagesTotal = fpmatch.EnrollStages
		p.enroll = capture.NewEnrollSession(h.matcher, fpmatch.EnrollStages)
		p.label = req.Label
		p.owner = req.OwnerRef

	case models.CaptureModeVerify:
		if req.FingerID == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "finger_id required for verify"})
			return
		}
		f, err := h.db.GetFinger(c.Request.Context(), *req.FingerID)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if f == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "finger not found"})
			return
		}
		templates, err := fpmatch.DecodeTemplates(f.TemplateSet)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "stored template set corrupt: " + err.Error()})
			return
		}
		sess.StagesTotal = 1
		sess.FingerID = req.FingerID
		p.fingerID = req.FingerID
		p.templates = templates

	case models.CaptureModeIdentify:
		sess.StagesTotal = 1
		p.owner = req.OwnerRef

	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown mode"})
		return
	}

	if err := h.db.CreateCaptureSession(c.Request.Context(), sess); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	h.mu.Lock()
	h.sessions[sess.ID] = p
	h.mu.Unlock()

	c.JSON(http.StatusCreated, sessionToResponse(sess))
}

func (h *SessionHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	sess, err := h.db.GetCaptureSession(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if sess == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}

	c.JSON(http.StatusOK, sessionToResponse(sess))
}

// Capture submits one raw sensor frame to an active session and advances
// its state machine by exactly one step.
func (h *SessionHandler) Capture(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	h.mu.Lock()
	p, ok := h.sessions[id]
	h.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session (expired or never created here)"})
		return
	}

	var req dto.CaptureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if len(req.RawFrame) < fpmatch.MinRawFrameBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "raw_frame too short"})
		return
	}
	img := fpmatch.DecodeRaw(req.RawFrame)

	switch p.mode {
	case models.CaptureModeEnroll:
		h.captureEnroll(c, id, p, img)
	case models.CaptureModeVerify:
		h.captureVerify(c, id, p, img)
	case models.CaptureModeIdentify:
		h.captureIdentify(c, id, p, img)
	}
}

func (h *SessionHandler) captureEnroll(c *gin.Context, id uuid.UUID, p *pending, img fpmatch.Image) {
	ok, done, fail := p.enroll.Feed(img)

	resp := dto.CaptureResponse{
		Accepted:       ok,
		SessionDone:    done,
		QualityFailure: string(fail),
		StagesDone:     p.enroll.StagesDone(),
		StagesTotal:    fpmatch.EnrollStages,
	}

	_ = h.db.UpdateCaptureSession(c.Request.Context(), &models.CaptureSession{
		ID:          id,
		Status:      models.CaptureStatusActive,
		StagesDone:  resp.StagesDone,
		StagesTotal: resp.StagesTotal,
	})

	if !done {
		c.JSON(http.StatusOK, resp)
		return
	}

	templates, err := p.enroll.Finish()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	encoded := fpmatch.EncodeTemplates(templates)
	finger, err := h.db.CreateFinger(c.Request.Context(), p.label, p.owner, encoded)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for i, t := range templates {
		if _, err := h.db.AddFingerTemplate(c.Request.Context(), finger.ID, i, t.Embedding[:], t.Orientation); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("index template %d: %v", i, err)})
			return
		}
	}

	_ = h.db.UpdateCaptureSession(c.Request.Context(), &models.CaptureSession{
		ID: id, Status: models.CaptureStatusCompleted, StagesDone: resp.StagesDone, StagesTotal: resp.StagesTotal,
	})

	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()

	c.JSON(http.StatusOK, gin.H{
		"capture": resp,
		"finger": dto.FingerResponse{
			ID:        finger.ID,
			Label:     finger.Label,
			OwnerRef:  finger.OwnerRef,
			CreatedAt: finger.CreatedAt.Format("2006-01-02T15:04:05Z"),
		},
	})
}

func (h *SessionHandler) captureVerify(c *gin.Context, id uuid.UUID, p *pending, img fpmatch.Image) {
	result, err := capture.VerifyOne(c.Request.Context(), h.matcher, img, p.templates)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	h.finishDecision(c, id, models.CaptureModeVerify, p.fingerID, result)
}

func (h *SessionHandler) captureIdentify(c *gin.Context, id uuid.UUID, p *pending, img fpmatch.Image) {
	probeEmbedding := fpmatch.Embed(h.matcher.Weights, img)

	candidateRows, err := h.db.IdentifyCandidates(c.Request.Context(), probeEmbedding[:], 5)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	candidates := make([]capture.IdentifyCandidate, 0, len(candidateRows))
	for _, row := range candidateRows {
		f, err := h.db.GetFinger(c.Request.Context(), row.FingerID)
		if err != nil || f == nil {
			continue
		}
		templates, err := fpmatch.DecodeTemplates(f.TemplateSet)
		if err != nil {
			continue
		}
		candidates = append(candidates, capture.IdentifyCandidate{FingerID: f.ID.String(), Templates: templates})
	}

	fingerIDStr, result, found := capture.Identify(c.Request.Context(), h.matcher, img, candidates)

	var fingerID *uuid.UUID
	if found {
		parsed, err := uuid.Parse(fingerIDStr)
		if err == nil {
			fingerID = &parsed
		}
	}
	h.finishDecision(c, id, models.CaptureModeIdentify, fingerID, result)
}

func (h *SessionHandler) finishDecision(c *gin.Context, id uuid.UUID, mode models.CaptureSessionMode, fingerID *uuid.UUID, result fpmatch.Result) {
	ev := &models.MatchEvent{
		SessionID:               id,
		Mode:                    mode,
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
	if err := h.db.CreateMatchEvent(c.Request.Context(), ev); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	status := models.CaptureStatusCompleted
	_ = h.db.UpdateCaptureSession(c.Request.Context(), &models.CaptureSession{
		ID: id, Status: status, StagesDone: 1, StagesTotal: 1,
	})

	h.mu.Lock()
	delete(h.sessions, id)
	h.mu.Unlock()

	matchResp := dto.MatchResponse{
		Matched:                 ev.Matched,
		BestDistance:            ev.BestDistance,
		MatchedFingerID:         ev.MatchedFingerID,
		TemplatesBelowThreshold: ev.TemplatesBelowThreshold,
		TTAVotes:                ev.TTAVotes,
		TTATotal:                ev.TTATotal,
		BestNCC:                 ev.BestNCC,
		ProbeOrientation:        ev.ProbeOrientation,
		MinOrientationDiff:      ev.MinOrientationDiff,
	}

	h.hub.BroadcastEvent(&dto.WSEvent{Type: "match_result", SessionID: id, Data: matchResp})

	if h.producer != nil {
		_ = h.producer.PublishMatch(context.Background(), id.String(), models.MatchResult{
			SessionID:       id,
			Matched:         ev.Matched,
			BestDistance:    ev.BestDistance,
			MatchedFingerID: ev.MatchedFingerID,
			TTAVotes:        ev.TTAVotes,
			TTATotal:        ev.TTATotal,
			BestNCC:         ev.BestNCC,
		})
	}

	c.JSON(http.StatusOK, matchResp)
}

func (h *SessionHandler) Matches(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	events, err := h.db.ListMatchEvents(c.Request.Context(), id, 50)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.MatchResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, dto.MatchResponse{
			Matched:                 ev.Matched,
			BestDistance:            ev.BestDistance,
			MatchedFingerID:         ev.MatchedFingerID,
			TemplatesBelowThreshold: ev.TemplatesBelowThreshold,
			TTAVotes:                ev.TTAVotes,
			TTATotal:                ev.TTATotal,
			BestNCC:                 ev.BestNCC,
			ProbeOrientation:        ev.ProbeOrientation,
			MinOrientationDiff:      ev.MinOrientationDiff,
		})
	}

	c.JSON(http.StatusOK, gin.H{"matches": resp, "total": len(resp)})
}

func sessionToResponse(s *models.CaptureSession) dto.SessionResponse {
	return dto.SessionResponse{
		ID:          s.ID,
		Mode:        string(s.Mode),
		Status:      string(s.Status),
		StagesDone:  s.StagesDone,
		StagesTotal: s.StagesTotal,
		CreatedAt:   s.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
