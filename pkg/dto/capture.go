package dto

import "github.com/google/uuid"

type CreateSessionRequest struct {
	Mode     string     `json:"mode" binding:"required,oneof=enroll verify identify"`
	Label    string     `json:"label,omitempty"`     // required for enroll
	OwnerRef string     `json:"owner_ref,omitempty"` // required for enroll; accepted for identify but not used to filter candidates
	FingerID *uuid.UUID `json:"finger_id,omitempty"` // required for verify
}

type SessionResponse struct {
	ID          uuid.UUID `json:"id"`
	Mode        string    `json:"mode"`
	Status      string    `json:"status"`
	StagesDone  int       `json:"stages_done"`
	StagesTotal int       `json:"stages_total"`
	CreatedAt   string    `json:"created_at"`
}

// CaptureRequest submits one raw sensor frame to an active session; the
// handler always decodes it with fpmatch.DecodeRaw and rejects frames
// shorter than fpmatch.MinRawFrameBytes.
type CaptureRequest struct {
	RawFrame []byte `json:"raw_frame" binding:"required"`
}

type CaptureResponse struct {
	Accepted       bool   `json:"accepted"`
	SessionDone    bool   `json:"session_done"`
	QualityFailure string `json:"quality_failure,omitempty"`
	StagesDone     int    `json:"stages_done,omitempty"`
	StagesTotal    int    `json:"stages_total,omitempty"`
}

// MatchResponse is the DTO for a completed verify/identify decision.
type MatchResponse struct {
	Matched                 bool       `json:"matched"`
	BestDistance            float32    `json:"best_distance"`
	MatchedFingerID         *uuid.UUID `json:"matched_finger_id,omitempty"`
	TemplatesBelowThreshold int        `json:"templates_below_threshold"`
	TTAVotes                int        `json:"tta_votes"`
	TTATotal                int        `json:"tta_total"`
	BestNCC                 float32    `json:"best_ncc"`
	ProbeOrientation        float32    `json:"probe_orientation"`
	MinOrientationDiff      float32    `json:"min_orientation_diff"`
}

// WSEvent is a WebSocket message for real-time match delivery.
type WSEvent struct {
	Type      string        `json:"type"` // match_result
	SessionID uuid.UUID     `json:"session_id"`
	Data      MatchResponse `json:"data,omitempty"`
	Status    string        `json:"status,omitempty"`
}
