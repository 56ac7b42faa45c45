package models

import (
	"time"

	"github.com/google/uuid"
)

// MatchEvent is the persisted outcome of one verify/identify decision, the
// fingerprint-domain analog of the teacher's Event.
type MatchEvent struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	SessionID           uuid.UUID  `json:"session_id" db:"session_id"`
	Mode                CaptureSessionMode `json:"mode" db:"mode"`
	Matched             bool       `json:"matched" db:"matched"`
	BestDistance        float32    `json:"best_distance" db:"best_distance"`
	MatchedFingerID     *uuid.UUID `json:"matched_finger_id,omitempty" db:"matched_finger_id"`
	TemplatesBelowThreshold int    `json:"templates_below_threshold" db:"templates_below_threshold"`
	TTAVotes            int        `json:"tta_votes" db:"tta_votes"`
	TTATotal            int        `json:"tta_total" db:"tta_total"`
	BestNCC             float32    `json:"best_ncc" db:"best_ncc"`
	ProbeOrientation    float32    `json:"probe_orientation" db:"probe_orientation"`
	MinOrientationDiff  float32    `json:"min_orientation_diff" db:"min_orientation_diff"`
	DebugFrameKey       string     `json:"debug_frame_key,omitempty" db:"debug_frame_key"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// MatchResult is the message published to NATS / broadcast over the
// websocket hub for one completed verify/identify decision.
type MatchResult struct {
	SessionID        uuid.UUID  `json:"session_id"`
	Matched          bool       `json:"matched"`
	BestDistance     float32    `json:"best_distance"`
	MatchedFingerID  *uuid.UUID `json:"matched_finger_id,omitempty"`
	TTAVotes         int        `json:"tta_votes"`
	TTATotal         int        `json:"tta_total"`
	BestNCC          float32    `json:"best_ncc"`
}
