package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// CaptureSessionMode distinguishes an enrollment session (accumulating
// EnrollStages accepted captures into a new finger) from an identify
// session (matching a single probe against some or all enrolled fingers).
type CaptureSessionMode string

const (
	CaptureModeEnroll   CaptureSessionMode = "enroll"
	CaptureModeVerify   CaptureSessionMode = "verify"
	CaptureModeIdentify CaptureSessionMode = "identify"
)

type CaptureSessionStatus string

const (
	CaptureStatusActive    CaptureSessionStatus = "active"
	CaptureStatusCompleted CaptureSessionStatus = "completed"
	CaptureStatusError     CaptureSessionStatus = "error"
)

// CaptureSession is the service-layer record of an enroll/verify/identify
// session, analogous to the driver's per-device enroll/verify state
// (original_source/driver/focaltech-0752.c) but addressable over HTTP.
type CaptureSession struct {
	ID           uuid.UUID            `json:"id" db:"id"`
	Mode         CaptureSessionMode   `json:"mode" db:"mode"`
	FingerID     *uuid.UUID           `json:"finger_id,omitempty" db:"finger_id"`
	Status       CaptureSessionStatus `json:"status" db:"status"`
	StagesDone   int                  `json:"stages_done" db:"stages_done"`
	StagesTotal  int                  `json:"stages_total" db:"stages_total"`
	ErrorMessage string               `json:"error_message,omitempty" db:"error_message"`
	CreatedAt    time.Time            `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at" db:"updated_at"`
}

// CaptureTask is the message published to NATS for worker processing of one
// raw sensor frame, the fingerprint-domain analog of the teacher's
// FrameTask.
type CaptureTask struct {
	SessionID uuid.UUID `json:"session_id"`
	CaptureID uuid.UUID `json:"capture_id"`
	Timestamp time.Time `json:"timestamp"`
	FrameRef  string    `json:"frame_ref"` // MinIO object key of the raw frame bytes
	Seq       int       `json:"seq"`
}

// CaptureConfig is an opaque per-session config blob (kept for parity with
// the teacher's Stream.Config column; unused by the core itself).
type CaptureConfig json.RawMessage
