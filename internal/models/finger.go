package models

import (
	"time"

	"github.com/google/uuid"
)

// Finger is one enrolled fingerprint identity: a named finger (or whichever
// label the host application uses) backed by a completed template set.
type Finger struct {
	ID          uuid.UUID `json:"id" db:"id"`
	Label       string    `json:"label" db:"label"`
	OwnerRef    string    `json:"owner_ref" db:"owner_ref"` // host-application user/device reference
	TemplateSet []byte    `json:"-" db:"template_set"`       // fpmatch.EncodeTemplates output
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// FingerTemplate is one row of the per-template ANN index: a finger's
// template's embedding, stored separately from the opaque TemplateSet blob
// so pgvector can search across all enrolled fingers for identify-mode
// candidate narrowing (SPEC_FULL §2, new scope beyond the driver's
// single-finger verify loop).
type FingerTemplate struct {
	ID         uuid.UUID `json:"id" db:"id"`
	FingerID   uuid.UUID `json:"finger_id" db:"finger_id"`
	Seq        int       `json:"seq" db:"seq"`
	Embedding  []float32 `json:"-" db:"embedding"`
	Orientation float32  `json:"orientation" db:"orientation"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}
