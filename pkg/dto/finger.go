package dto

import "github.com/google/uuid"

type CreateFingerRequest struct {
	Label    string `json:"label" binding:"required"`
	OwnerRef string `json:"owner_ref" binding:"required"`
}

type FingerResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	OwnerRef  string    `json:"owner_ref"`
	CreatedAt string    `json:"created_at"`
}

type FingerListResponse struct {
	Fingers []FingerResponse `json:"fingers"`
}
