package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/ft9362/internal/storage"
	"github.com/your-org/ft9362/pkg/dto"
)

// FingerHandler serves the enrolled-identity CRUD surface. Enrollment itself
// happens through SessionHandler; a Finger only exists once an enroll
// session completes its EnrollStages captures.
type FingerHandler struct {
	db *storage.PostgresStore
}

func NewFingerHandler(db *storage.PostgresStore) *FingerHandler {
	return &FingerHandler{db: db}
}

func (h *FingerHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finger id"})
		return
	}

	f, err := h.db.GetFinger(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if f == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "finger not found"})
		return
	}

	c.JSON(http.StatusOK, dto.FingerResponse{
		ID:        f.ID,
		Label:     f.Label,
		OwnerRef:  f.OwnerRef,
		CreatedAt: f.CreatedAt.Format("2006-01-02T15:04:05Z"),
	})
}

func (h *FingerHandler) List(c *gin.Context) {
	ownerRef := c.Query("owner_ref")
	if ownerRef == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "owner_ref required"})
		return
	}

	fingers, err := h.db.ListFingers(c.Request.Context(), ownerRef)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FingerResponse, 0, len(fingers))
	for _, f := range fingers {
		resp = append(resp, dto.FingerResponse{
			ID:        f.ID,
			Label:     f.Label,
			OwnerRef:  f.OwnerRef,
			CreatedAt: f.CreatedAt.Format("2006-01-02T15:04:05Z"),
		})
	}

	c.JSON(http.StatusOK, dto.FingerListResponse{Fingers: resp})
}

func (h *FingerHandler) Delete(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid finger id"})
		return
	}

	if err := h.db.DeleteFingerTemplates(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if err := h.db.DeleteFinger(c.Request.Context(), id); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}
