package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/internal/storage"
	"github.com/your-org/falldetect/pkg/dto"
)

// FallStore is the query side of storage.PostgresStore.
type FallStore interface {
	QueryFallEvents(ctx context.Context, cameraID string, from, to *time.Time, limit, offset int) ([]models.FallEvent, int, error)
	GetFallEvent(ctx context.Context, id uuid.UUID) (*models.FallEvent, error)
}

// ObjectGetter is the read side of storage.MinIOStore.
type ObjectGetter interface {
	GetObject(ctx context.Context, key string) ([]byte, error)
}

type FallHandler struct {
	db      FallStore
	objects ObjectGetter
}

func NewFallHandler(db FallStore, objects ObjectGetter) *FallHandler {
	return &FallHandler{db: db, objects: objects}
}

// FallToResponse converts a stored fall event to its API form.
func FallToResponse(ev models.FallEvent) dto.FallResponse {
	r := dto.FallResponse{
		ID:              ev.ID,
		CameraID:        ev.CameraID,
		TrackID:         ev.TrackID,
		DetectedAt:      ev.DetectedAt.Format(time.RFC3339Nano),
		FrameTime:       ev.FrameTime,
		BBox:            ev.BBox,
		Velocity:        ev.Velocity,
		MaxVelocity:     ev.MaxVelocity,
		AngleToVertical: ev.AngleToVertical,
		ShoulderDrop:    ev.ShoulderDrop,
	}
	if !ev.CreatedAt.IsZero() {
		r.CreatedAt = ev.CreatedAt.Format(time.RFC3339)
	}
	if ev.SnapshotKey != "" {
		r.SnapshotURL = "/v1/falls/" + ev.ID.String() + "/snapshot"
	}
	return r
}

func (h *FallHandler) List(c *gin.Context) {
	var q dto.FallQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	from, err := parseTime(q.From)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from: " + err.Error()})
		return
	}
	to, err := parseTime(q.To)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to: " + err.Error()})
		return
	}
	if q.Offset < 0 {
		q.Offset = 0
	}

	events, total, err := h.db.QueryFallEvents(c.Request.Context(), c.Param("id"), from, to, q.Limit, q.Offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.FallResponse, 0, len(events))
	for _, ev := range events {
		resp = append(resp, FallToResponse(ev))
	}
	c.JSON(http.StatusOK, dto.FallListResponse{Falls: resp, Total: total})
}

func (h *FallHandler) Get(c *gin.Context) {
	ev, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, FallToResponse(*ev))
}

// Snapshot proxies the frame a fall was detected on from MinIO.
func (h *FallHandler) Snapshot(c *gin.Context) {
	ev, ok := h.lookup(c)
	if !ok {
		return
	}
	if ev.SnapshotKey == "" {
		c.JSON(http.StatusNotFound, gin.H{"error": "fall has no snapshot"})
		return
	}

	data, err := h.objects.GetObject(c.Request.Context(), ev.SnapshotKey)
	if errors.Is(err, storage.ErrObjectNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "snapshot not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.Data(http.StatusOK, "image/jpeg", data)
}

func (h *FallHandler) lookup(c *gin.Context) (*models.FallEvent, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid fall id"})
		return nil, false
	}
	ev, err := h.db.GetFallEvent(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	if ev == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "fall not found"})
		return nil, false
	}
	return ev, true
}

// parseTime accepts RFC 3339 or unix seconds. Empty means unset.
func parseTime(s string) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if secs, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(secs, 0)
		return &t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
