package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/falldetect/internal/diagnostics"
	"github.com/your-org/falldetect/internal/models"
	"github.com/your-org/falldetect/pkg/dto"
)

// ControlPublisher sends camera commands to the detectors.
type ControlPublisher interface {
	PublishControl(cmd models.CameraCommand) error
}

// ObjectDeleter removes stored objects.
type ObjectDeleter interface {
	DeleteObject(ctx context.Context, key string) error
}

type CameraHandler struct {
	producer    ControlPublisher
	diagnostics ObjectDeleter
}

// NewCameraHandler returns a CameraHandler. diagnostics may be nil when the
// detectors do not keep diagnostics in the object store.
func NewCameraHandler(producer ControlPublisher, diagnostics ObjectDeleter) *CameraHandler {
	return &CameraHandler{producer: producer, diagnostics: diagnostics}
}

func (h *CameraHandler) Create(c *gin.Context) {
	var req dto.CreateCameraRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	h.send(c, models.CameraCommand{Action: models.CameraActionAdd, CameraID: req.ID, Name: req.Name}, http.StatusAccepted, "adding")
}

func (h *CameraHandler) Start(c *gin.Context) {
	h.send(c, models.CameraCommand{Action: models.CameraActionStart, CameraID: c.Param("id")}, http.StatusOK, "starting")
}

func (h *CameraHandler) Stop(c *gin.Context) {
	h.send(c, models.CameraCommand{Action: models.CameraActionStop, CameraID: c.Param("id")}, http.StatusOK, "stopped")
}

// Delete stops the camera's runner and drops its diagnostics record when
// one is kept in the object store.
func (h *CameraHandler) Delete(c *gin.Context) {
	id := c.Param("id")
	if err := h.producer.PublishControl(models.CameraCommand{Action: models.CameraActionDelete, CameraID: id}); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send delete command"})
		return
	}
	if h.diagnostics != nil {
		if err := h.diagnostics.DeleteObject(c.Request.Context(), diagnostics.ObjectKey(id)); err != nil {
			slog.Warn("delete diagnostics record", "camera_id", id, "error", err)
		}
	}
	c.JSON(http.StatusOK, dto.CameraCommandResponse{Status: "deleted", CameraID: id})
}

func (h *CameraHandler) send(c *gin.Context, cmd models.CameraCommand, status int, label string) {
	if err := h.producer.PublishControl(cmd); err != nil {
		slog.Error("publish camera command", "camera_id", cmd.CameraID, "action", cmd.Action, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to send " + string(cmd.Action) + " command"})
		return
	}
	c.JSON(status, dto.CameraCommandResponse{Status: label, CameraID: cmd.CameraID})
}
