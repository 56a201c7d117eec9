package handler

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"oculoo/internal/service/intake"
	"oculoo/pkg/logger"
)

// AuthMiddleware 写入 gin.Context 的键
const (
	ContextUID  = "uid"
	ContextRole = "role"
)

// Submitter 由 intake.Service 实现
type Submitter interface {
	Submit(ctx context.Context, req intake.Request) (string, error)
}

type MedicationHandler struct {
	intake Submitter
	logger *zap.Logger
}

func NewMedicationHandler(intake Submitter, logger *zap.Logger) *MedicationHandler {
	return &MedicationHandler{
		intake: intake,
		logger: logger,
	}
}

// Submit handles POST /api/v1/medication-events
func (h *MedicationHandler) Submit(c *gin.Context) {
	var req struct {
		PatientName    *string `json:"patientName"`
		MedicationName *string `json:"medicationName"`
		ImageURL       *string `json:"imageUrl"`
	}
	// 三个字段都可选，空 body 等同于 {}
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	uid := c.GetString(ContextUID)
	if uid == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "user not authenticated"})
		return
	}

	ctx := c.Request.Context()
	eventID, err := h.intake.Submit(ctx, intake.Request{
		PatientUID:     uid,
		PatientName:    req.PatientName,
		MedicationName: req.MedicationName,
		ImageURL:       req.ImageURL,
	})
	if err != nil {
		if errors.Is(err, intake.ErrMissingPatient) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		logger.WithTrace(ctx, h.logger).Error("Failed to queue medication event",
			zap.String("patient_uid", uid),
			zap.Error(err),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to queue medication event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"event_id": eventID,
		"status":   "queued",
	})
}
