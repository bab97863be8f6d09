package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resq-backend/internal/model"
	"resq-backend/internal/store"
)

// Calibration point used when a helmet is registered without one.
const (
	DefaultCalibrationLatitude  = 20.5937
	DefaultCalibrationLongitude = 78.9629
)

const (
	defaultReadingsLimit = 10
	defaultAlertsLimit   = 50
	maxListLimit         = 500
)

type registerWorkerRequest struct {
	UserID           string   `json:"user_id"`
	HelmetNumber     string   `json:"helmet_number" binding:"required"`
	WorkerName       string   `json:"worker_name" binding:"required"`
	Age              *int     `json:"age" binding:"omitempty,min=0,max=150"`
	Gender           string   `json:"gender"`
	HealthCondition  string   `json:"health_condition"`
	WorkerContact    string   `json:"worker_contact"`
	EmergencyContact string   `json:"emergency_contact"`
	InitialLatitude  *float64 `json:"initial_latitude" binding:"omitempty,min=-90,max=90"`
	InitialLongitude *float64 `json:"initial_longitude" binding:"omitempty,min=-180,max=180"`
}

func (r registerWorkerRequest) toModel() *model.Worker {
	lat, lng := DefaultCalibrationLatitude, DefaultCalibrationLongitude
	if r.InitialLatitude != nil {
		lat = *r.InitialLatitude
	}
	if r.InitialLongitude != nil {
		lng = *r.InitialLongitude
	}
	// The live position starts at the calibration point.
	curLat, curLng := lat, lng

	return &model.Worker{
		UserID:           r.UserID,
		HelmetNumber:     r.HelmetNumber,
		WorkerName:       r.WorkerName,
		Age:              r.Age,
		Gender:           optional(r.Gender),
		HealthCondition:  optional(r.HealthCondition),
		WorkerContact:    optional(r.WorkerContact),
		EmergencyContact: optional(r.EmergencyContact),
		InitialLatitude:  &lat,
		InitialLongitude: &lng,
		Latitude:         &curLat,
		Longitude:        &curLng,
		GPSActive:        false,
		Status:           model.StatusSafe,
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// RegisterWorker handles POST /api/workers.
func (h *Handler) RegisterWorker(c *gin.Context) {
	var req registerWorkerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	worker := req.toModel()
	if err := h.store.CreateWorker(c.Request.Context(), worker); err != nil {
		if errors.Is(err, store.ErrDuplicateHelmet) {
			c.JSON(http.StatusConflict, gin.H{"error": "helmet number already registered"})
			return
		}
		h.log.Error("worker registration failed", zap.String("helmet_number", req.HelmetNumber), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to register helmet"})
		return
	}

	c.JSON(http.StatusCreated, worker)
}

// ListWorkers handles GET /api/workers.
func (h *Handler) ListWorkers(c *gin.Context) {
	workers, err := h.store.ListWorkers(c.Request.Context(), c.Query("user_id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve workers"})
		return
	}
	c.JSON(http.StatusOK, workers)
}

// DeleteWorker handles DELETE /api/workers/:id.
func (h *Handler) DeleteWorker(c *gin.Context) {
	id := c.Param("id")
	worker, err := h.store.GetWorker(c.Request.Context(), id)
	if err != nil {
		h.workerError(c, err)
		return
	}

	if err := h.store.DeleteWorker(c.Request.Context(), id); err != nil {
		h.workerError(c, err)
		return
	}

	h.invalidateStatus(worker.HelmetNumber)
	c.Status(http.StatusNoContent)
}

// ListWorkerReadings handles GET /api/workers/:id/readings.
func (h *Handler) ListWorkerReadings(c *gin.Context) {
	limit, ok := parseLimit(c, defaultReadingsLimit)
	if !ok {
		return
	}
	readings, err := h.store.ListSensorReadings(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve sensor readings"})
		return
	}
	c.JSON(http.StatusOK, readings)
}

// ListWorkerAlerts handles GET /api/workers/:id/alerts.
func (h *Handler) ListWorkerAlerts(c *gin.Context) {
	h.listAlerts(c, c.Param("id"))
}

// ListAlerts handles GET /api/alerts, the most recent alerts of all workers.
func (h *Handler) ListAlerts(c *gin.Context) {
	h.listAlerts(c, "")
}

func (h *Handler) listAlerts(c *gin.Context, workerID string) {
	limit, ok := parseLimit(c, defaultAlertsLimit)
	if !ok {
		return
	}
	alerts, err := h.store.ListAlerts(c.Request.Context(), workerID, limit)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve alerts"})
		return
	}
	c.JSON(http.StatusOK, alerts)
}

// ResolveAlert handles PATCH /api/alerts/:id/resolve.
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid alert ID"})
		return
	}

	if err := h.store.ResolveAlert(c.Request.Context(), id); err != nil {
		if errors.Is(err, store.ErrAlertNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "alert not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to resolve alert"})
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) workerError(c *gin.Context, err error) {
	if errors.Is(err, store.ErrWorkerNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "worker not found"})
		return
	}
	h.log.Error("worker operation failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}

func parseLimit(c *gin.Context, def int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid limit"})
		return 0, false
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit, true
}
