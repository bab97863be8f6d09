package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"resq-backend/internal/ingest"
)

const (
	livenessStatus = "ResQ ESP32 Sensor API is running"
	livenessUsage  = "POST sensor data with helmet_number, gas_reading, gyro_x, gyro_y, gyro_z, latitude, longitude"
)

// StatusCacheKey is the response cache key of a helmet's status query.
func StatusCacheKey(helmetNumber string) string {
	if helmetNumber == "" {
		return ""
	}
	return "sensor-status:" + helmetNumber
}

// PostSensorData handles POST /api/sensor-data from the helmets. The ingest
// service clears the helmet's cached status, see StatusInvalidator.
func (h *Handler) PostSensorData(c *gin.Context) {
	var payload ingest.Payload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	sample, err := payload.Sample()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "helmet_number is required"})
		return
	}

	result, err := h.ingest.Ingest(c.Request.Context(), sample)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrNotFound):
			c.JSON(http.StatusNotFound, gin.H{"error": fmt.Sprintf("Helmet %s not found", sample.HelmetNumber)})
		case errors.Is(err, ingest.ErrInvalidRequest):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		default:
			h.log.Error("helmet lookup failed", zap.String("helmet_number", sample.HelmetNumber), zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up helmet"})
		}
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetSensorData handles GET /api/sensor-data. Without helmet_number it
// reports liveness; with it, the helmet's current worker record.
func (h *Handler) GetSensorData(c *gin.Context) {
	helmet := c.Query("helmet_number")
	if helmet == "" {
		c.JSON(http.StatusOK, gin.H{"status": livenessStatus, "usage": livenessUsage})
		return
	}

	worker, err := h.ingest.Status(c.Request.Context(), helmet)
	if err != nil {
		if errors.Is(err, ingest.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Helmet not found"})
			return
		}
		h.log.Error("helmet status lookup failed", zap.String("helmet_number", helmet), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up helmet"})
		return
	}

	c.JSON(http.StatusOK, worker)
}
