package store

import (
	"errors"
	"time"
)

var (
	// ErrWorkerNotFound is returned when no worker matches the lookup key.
	ErrWorkerNotFound = errors.New("worker not found")
	// ErrDuplicateHelmet is returned when a helmet number is already registered.
	ErrDuplicateHelmet = errors.New("helmet number already registered")
	// ErrAlertNotFound is returned when resolving an unknown alert.
	ErrAlertNotFound = errors.New("alert not found")
)

// WorkerTelemetry is the partial update applied to a worker after a sample
// is classified. Latitude and Longitude are set only when the sample carried
// GPS; in that case gps_active is switched on as well.
type WorkerTelemetry struct {
	GasReading       float64
	GyroX            float64
	GyroY            float64
	GyroZ            float64
	Status           string
	DangerType       *string
	LastSensorUpdate time.Time
	Latitude         *float64
	Longitude        *float64
}

// HasGPS reports whether the update carries a live position.
func (t WorkerTelemetry) HasGPS() bool {
	return t.Latitude != nil && t.Longitude != nil
}

// columns returns the column/value map for a partial update.
func (t WorkerTelemetry) columns() map[string]any {
	cols := map[string]any{
		"gas_reading":        t.GasReading,
		"gyro_x":             t.GyroX,
		"gyro_y":             t.GyroY,
		"gyro_z":             t.GyroZ,
		"status":             t.Status,
		"danger_type":        t.DangerType,
		"last_sensor_update": t.LastSensorUpdate,
	}
	if t.HasGPS() {
		cols["latitude"] = *t.Latitude
		cols["longitude"] = *t.Longitude
		cols["gps_active"] = true
	}
	return cols
}
