package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Worker status values.
const (
	StatusSafe   = "safe"
	StatusDanger = "danger"
)

// Worker is a registered helmet and the person wearing it. The sensor and
// location fields hold the most recent ingested state.
type Worker struct {
	ID               string  `gorm:"primaryKey;size:36" json:"id"`
	UserID           string  `gorm:"index;size:64" json:"user_id"`
	HelmetNumber     string  `gorm:"uniqueIndex;size:64;not null" json:"helmet_number"`
	WorkerName       string  `gorm:"size:256;not null" json:"worker_name"`
	Age              *int    `json:"age"`
	Gender           *string `gorm:"size:32" json:"gender"`
	HealthCondition  *string `json:"health_condition"`
	WorkerContact    *string `gorm:"size:64" json:"worker_contact"`
	EmergencyContact *string `gorm:"size:64" json:"emergency_contact"`

	// Calibration point, set once at registration.
	InitialLatitude  *float64 `json:"initial_latitude"`
	InitialLongitude *float64 `json:"initial_longitude"`

	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	GPSActive bool     `gorm:"column:gps_active;not null;default:false" json:"gps_active"`

	GasReading       float64    `gorm:"not null;default:0" json:"gas_reading"`
	GyroX            float64    `gorm:"not null;default:0" json:"gyro_x"`
	GyroY            float64    `gorm:"not null;default:0" json:"gyro_y"`
	GyroZ            float64    `gorm:"not null;default:0" json:"gyro_z"`
	Status           string     `gorm:"size:16;not null;default:'safe'" json:"status"`
	DangerType       *string    `json:"danger_type"`
	LastSensorUpdate *time.Time `json:"last_sensor_update"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Associations
	SensorReadings []SensorReading `gorm:"constraint:OnDelete:CASCADE" json:"-"`
	Alerts         []AlertRecord   `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

// BeforeCreate assigns a UUID when the caller did not supply one.
func (w *Worker) BeforeCreate(tx *gorm.DB) error {
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	if w.Status == "" {
		w.Status = StatusSafe
	}
	return nil
}
