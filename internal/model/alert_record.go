package model

import "time"

// AlertRecord is written for every sample classified as danger. WorkerName
// is a copy taken at alert time, not a reference to the worker's profile.
type AlertRecord struct {
	ID           int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkerID     string   `gorm:"size:36;not null;index:idx_alert_history_worker_created,priority:1" json:"worker_id"`
	HelmetNumber string   `gorm:"size:64;not null" json:"helmet_number"`
	WorkerName   string   `gorm:"size:256;not null" json:"worker_name"`
	AlertType    string   `gorm:"size:64;not null" json:"alert_type"`
	GasReading   float64  `gorm:"not null" json:"gas_reading"`
	GyroX        float64  `gorm:"not null" json:"gyro_x"`
	GyroY        float64  `gorm:"not null" json:"gyro_y"`
	GyroZ        float64  `gorm:"not null" json:"gyro_z"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	Resolved     bool     `gorm:"not null;default:false" json:"resolved"`

	CreatedAt time.Time `gorm:"not null;index:idx_alert_history_worker_created,priority:2" json:"created_at"`
}

// TableName keeps the table name used by the dashboard.
func (AlertRecord) TableName() string {
	return "alert_history"
}
