package model

import "time"

// SensorReading is one ingested telemetry sample. Rows are append-only.
type SensorReading struct {
	ID           int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	WorkerID     string   `gorm:"size:36;not null;index:idx_sensor_readings_worker_created,priority:1" json:"worker_id"`
	HelmetNumber string   `gorm:"size:64;not null" json:"helmet_number"`
	GasReading   float64  `gorm:"not null" json:"gas_reading"`
	GyroX        float64  `gorm:"not null" json:"gyro_x"`
	GyroY        float64  `gorm:"not null" json:"gyro_y"`
	GyroZ        float64  `gorm:"not null" json:"gyro_z"`
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`

	CreatedAt time.Time `gorm:"not null;index:idx_sensor_readings_worker_created,priority:2" json:"created_at"`
}
