// Package ingest turns helmet telemetry samples into worker state, reading
// history and alert history.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"resq-backend/internal/hazard"
	"resq-backend/internal/model"
	"resq-backend/internal/store"
)

// Store is the part of the worker directory the ingest path needs.
type Store interface {
	FindWorkerByHelmet(ctx context.Context, helmetNumber string) (*model.Worker, error)
	UpdateWorkerTelemetry(ctx context.Context, workerID string, update store.WorkerTelemetry) error
	InsertSensorReading(ctx context.Context, reading *model.SensorReading) error
	InsertAlert(ctx context.Context, alert *model.AlertRecord) error
}

// AlertSink receives every alert that was persisted. Implementations must
// not block.
type AlertSink interface {
	Dispatch(alert model.AlertRecord)
}

// Result is the acknowledgment returned to the helmet.
type Result struct {
	Success      bool    `json:"success"`
	HelmetNumber string  `json:"helmet_number"`
	Status       string  `json:"status"`
	DangerType   *string `json:"danger_type"`
	GPSActive    bool    `json:"gps_active"`
}

// Service classifies samples and persists the outcome.
type Service struct {
	store Store
	log   *zap.Logger
	sink  AlertSink
	hooks []func(helmetNumber string)
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithAlertSink registers a sink for persisted alerts.
func WithAlertSink(sink AlertSink) Option {
	return func(s *Service) { s.sink = sink }
}

// WithIngestHook registers fn to run after every ingested sample, whichever
// transport delivered it. Hooks run synchronously and must be cheap.
func WithIngestHook(fn func(helmetNumber string)) Option {
	return func(s *Service) { s.hooks = append(s.hooks, fn) }
}

// WithClock overrides the time source used for last_sensor_update.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// NewService creates an ingest service.
func NewService(st Store, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		store: st,
		log:   log,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Ingest resolves the sample's worker, classifies it and writes the worker
// update, a sensor reading and, on danger, an alert. Only validation and
// the worker lookup can fail the call; write errors are logged and the
// remaining writes are still attempted.
func (s *Service) Ingest(ctx context.Context, sample Sample) (*Result, error) {
	if sample.HelmetNumber == "" {
		return nil, ErrMissingHelmet
	}

	worker, err := s.lookup(ctx, sample.HelmetNumber)
	if err != nil {
		return nil, err
	}

	c := hazard.Classify(sample.GasReading, sample.GyroX, sample.GyroY, sample.GyroZ)
	hasGPS := sample.HasGPS()
	log := s.log.With(
		zap.String("helmet_number", sample.HelmetNumber),
		zap.String("worker_id", worker.ID),
	)

	update := store.WorkerTelemetry{
		GasReading:       sample.GasReading,
		GyroX:            sample.GyroX,
		GyroY:            sample.GyroY,
		GyroZ:            sample.GyroZ,
		Status:           c.Status(),
		DangerType:       c.DangerType,
		LastSensorUpdate: s.now(),
	}
	if hasGPS {
		update.Latitude = sample.Latitude
		update.Longitude = sample.Longitude
	}
	if err := s.store.UpdateWorkerTelemetry(ctx, worker.ID, update); err != nil {
		log.Error("worker update failed", zap.Error(err))
	}

	// History rows fall back to the calibration point, not the last live fix.
	lat, lng := worker.InitialLatitude, worker.InitialLongitude
	if hasGPS {
		lat, lng = sample.Latitude, sample.Longitude
	}

	reading := &model.SensorReading{
		WorkerID:     worker.ID,
		HelmetNumber: sample.HelmetNumber,
		GasReading:   sample.GasReading,
		GyroX:        sample.GyroX,
		GyroY:        sample.GyroY,
		GyroZ:        sample.GyroZ,
		Latitude:     lat,
		Longitude:    lng,
	}
	if err := s.store.InsertSensorReading(ctx, reading); err != nil {
		log.Error("sensor reading insert failed", zap.Error(err))
	}

	if c.IsDanger() {
		alert := &model.AlertRecord{
			WorkerID:     worker.ID,
			HelmetNumber: sample.HelmetNumber,
			WorkerName:   worker.WorkerName,
			AlertType:    *c.DangerType,
			GasReading:   sample.GasReading,
			GyroX:        sample.GyroX,
			GyroY:        sample.GyroY,
			GyroZ:        sample.GyroZ,
			Latitude:     lat,
			Longitude:    lng,
		}
		if err := s.store.InsertAlert(ctx, alert); err != nil {
			log.Error("alert insert failed", zap.Error(err))
		} else {
			log.Warn("danger detected",
				zap.String("alert_type", alert.AlertType),
				zap.Float64("gas_reading", sample.GasReading),
				zap.Float64("gyro_magnitude", c.GyroMagnitude),
			)
			if s.sink != nil {
				s.sink.Dispatch(*alert)
			}
		}
	}

	for _, hook := range s.hooks {
		hook(sample.HelmetNumber)
	}

	return &Result{
		Success:      true,
		HelmetNumber: sample.HelmetNumber,
		Status:       c.Status(),
		DangerType:   c.DangerType,
		GPSActive:    hasGPS,
	}, nil
}

// Status returns the current record for a helmet.
func (s *Service) Status(ctx context.Context, helmetNumber string) (*model.Worker, error) {
	if helmetNumber == "" {
		return nil, ErrMissingHelmet
	}
	return s.lookup(ctx, helmetNumber)
}

func (s *Service) lookup(ctx context.Context, helmetNumber string) (*model.Worker, error) {
	worker, err := s.store.FindWorkerByHelmet(ctx, helmetNumber)
	if errors.Is(err, store.ErrWorkerNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, helmetNumber)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return worker, nil
}
