package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"resq-backend/internal/model"
)

// A helper function to create a mock database connection.
func newTestDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestGormStore_FindWorkerByHelmet(t *testing.T) {
	query := regexp.QuoteMeta(`SELECT * FROM "workers" WHERE helmet_number = $1 ORDER BY "workers"."id" LIMIT $2`)

	t.Run("found", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectQuery(query).
			WithArgs("RQ-001", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id", "helmet_number", "worker_name", "initial_latitude", "initial_longitude", "status"}).
				AddRow("w-1", "RQ-001", "Asha", 20.5937, 78.9629, "safe"))

		worker, err := s.FindWorkerByHelmet(context.Background(), "RQ-001")
		require.NoError(t, err)
		assert.Equal(t, "w-1", worker.ID)
		assert.Equal(t, "Asha", worker.WorkerName)
		require.NotNil(t, worker.InitialLatitude)
		assert.Equal(t, 20.5937, *worker.InitialLatitude)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectQuery(query).
			WithArgs("RQ-404", 1).
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		worker, err := s.FindWorkerByHelmet(context.Background(), "RQ-404")
		assert.Nil(t, worker)
		assert.ErrorIs(t, err, ErrWorkerNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("database error is wrapped", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		dbErr := errors.New("connection reset")
		mock.ExpectQuery(query).
			WithArgs("RQ-001", 1).
			WillReturnError(dbErr)

		_, err := s.FindWorkerByHelmet(context.Background(), "RQ-001")
		assert.ErrorIs(t, err, dbErr)
		assert.NotErrorIs(t, err, ErrWorkerNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_UpdateWorkerTelemetry(t *testing.T) {
	now := time.Now().UTC()
	label := "Fall detected"
	lat, lng := 19.1, 72.9

	testCases := []struct {
		name             string
		update           WorkerTelemetry
		mockExpectations func(mock sqlmock.Sqlmock)
	}{
		{
			name: "without GPS leaves location untouched",
			update: WorkerTelemetry{
				GasReading: 500, Status: "danger", DangerType: &label, LastSensorUpdate: now,
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "workers" SET "danger_type"=$1,"gas_reading"=$2,"gyro_x"=$3,"gyro_y"=$4,"gyro_z"=$5,"last_sensor_update"=$6,"status"=$7,"updated_at"=$8 WHERE id = $9`)).
					WithArgs(Any{}, 500.0, 0.0, 0.0, 0.0, Any{}, "danger", Any{}, "w-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
		{
			name: "with GPS sets location and gps_active",
			update: WorkerTelemetry{
				GasReading: 10, GyroX: 3, Status: "danger", DangerType: &label, LastSensorUpdate: now,
				Latitude: &lat, Longitude: &lng,
			},
			mockExpectations: func(mock sqlmock.Sqlmock) {
				mock.ExpectBegin()
				mock.ExpectExec(regexp.QuoteMeta(`UPDATE "workers" SET "danger_type"=$1,"gas_reading"=$2,"gps_active"=$3,"gyro_x"=$4,"gyro_y"=$5,"gyro_z"=$6,"last_sensor_update"=$7,"latitude"=$8,"longitude"=$9,"status"=$10,"updated_at"=$11 WHERE id = $12`)).
					WithArgs(Any{}, 10.0, true, 3.0, 0.0, 0.0, Any{}, 19.1, 72.9, "danger", Any{}, "w-1").
					WillReturnResult(sqlmock.NewResult(0, 1))
				mock.ExpectCommit()
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newTestDB(t)
			s := NewGormStore(gormDB)

			tc.mockExpectations(mock)

			err := s.UpdateWorkerTelemetry(context.Background(), "w-1", tc.update)
			assert.NoError(t, err)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGormStore_InsertSensorReading(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	lat, lng := 20.5937, 78.9629
	reading := &model.SensorReading{
		WorkerID:     "w-1",
		HelmetNumber: "RQ-001",
		GasReading:   50,
		GyroX:        0.1,
		GyroY:        0.1,
		GyroZ:        0.1,
		Latitude:     &lat,
		Longitude:    &lng,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "sensor_readings"`)).
		WithArgs("w-1", "RQ-001", 50.0, 0.1, 0.1, 0.1, 20.5937, 78.9629, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	err := s.InsertSensorReading(context.Background(), reading)
	require.NoError(t, err)
	assert.Equal(t, int64(7), reading.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_InsertAlert(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	alert := &model.AlertRecord{
		WorkerID:     "w-1",
		HelmetNumber: "RQ-001",
		WorkerName:   "Asha",
		AlertType:    "Gas leak detected",
		GasReading:   500,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "alert_history"`)).
		WithArgs("w-1", "RQ-001", "Asha", "Gas leak detected", 500.0, 0.0, 0.0, 0.0, Any{}, Any{}, false, Any{}).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(3))
	mock.ExpectCommit()

	err := s.InsertAlert(context.Background(), alert)
	require.NoError(t, err)
	assert.Equal(t, int64(3), alert.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_InsertAlert_Error(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "alert_history"`)).
		WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := s.InsertAlert(context.Background(), &model.AlertRecord{WorkerID: "w-1"})
	assert.ErrorContains(t, err, "disk full")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormStore_ResolveAlert(t *testing.T) {
	query := regexp.QuoteMeta(`UPDATE "alert_history" SET "resolved"=$1 WHERE id = $2`)

	t.Run("resolves existing alert", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs(true, 3).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		assert.NoError(t, s.ResolveAlert(context.Background(), 3))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown alert", func(t *testing.T) {
		gormDB, mock := newTestDB(t)
		s := NewGormStore(gormDB)

		mock.ExpectBegin()
		mock.ExpectExec(query).WithArgs(true, 99).WillReturnResult(sqlmock.NewResult(0, 0))
		mock.ExpectCommit()

		assert.ErrorIs(t, s.ResolveAlert(context.Background(), 99), ErrAlertNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGormStore_ListSubscriptionsForWorker(t *testing.T) {
	gormDB, mock := newTestDB(t)
	s := NewGormStore(gormDB)

	mock.ExpectQuery(`SELECT .* FROM "push_subscriptions".*JOIN .*subscription_worker_mapping.*WHERE .*swm\.worker_id = \$1`).
		WithArgs("w-1").
		WillReturnRows(sqlmock.NewRows([]string{"endpoint", "p256dh", "auth", "created_at"}).
			AddRow("https://example.com/push", "key", "auth", time.Now()))

	subs, err := s.ListSubscriptionsForWorker(context.Background(), "w-1")
	require.NoError(t, err)
	require.Len(t, subs, 1)
	assert.Equal(t, "https://example.com/push", subs[0].Endpoint)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkerTelemetry_HasGPS(t *testing.T) {
	lat, lng := 1.0, 2.0
	assert.True(t, WorkerTelemetry{Latitude: &lat, Longitude: &lng}.HasGPS())
	assert.False(t, WorkerTelemetry{Latitude: &lat}.HasGPS())
	assert.False(t, WorkerTelemetry{Longitude: &lng}.HasGPS())
	assert.False(t, WorkerTelemetry{}.HasGPS())
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies the sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}
