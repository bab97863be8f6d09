package api

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"resq-backend/config"
	"resq-backend/internal/db"
	"resq-backend/internal/ingest"
	"resq-backend/internal/model"
	"resq-backend/internal/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testEnv struct {
	db         *gorm.DB
	store      store.Store
	router     *gin.Engine
	subscriber *ingest.Subscriber
}

// newTestEnv wires a router over a private in-memory sqlite database with
// limits high enough to stay out of the way.
func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithConfig(t, config.ServerConfig{RateLimitPerSec: 1000, RateLimitBurst: 1000, CacheTTLSeconds: 60})
}

func newTestEnvWithConfig(t *testing.T, cfg config.ServerConfig) *testEnv {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	gormDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate(gormDB))

	sqlDB, _ := gormDB.DB()
	t.Cleanup(func() { sqlDB.Close() })

	s := store.NewGormStore(gormDB)
	responseCache := cache.New(time.Minute, time.Minute)
	svc := ingest.NewService(s, zap.NewNop(), ingest.WithIngestHook(StatusInvalidator(responseCache)))
	h := NewHandler(s, svc, nil, responseCache, zap.NewNop())
	sub := ingest.NewSubscriber(config.MQTTConfig{Topic: "resq/helmets/+/telemetry"}, svc, zap.NewNop())

	return &testEnv{db: gormDB, store: s, router: NewRouter(h, cfg), subscriber: sub}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	return e.doFrom("", method, path, body)
}

// doFrom sends the request with remoteAddr as the client address when set.
func (e *testEnv) doFrom(remoteAddr, method, path, body string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	var req *http.Request
	if body == "" {
		req, _ = http.NewRequest(method, path, nil)
	} else {
		req, _ = http.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if remoteAddr != "" {
		req.RemoteAddr = remoteAddr
	}
	e.router.ServeHTTP(w, req)
	return w
}

func f64(v float64) *float64 { return &v }

func (e *testEnv) seedWorker(t *testing.T, helmet, name string) *model.Worker {
	t.Helper()
	w := &model.Worker{
		UserID:           "owner-1",
		HelmetNumber:     helmet,
		WorkerName:       name,
		InitialLatitude:  f64(20.5937),
		InitialLongitude: f64(78.9629),
		Latitude:         f64(20.5937),
		Longitude:        f64(78.9629),
	}
	require.NoError(t, e.db.Create(w).Error)
	return w
}
