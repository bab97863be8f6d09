package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"resq-backend/internal/ingest"
	"resq-backend/internal/store"
)

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store   store.Store
	ingest  *ingest.Service
	webpush *webpush.Options
	cache   *cache.Cache
	log     *zap.Logger
}

// NewHandler creates a new API handler. webpushOptions may be nil when push
// notifications are not configured; a nil responseCache gets a private one.
func NewHandler(s store.Store, svc *ingest.Service, webpushOptions *webpush.Options, responseCache *cache.Cache, log *zap.Logger) *Handler {
	if responseCache == nil {
		responseCache = cache.New(time.Minute, 10*time.Minute)
	}
	return &Handler{
		store:   s,
		ingest:  svc,
		webpush: webpushOptions,
		cache:   responseCache,
		log:     log,
	}
}

func (h *Handler) invalidateStatus(helmetNumber string) {
	h.cache.Delete(StatusCacheKey(helmetNumber))
}

// StatusInvalidator returns an ingest hook that drops the cached status of
// a helmet from responseCache. Pass the same cache to NewHandler.
func StatusInvalidator(responseCache *cache.Cache) func(helmetNumber string) {
	return func(helmetNumber string) {
		responseCache.Delete(StatusCacheKey(helmetNumber))
	}
}
