package http

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/arkilian/segavg/internal/observability"
)

// RouterConfig wires the handlers of NewRouter.
type RouterConfig struct {
	Querier Querier
	Stats   *observability.SegmentStats
	// Metrics serves /metrics when set.
	Metrics http.Handler
	Logger  *zap.Logger
}

// NewRouter returns the HTTP API.
func NewRouter(cfg RouterConfig) http.Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	mux := http.NewServeMux()
	mux.Handle("GET /v1/segments/{segment}/average", NewAverageHandler(cfg.Querier))
	mux.Handle("GET /v1/segments", NewSegmentsHandler(cfg.Querier))
	if cfg.Stats != nil {
		mux.Handle("GET /v1/stats", NewStatsHandler(cfg.Stats, 20))
	}
	if cfg.Metrics != nil {
		mux.Handle("GET /metrics", cfg.Metrics)
	}
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	return DefaultMiddleware(logger)(mux)
}
