package http

import (
	"net/http"

	engerrors "github.com/arkilian/segavg/internal/errors"
	"github.com/arkilian/segavg/internal/observability"
	"github.com/arkilian/segavg/internal/query/aggregator"
)

// Querier answers segment average queries.
type Querier interface {
	AverageQuantityForSegment(segment string) (aggregator.Result, error)
	Segments() []string
}

// AverageResponse is the body of a successful average query.
type AverageResponse struct {
	Segment       string  `json:"segment"`
	Average       float64 `json:"average"`
	ScaledAverage int64   `json:"scaled_average"`
	Count         int64   `json:"count"`
	Sum           int64   `json:"sum"`
	Customers     int     `json:"customers"`
	Orders        int64   `json:"orders"`
	RequestID     string  `json:"request_id"`
}

// NoDataResponse is the body returned when a segment has no average.
type NoDataResponse struct {
	Segment   string `json:"segment"`
	Reason    string `json:"reason"`
	RequestID string `json:"request_id"`
}

// AverageHandler handles GET /v1/segments/{segment}/average requests.
type AverageHandler struct {
	querier Querier
}

// NewAverageHandler creates a new average handler.
func NewAverageHandler(q Querier) *AverageHandler {
	return &AverageHandler{querier: q}
}

// ServeHTTP handles the average HTTP request.
func (h *AverageHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	requestID := GetRequestID(r.Context())

	segment := r.PathValue("segment")
	if segment == "" {
		writeError(w, http.StatusBadRequest, "segment is required", "", requestID)
		return
	}

	res, err := h.querier.AverageQuantityForSegment(segment)
	if err != nil {
		writeError(w, statusFor(err), err.Error(), engerrors.GetCode(err), requestID)
		return
	}

	scaled, ok := res.Value()
	if !ok {
		writeJSON(w, http.StatusNotFound, NoDataResponse{
			Segment:   segment,
			Reason:    string(res.Reason),
			RequestID: requestID,
		})
		return
	}
	avg, _ := res.Unscaled()

	writeJSON(w, http.StatusOK, AverageResponse{
		Segment:       res.Segment,
		Average:       avg,
		ScaledAverage: scaled,
		Count:         res.Count,
		Sum:           res.Sum,
		Customers:     res.Customers,
		Orders:        res.Orders,
		RequestID:     requestID,
	})
}

// statusFor maps engine errors to HTTP status codes.
func statusFor(err error) int {
	switch engerrors.GetCode(err) {
	case engerrors.CodeEngineClosed:
		return http.StatusServiceUnavailable
	case engerrors.CodeBarrierTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// SegmentsResponse lists the known segments.
type SegmentsResponse struct {
	Segments  []string `json:"segments"`
	RequestID string   `json:"request_id"`
}

// SegmentsHandler handles GET /v1/segments requests.
type SegmentsHandler struct {
	querier Querier
}

// NewSegmentsHandler creates a new segments handler.
func NewSegmentsHandler(q Querier) *SegmentsHandler {
	return &SegmentsHandler{querier: q}
}

// ServeHTTP lists the segments seen during ingestion.
func (h *SegmentsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	segments := h.querier.Segments()
	if segments == nil {
		segments = []string{}
	}
	writeJSON(w, http.StatusOK, SegmentsResponse{
		Segments:  segments,
		RequestID: GetRequestID(r.Context()),
	})
}

// StatsResponse reports the most queried segments.
type StatsResponse struct {
	Segments  []observability.SegmentStat `json:"segments"`
	RequestID string                      `json:"request_id"`
}

// StatsHandler handles GET /v1/stats requests.
type StatsHandler struct {
	stats *observability.SegmentStats
	limit int
}

// NewStatsHandler creates a handler reporting the limit most queried segments.
func NewStatsHandler(stats *observability.SegmentStats, limit int) *StatsHandler {
	return &StatsHandler{stats: stats, limit: limit}
}

// ServeHTTP reports query statistics.
func (h *StatsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, StatsResponse{
		Segments:  h.stats.Top(h.limit),
		RequestID: GetRequestID(r.Context()),
	})
}
