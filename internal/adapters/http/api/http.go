// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/okian/kestrel/internal/adapters/riskboard"
	"github.com/okian/kestrel/internal/domain/dedupe"
	"github.com/okian/kestrel/internal/domain/fusion"
	"github.com/okian/kestrel/internal/domain/model"
	"github.com/okian/kestrel/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// maxTopLimit caps GET /v1/risks?limit=N queries.
const maxTopLimit = 100

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	dedupe.Deduper

	// Enqueue pushes a batch for async analysis. Returns false on backpressure.
	Enqueue(ctx context.Context, b *model.Batch) bool

	// Read operations expose the live assessment state.
	TopRisks(ctx context.Context, n int) ([]Entry, error)
	Subject(ctx context.Context, subjectID string) (Entry, error)
	Streams(ctx context.Context) []StreamStatus

	// Control operations drop analysis state.
	ResetStream(ctx context.Context, streamID string) (int, error)
	ResetAll(ctx context.Context) int
}

// Entry mirrors the read shape returned by risk board queries.
type Entry = riskboard.Entry

// StreamStatus mirrors the per-stream summary returned by the engine.
type StreamStatus = fusion.StreamStatus

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler       *HealthHandler
	statsHandler        *StatsHandler
	observationsHandler *ObservationsHandler
	risksHandler        *RisksHandler
	subjectsHandler     *SubjectsHandler
	streamsHandler      *StreamsHandler
	resetHandler        *ResetHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, statsProvider StatsProvider) *Server {
	return &Server{
		healthHandler:       NewHealthHandler(),
		statsHandler:        NewStatsHandler(statsProvider),
		observationsHandler: NewObservationsHandler(deps),
		risksHandler:        NewRisksHandler(deps, maxTopLimit),
		subjectsHandler:     NewSubjectsHandler(deps),
		streamsHandler:      NewStreamsHandler(deps),
		resetHandler:        NewResetHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	// Specific paths first (most specific to least specific)
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.Handle("/metrics", promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}))
	mux.HandleFunc("/v1/observations", MetricsMiddleware(s.observationsHandler.HandlePostObservations, "observations"))
	mux.HandleFunc("/v1/risks", MetricsMiddleware(s.risksHandler.HandleGetRisks, "risks"))
	mux.HandleFunc("/v1/subjects/", MetricsMiddleware(s.subjectsHandler.HandleGetSubject, "subjects"))
	mux.HandleFunc("/v1/streams", MetricsMiddleware(s.streamsHandler.HandleListStreams, "streams"))
	mux.HandleFunc("/v1/streams/", MetricsMiddleware(s.streamsHandler.HandleStreamReset, "stream_reset"))
	mux.HandleFunc("/v1/reset", MetricsMiddleware(s.resetHandler.HandleResetAll, "reset"))
	mux.HandleFunc("/v1/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
}

// observationBatchRequest mirrors the OpenAPI schema for POST /v1/observations.
type observationBatchRequest struct {
	StreamID     string               `json:"stream_id"`
	BatchID      string               `json:"batch_id"`
	FrameSeq     uint64               `json:"frame_seq"`
	TS           string               `json:"ts"`
	Frame        *framePayload        `json:"frame,omitempty"`
	Observations []observationPayload `json:"observations"`
}

// framePayload carries the raw frame buffer; Pixels is base64 on the wire.
type framePayload struct {
	Width    int    `json:"width"`
	Height   int    `json:"height"`
	Channels int    `json:"channels"`
	Pixels   []byte `json:"pixels"`
}

type observationPayload struct {
	SubjectID string  `json:"subject_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	TS        string  `json:"ts,omitempty"`
}

func (o observationBatchRequest) validate() error {
	switch {
	case strings.TrimSpace(o.StreamID) == "":
		return errors.New("missing stream_id")
	case strings.TrimSpace(o.BatchID) == "":
		return errors.New("missing batch_id")
	case strings.TrimSpace(o.TS) == "":
		return errors.New("missing ts")
	}
	if _, err := time.Parse(time.RFC3339, o.TS); err != nil {
		return errors.New("invalid ts; must be RFC3339")
	}
	for _, obs := range o.Observations {
		if strings.TrimSpace(obs.SubjectID) == "" {
			return errors.New("missing subject_id in observation")
		}
		if obs.TS != "" {
			if _, err := time.Parse(time.RFC3339, obs.TS); err != nil {
				return errors.New("invalid observation ts; must be RFC3339")
			}
		}
	}
	return nil
}

// toBatch converts the wire request into the domain batch. Individual
// observations fall back to the batch timestamp when they carry none.
func (o observationBatchRequest) toBatch() *model.Batch {
	at, _ := time.Parse(time.RFC3339, o.TS)

	var frame *model.Frame
	if o.Frame != nil {
		frame = &model.Frame{
			Width:    o.Frame.Width,
			Height:   o.Frame.Height,
			Channels: o.Frame.Channels,
			Pixels:   o.Frame.Pixels,
		}
	}

	obs := make([]model.Observation, 0, len(o.Observations))
	for _, p := range o.Observations {
		oat := at
		if p.TS != "" {
			oat, _ = time.Parse(time.RFC3339, p.TS)
		}
		obs = append(obs, model.Observation{
			SubjectID: p.SubjectID,
			Position:  model.Position{X: p.X, Y: p.Y},
			At:        oat,
		})
	}

	return &model.Batch{
		StreamID:     o.StreamID,
		BatchID:      o.BatchID,
		FrameSeq:     o.FrameSeq,
		At:           at,
		Frame:        frame,
		Observations: obs,
	}
}

type ackResponse struct {
	Status    string `json:"status"`
	Duplicate bool   `json:"duplicate"`
}

type resetResponse struct {
	Status          string `json:"status"`
	SubjectsDropped int    `json:"subjects_dropped"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
