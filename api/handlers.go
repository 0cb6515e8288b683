package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"breach-lookup/breach"
	"breach-lookup/logging"
	"breach-lookup/lookup"
)

// maxRequestBytes bounds inbound batch bodies.
const maxRequestBytes = 1 << 20

const codeInvalidOptions = "BREACH_INVALID_OPTIONS"

type LookupRequest struct {
	Entities []lookup.Entity `json:"entities"`
	Options  lookup.Options  `json:"options"`
}

type LookupResponse struct {
	Results []lookup.Result `json:"results"`
}

type ValidateRequest struct {
	Options lookup.Options `json:"options"`
}

type ValidateResponse struct {
	Errors []lookup.ValidationError `json:"errors"`
}

// Server exposes the connector over HTTP.
type Server struct {
	svc      *lookup.Service
	defaults lookup.Options
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// New builds the HTTP surface. defaults fill options a caller leaves empty.
func New(svc *lookup.Service, defaults lookup.Options, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Server{
		svc:      svc,
		defaults: defaults,
		gatherer: gatherer,
		logger:   logging.OrNop(logger),
	}
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/lookup", s.Lookup)
	r.Post("/validate", s.Validate)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// Lookup runs one batch. Token and entity failures both answer 502 with the
// structured error payload so callers can tell them apart from an empty result.
func (s *Server) Lookup(w http.ResponseWriter, r *http.Request) {
	var req LookupRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}

	opts := req.Options.WithDefaults(s.defaults)
	if verrs := lookup.ValidateOptions(opts); len(verrs) > 0 {
		payload := breach.ErrorPayload{}
		for _, v := range verrs {
			payload.Errors = append(payload.Errors, breach.ErrorObject{
				Detail: v.Message,
				Status: "400",
				Title:  "Invalid options",
				Code:   codeInvalidOptions,
				Source: &breach.ErrorSource{Pointer: "/options/" + v.Key},
			})
		}
		writeJSON(w, http.StatusBadRequest, payload)
		return
	}

	results, err := s.svc.Lookup(r.Context(), req.Entities, opts)
	if err != nil {
		s.logger.Warn("lookup batch failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, http.StatusBadGateway, breach.PayloadFor(err))
		return
	}

	writeJSON(w, http.StatusOK, LookupResponse{Results: results})
}

// Validate reports configuration problems for the options form.
func (s *Server) Validate(w http.ResponseWriter, r *http.Request) {
	var req ValidateRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBytes)).Decode(&req); err != nil {
		http.Error(w, "invalid input", http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, ValidateResponse{Errors: lookup.ValidateOptions(req.Options)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
