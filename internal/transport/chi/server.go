package chi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/nearby/internal/domain"
	"github.com/kailas-cloud/nearby/internal/domain/batch"
	"github.com/kailas-cloud/nearby/internal/domain/event"
	"github.com/kailas-cloud/nearby/internal/domain/search/result"
	logpkg "github.com/kailas-cloud/nearby/internal/logger"
	healthuc "github.com/kailas-cloud/nearby/internal/usecase/health"
	"github.com/kailas-cloud/nearby/internal/usecase/projection"
	searchuc "github.com/kailas-cloud/nearby/internal/usecase/search"
)

const (
	maxEventsBodyBytes = 8 << 20
	retryAfterSeconds  = "1"
	statusQueued       = "queued"

	// StatusClientClosedRequest is the non-standard status logged when the client went away.
	StatusClientClosedRequest = 499
)

// EventQueue accepts events for asynchronous application.
type EventQueue interface {
	Enqueue(ctx context.Context, e event.Event) error
}

// errorHandler tries to handle a domain error. Returns true if handled.
type errorHandler func(w http.ResponseWriter, err error, msg string) bool

// Server serves the provider search and sync HTTP API.
type Server struct {
	search        *searchuc.Service
	sync          *projection.Service
	queue         EventQueue
	health        *healthuc.Service
	logger        *zap.Logger
	errorHandlers []errorHandler
}

// NewServer creates an HTTP API server. queue may be nil, which disables async event submission.
func NewServer(
	search *searchuc.Service,
	sync *projection.Service,
	queue EventQueue,
	health *healthuc.Service,
	logger *zap.Logger,
) *Server {
	s := &Server{
		search: search,
		sync:   sync,
		queue:  queue,
		health: health,
		logger: logger,
	}
	s.errorHandlers = []errorHandler{
		validationHandler,
		unavailableHandler,
		sentinelHandler(domain.ErrNotFound, http.StatusNotFound, ErrorCodeNotFound),
		sentinelHandler(domain.ErrConflict, http.StatusConflict, ErrorCodeConflict),
		sentinelHandler(domain.ErrProviderNotIndexed, http.StatusConflict, ErrorCodeNotIndexed),
	}
	return s
}

// Routes mounts the API on r.
func (s *Server) Routes(r chi.Router) {
	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)
	r.Route("/v1", func(r chi.Router) {
		r.Get("/providers/search", s.SearchProviders)
		r.Post("/events", s.SubmitEvents)
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, ErrorCodeNotFound, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrorCodeBadRequest, "method not allowed")
	})
}

// SearchProviders handles GET /v1/providers/search.
func (s *Server) SearchProviders(w http.ResponseWriter, r *http.Request) {
	params, err := parseSearchParams(r.URL.Query())
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	page, err := s.search.Search(r.Context(), params)
	if err != nil {
		s.handleDomainError(r.Context(), w, err)
		return
	}

	limits := s.search.Limits()
	resp := searchResponse(&page)
	resp.Skip = params.Skip
	resp.Take = limits.DefaultTake
	if params.Take != nil {
		resp.Take = *params.Take
	}
	writeJSON(w, http.StatusOK, resp)
}

// SubmitEvents handles POST /v1/events. The body is a JSON array of event envelopes.
// With ?mode=async events are queued and 202 is returned; otherwise they are applied
// before responding.
func (s *Server) SubmitEvents(w http.ResponseWriter, r *http.Request) {
	async := r.URL.Query().Get("mode") == "async"
	if async && s.queue == nil {
		writeError(w, http.StatusNotImplemented, ErrorCodeNotImplemented, "async event submission is disabled")
		return
	}

	var raws []json.RawMessage
	body := http.MaxBytesReader(w, r.Body, maxEventsBodyBytes)
	if err := json.NewDecoder(body).Decode(&raws); err != nil {
		writeError(w, http.StatusBadRequest, ErrorCodeBadRequest, "Invalid request body: "+err.Error())
		return
	}
	if len(raws) == 0 {
		writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, "at least one event is required")
		return
	}

	items := make([]EventResult, len(raws))
	events := make([]event.Event, 0, len(raws))
	positions := make([]int, 0, len(raws))
	for i, raw := range raws {
		e, err := event.Decode(raw)
		if err != nil {
			items[i] = failedItem(i, e, err)
			continue
		}
		events = append(events, e)
		positions = append(positions, i)
	}

	ctx := logpkg.With(r.Context(), zap.Int("events", len(raws)), zap.Bool("async", async))
	logpkg.FromContext(ctx).Debug("events decoded", zap.Int("valid", len(events)))

	status := http.StatusOK
	if async {
		status = http.StatusAccepted
		for j, e := range events {
			i := positions[j]
			if err := s.queue.Enqueue(ctx, e); err != nil {
				if errors.Is(err, projection.ErrDispatcherClosed) {
					err = domain.Infrastructure("enqueue event", err)
				}
				items[i] = failedItem(i, e, err)
				continue
			}
			items[i] = EventResult{Index: i, ProviderID: e.ProviderID, Sequence: e.Sequence, Status: statusQueued}
		}
	} else {
		for j, res := range s.sync.ApplyBatch(ctx, events) {
			i := positions[j]
			if !res.OK() {
				items[i] = failedItem(i, events[j], res.Err())
				continue
			}
			items[i] = EventResult{
				Index: i, ProviderID: res.ID(), Sequence: res.Sequence(), Status: string(res.Status()),
			}
		}
	}

	resp := EventsResponse{Items: items}
	for _, it := range items {
		if it.Status == string(batch.StatusError) {
			resp.Failed++
		} else {
			resp.Succeeded++
		}
	}
	writeJSON(w, status, resp)
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report := s.health.Check(r.Context())

	checks := make(map[string]string, len(report.Checks))
	for k, v := range report.Checks {
		checks[k] = string(v)
	}

	httpStatus := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		httpStatus = http.StatusServiceUnavailable
	}

	writeJSON(w, httpStatus, HealthResponse{
		Status: string(report.Status),
		Checks: checks,
	})
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func failedItem(i int, e event.Event, err error) EventResult {
	code, msg := itemError(err)
	return EventResult{
		Index:      i,
		ProviderID: e.ProviderID,
		Sequence:   e.Sequence,
		Status:     string(batch.StatusError),
		Retryable:  domain.IsRetryable(err),
		Error:      &ErrorResponse{Code: code, Message: msg},
	}
}

func itemError(err error) (ErrorCode, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return ErrorCodeValidationFailed, err.Error()
	case errors.Is(err, domain.ErrProviderNotIndexed):
		return ErrorCodeNotIndexed, safeDomainMessage(err)
	case errors.Is(err, domain.ErrInfrastructure), errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return ErrorCodeUnavailable, domain.ErrInfrastructure.Error()
	default:
		return ErrorCodeInternal, "internal error"
	}
}

func searchResponse(page *result.Page) SearchResponse {
	hits := page.Items()
	items := make([]ProviderItem, len(hits))
	for i := range hits {
		p := hits[i].Provider()
		items[i] = ProviderItem{
			ID:            p.ID(),
			ProviderID:    p.ProviderID(),
			Name:          p.Name(),
			Location:      p.Location(),
			City:          p.City(),
			State:         p.State(),
			Tier:          p.Tier().String(),
			AverageRating: p.AverageRating(),
			TotalReviews:  p.TotalReviews(),
			ServiceIDs:    nonNilStrings(p.ServiceIDs()),
			DistanceKm:    hits[i].DistanceKm(),
		}
	}
	return SearchResponse{
		Items:          items,
		TotalCount:     page.TotalCount(),
		CountAvailable: page.CountAvailable(),
	}
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{
		Code:    code,
		Message: message,
	})
}

// safeDomainMessage returns a sentinel error message for the client without exposing internals.
func safeDomainMessage(err error) string {
	sentinels := []error{
		domain.ErrValidation,
		domain.ErrNotFound,
		domain.ErrConflict,
		domain.ErrStaleEvent,
		domain.ErrProviderNotIndexed,
		domain.ErrInfrastructure,
	}
	for _, s := range sentinels {
		if errors.Is(err, s) {
			return s.Error()
		}
	}
	return "internal error"
}

// sentinelHandler returns an errorHandler that matches a single sentinel error.
func sentinelHandler(sentinel error, status int, code ErrorCode) errorHandler {
	return func(w http.ResponseWriter, err error, msg string) bool {
		if !errors.Is(err, sentinel) {
			return false
		}
		writeError(w, status, code, msg)
		return true
	}
}

// validationHandler returns the full message: validation errors carry only caller input.
func validationHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrValidation) {
		return false
	}
	writeError(w, http.StatusBadRequest, ErrorCodeValidationFailed, err.Error())
	return true
}

// unavailableHandler maps store outages and timeouts to 503 with Retry-After.
func unavailableHandler(w http.ResponseWriter, err error, _ string) bool {
	if !errors.Is(err, domain.ErrInfrastructure) && !errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	w.Header().Set("Retry-After", retryAfterSeconds)
	writeError(w, http.StatusServiceUnavailable, ErrorCodeUnavailable, domain.ErrInfrastructure.Error())
	return true
}

func (s *Server) handleDomainError(ctx context.Context, w http.ResponseWriter, err error) {
	log := logpkg.FromContext(ctx)
	if errors.Is(err, context.Canceled) {
		log.Debug("request canceled", zap.Error(err))
		writeError(w, StatusClientClosedRequest, ErrorCodeBadRequest, "request canceled")
		return
	}
	msg := safeDomainMessage(err)
	for _, h := range s.errorHandlers {
		if h(w, err, msg) {
			if !errors.Is(err, domain.ErrValidation) {
				log.Warn("domain error", zap.Error(err))
			}
			return
		}
	}
	s.logger.Error("internal error", zap.Error(err))
	writeError(w, http.StatusInternalServerError, ErrorCodeInternal, "internal error")
}
