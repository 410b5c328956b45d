package sync

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ActionRequest is the body of POST /actions/{handler}.
type ActionRequest struct {
	Data          json.RawMessage `json:"data"`
	Configuration json.RawMessage `json:"configuration"`
}

// Server exposes the handlers as HTTP actions.
type Server struct {
	*SyncContext
	Gatherer prometheus.Gatherer
}

// Router mounts the action, metrics and health endpoints.
func (s Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	if s.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	r.Post("/actions/cleanup", s.HandleCleanUp)
	r.Post("/actions/{handler}", s.HandleAction)
	return r
}

// HandleAction handles POST /actions/{handler}, where handler is a case type
// name or zaak for dispatch on the zaaktype.
func (s Server) HandleAction(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "handler")
	caseType := CaseTypeNone
	if name != CaseTypeNone.String() {
		var err error
		if caseType, err = ParseCaseType(name); err != nil {
			s.Logger.Warn("unknown action", zap.String("handler", name))
			writeResult(w, http.StatusNotFound, emptyResult)
			return
		}
	}

	var req ActionRequest
	var configuration HandlerConfiguration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.Logger.Warn("invalid action request", zap.String("handler", name), zap.Error(err))
		writeResult(w, http.StatusBadRequest, emptyResult)
		return
	}
	if len(req.Configuration) > 0 {
		if err := json.Unmarshal(req.Configuration, &configuration); err != nil {
			s.Logger.Warn("invalid action configuration", zap.String("handler", name), zap.Error(err))
			writeResult(w, http.StatusBadRequest, emptyResult)
			return
		}
	}

	result := NewHandler(s.SyncContext, caseType).Handle(r.Context(), req.Data, configuration)
	if result.Err != nil {
		writeResult(w, http.StatusUnprocessableEntity, emptyResult)
		return
	}
	writeResult(w, http.StatusOK, result.Data)
}

// HandleCleanUp handles POST /actions/cleanup.
func (s Server) HandleCleanUp(w http.ResponseWriter, r *http.Request) {
	var req ActionRequest
	var configuration CleanUpConfiguration
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResult(w, http.StatusBadRequest, emptyResult)
		return
	}
	if len(req.Configuration) > 0 {
		if err := json.Unmarshal(req.Configuration, &configuration); err != nil {
			writeResult(w, http.StatusBadRequest, emptyResult)
			return
		}
	}
	data := []byte(req.Data)
	if len(data) == 0 {
		data = emptyResult
	}
	if _, err := (CleanUp{SyncContext: s.SyncContext}).Handle(r.Context(), configuration); err != nil {
		s.Logger.Error("clean up failed", zap.String("entity", configuration.ObjectType), zap.Error(err))
		writeResult(w, http.StatusUnprocessableEntity, emptyResult)
		return
	}
	writeResult(w, http.StatusOK, data)
}

func writeResult(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", jsonContentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
