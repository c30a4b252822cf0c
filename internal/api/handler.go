// Package api serves the rewrite, record and review operations over HTTP.
package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/redline/internal/logger"
	"github.com/ppiankov/redline/internal/model"
	"github.com/ppiankov/redline/internal/requestctx"
	"github.com/ppiankov/redline/internal/review"
	"github.com/ppiankov/redline/internal/service"
)

// Handler wires HTTP endpoints to per-domain services.
type Handler struct {
	registry *service.Registry
	logger   *slog.Logger
	gatherer prometheus.Gatherer
}

// New constructs a Handler. A nil gatherer serves the default registry.
func New(registry *service.Registry, log *slog.Logger, gatherer prometheus.Gatherer) *Handler {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return &Handler{registry: registry, logger: logger.OrDiscard(log), gatherer: gatherer}
}

// Router returns the full route tree with middleware applied.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(requestIDBridge)
	r.Use(middleware.Recoverer)
	h.Register(r)
	return r
}

// Register mounts all endpoints on r.
func (h *Handler) Register(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Handle("/metrics", promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{}))
	r.Get("/domains", h.handleDomains)

	r.Route("/{domain}", func(r chi.Router) {
		r.Post("/rewrite", h.withService(h.handleRewrite))
		r.Get("/records", h.withService(h.handleList))
		r.Get("/records/search", h.withService(h.handleSearch))
		r.Get("/records/{trace_id}", h.withService(h.handleGet))
		r.Get("/records/{trace_id}/events", h.withService(h.handleEvents))
		r.Post("/records/{trace_id}/review", h.withService(h.handleReview))
	})
}

// requestIDBridge copies chi's request ID into requestctx and echoes it.
func requestIDBridge(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := middleware.GetReqID(r.Context())
		if id != "" {
			w.Header().Set(middleware.RequestIDHeader, id)
			r = r.WithContext(requestctx.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

type serviceHandler func(w http.ResponseWriter, r *http.Request, svc *service.Service)

func (h *Handler) withService(next serviceHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		domain := chi.URLParam(r, "domain")
		svc, ok := h.registry.Get(domain)
		if !ok {
			writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown_domain", Description: "domain " + strconv.Quote(domain) + " is not served"})
			return
		}
		next(w, r, svc)
	}
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "domains": h.registry.Domains()})
}

func (h *Handler) handleDomains(w http.ResponseWriter, r *http.Request) {
	type domainInfo struct {
		Domain            string   `json:"domain"`
		Description       string   `json:"description,omitempty"`
		Audiences         []string `json:"audiences"`
		RequiredAudiences []string `json:"disclaimer_required_audiences"`
		PolicyHash        string   `json:"policy_hash"`
	}
	out := []domainInfo{}
	for _, name := range h.registry.Domains() {
		svc, _ := h.registry.Get(name)
		p, err := svc.Policy()
		if err != nil {
			h.logger.ErrorContext(r.Context(), "policy load failed", "domain", name, "error", err.Error())
			writeError(w, err)
			return
		}
		out = append(out, domainInfo{
			Domain:            p.Domain,
			Description:       p.Description,
			Audiences:         p.Audiences,
			RequiredAudiences: p.Disclaimer.RequiredAudiences,
			PolicyHash:        p.Hash,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleRewrite(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	start := time.Now()
	var req model.RewriteRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	res, err := svc.SubmitRewrite(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	h.logger.DebugContext(r.Context(), "rewrite served",
		"request_id", requestctx.RequestID(r.Context()),
		"trace_id", res.TraceID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, &model.ValidationError{Field: "limit", Reason: "must be a positive integer"})
			return
		}
		limit = n
	}

	recs, err := svc.ListRecords(r.Context(), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	recs, err := svc.SearchByRisk(r.Context(), r.URL.Query().Get("risk"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	rec, err := svc.GetRecord(r.Context(), chi.URLParam(r, "trace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	events, err := svc.ReviewHistory(r.Context(), chi.URLParam(r, "trace_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, events)
}

// reviewRequest is the POST body of a review; the trace ID comes from the path.
type reviewRequest struct {
	Action      string `json:"action"`
	Reviewer    string `json:"reviewer"`
	Comment     string `json:"comment"`
	EditedEmail string `json:"edited_email"`
}

func (h *Handler) handleReview(w http.ResponseWriter, r *http.Request, svc *service.Service) {
	var req reviewRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	out, err := svc.Review(r.Context(), review.Action{
		TraceID:     chi.URLParam(r, "trace_id"),
		Action:      req.Action,
		Reviewer:    req.Reviewer,
		Comment:     req.Comment,
		EditedEmail: req.EditedEmail,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
