package main

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/caseguard/caseguard/pkg/api"
	"github.com/caseguard/caseguard/pkg/codec"
	"github.com/caseguard/caseguard/pkg/engine"
	"github.com/caseguard/caseguard/pkg/hooks"
	"github.com/caseguard/caseguard/pkg/profile"
	"github.com/caseguard/caseguard/pkg/risk"
	"github.com/caseguard/caseguard/pkg/usecase"
)

// server is the HTTP boundary over one engine. Use case contexts are
// single-caller; a multi-client deployment must front this with its own
// serialization, which is out of scope here.
type server struct {
	engine  *engine.Engine
	audit   *hooks.AuditLogger
	presets *profile.Registry
}

func newServer(eng *engine.Engine, audit *hooks.AuditLogger, presets *profile.Registry) *server {
	return &server{engine: eng, audit: audit, presets: presets}
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /v1/dashboard", s.handleDashboard)
	mux.HandleFunc("GET /v1/dashboard/dimensions", s.handleDimensionSummaries)
	mux.HandleFunc("GET /v1/dashboard/workload", s.handleWorkload)
	mux.HandleFunc("GET /v1/usecases", s.handleListUseCases)
	mux.HandleFunc("POST /v1/usecases", s.handleCreateUseCase)
	mux.HandleFunc("GET /v1/usecases/{name}", s.handleGetUseCase)
	mux.HandleFunc("POST /v1/usecases/{name}/flags", s.handleRaiseFlag)
	mux.HandleFunc("POST /v1/usecases/{name}/flags/{index}/review", s.handleTransition(beginReview))
	mux.HandleFunc("POST /v1/usecases/{name}/flags/{index}/resolve", s.handleTransition(resolve))
	mux.HandleFunc("POST /v1/usecases/{name}/flags/{index}/accept", s.handleTransition(acceptRisk))
	mux.HandleFunc("POST /v1/escalations/run", s.handleRunEscalations)
	mux.HandleFunc("GET /v1/audit", s.handleAudit)
	mux.HandleFunc("GET /v1/presets", s.handlePresets)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *server) handleDashboard(w http.ResponseWriter, _ *http.Request) {
	d := s.engine.Dashboard()
	blocked := make([]string, 0)
	for _, ctx := range d.BlockedUseCases() {
		blocked = append(blocked, ctx.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"use_cases":        len(d.UseCases()),
		"blocked":          blocked,
		"portfolio_scores": d.PortfolioRiskScores(),
		"dimension_scores": d.DimensionScores(),
	})
}

func (s *server) handleDimensionSummaries(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Dashboard().AllDimensionSummaries())
}

func (s *server) handleWorkload(w http.ResponseWriter, _ *http.Request) {
	workload := s.engine.Dashboard().ReviewerWorkload()
	out := make(map[string][]map[string]any, len(workload))
	for reviewer, items := range workload {
		key := reviewer
		if key == "" {
			key = "(unassigned)"
		}
		for _, item := range items {
			out[key] = append(out[key], map[string]any{
				"use_case":   item.UseCase,
				"flag_index": item.FlagIndex,
				"dimension":  item.Flag.Dimension.Key,
				"level":      item.Flag.Level.String(),
				"status":     string(item.Flag.Status),
			})
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) handleListUseCases(w http.ResponseWriter, _ *http.Request) {
	var names []string
	for _, ctx := range s.engine.Dashboard().UseCases() {
		names = append(names, ctx.Name)
	}
	writeJSON(w, http.StatusOK, map[string]any{"use_cases": names})
}

type createUseCaseRequest struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Phase       string   `json:"workflow_phase"`
	Tags        []string `json:"tags"`
}

func (s *server) handleCreateUseCase(w http.ResponseWriter, r *http.Request) {
	var req createUseCaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "malformed JSON body: "+err.Error())
		return
	}
	if req.Name == "" {
		api.WriteBadRequest(w, "name is required")
		return
	}
	if _, exists := s.engine.Dashboard().Get(req.Name); exists {
		api.WriteConflict(w, "use case "+strconv.Quote(req.Name)+" already registered")
		return
	}
	ctx := s.engine.NewUseCase(req.Name,
		usecase.WithDescription(req.Description),
		usecase.WithPhase(req.Phase),
		usecase.WithTags(req.Tags...),
	)
	s.writeUseCase(w, http.StatusCreated, ctx)
}

func (s *server) handleGetUseCase(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.engine.Dashboard().Get(r.PathValue("name"))
	if !ok {
		api.WriteNotFound(w, "unknown use case "+strconv.Quote(r.PathValue("name")))
		return
	}
	s.writeUseCase(w, http.StatusOK, ctx)
}

func (s *server) writeUseCase(w http.ResponseWriter, status int, ctx *usecase.Context) {
	data, err := codec.Encode(ctx)
	if err != nil {
		api.WriteInternal(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

type raiseFlagRequest struct {
	Dimension   string `json:"dimension"`
	Label       string `json:"label"`
	Level       string `json:"level"`
	Description string `json:"description"`
	Reviewer    string `json:"reviewer"`
}

func (s *server) handleRaiseFlag(w http.ResponseWriter, r *http.Request) {
	ctx, ok := s.engine.Dashboard().Get(r.PathValue("name"))
	if !ok {
		api.WriteNotFound(w, "unknown use case "+strconv.Quote(r.PathValue("name")))
		return
	}
	var req raiseFlagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteBadRequest(w, "malformed JSON body: "+err.Error())
		return
	}
	level, err := risk.ParseLevel(req.Level)
	if err != nil {
		api.WriteBadRequest(w, err.Error())
		return
	}

	dim, err := s.engine.Dimensions().DimensionOf(req.Dimension)
	if err != nil {
		// An unseen key with a label mints a custom dimension on the fly.
		if req.Label == "" {
			api.WriteDomainError(w, err)
			return
		}
		dim, err = s.engine.Dimensions().MintCustom(req.Dimension, req.Label)
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
	}

	f := ctx.FlagRisk(dim, level, req.Description, req.Reviewer)
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         f.ID,
		"flag_index": len(ctx.Flags()) - 1,
		"reviewer":   f.Reviewer,
		"status":     string(f.Status),
	})
}

type transitionKind int

const (
	beginReview transitionKind = iota
	resolve
	acceptRisk
)

type transitionRequest struct {
	Note string `json:"note"`
}

func (s *server) handleTransition(kind transitionKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, ok := s.engine.Dashboard().Get(r.PathValue("name"))
		if !ok {
			api.WriteNotFound(w, "unknown use case "+strconv.Quote(r.PathValue("name")))
			return
		}
		idx, err := strconv.Atoi(r.PathValue("index"))
		if err != nil {
			api.WriteBadRequest(w, "flag index must be an integer")
			return
		}
		var req transitionRequest
		if r.Body != nil {
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		switch kind {
		case beginReview:
			err = ctx.BeginReview(idx)
		case resolve:
			err = ctx.Resolve(idx, req.Note)
		case acceptRisk:
			err = ctx.AcceptRisk(idx, req.Note)
		}
		if err != nil {
			api.WriteDomainError(w, err)
			return
		}
		f, err := ctx.Flag(idx)
		if err != nil {
			api.WriteNotFound(w, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     f.ID,
			"status": string(f.Status),
			"note":   f.Note,
		})
	}
}

func (s *server) handleRunEscalations(w http.ResponseWriter, _ *http.Request) {
	results := s.engine.RunEscalations(time.Now())
	out := make([]map[string]any, 0, len(results))
	for _, res := range results {
		out = append(out, map[string]any{
			"use_case":   res.UseCase,
			"flag_index": res.FlagIndex,
			"level":      res.Flag.Level.String(),
			"reviewer":   res.Flag.Reviewer,
			"age":        res.Age.String(),
			"message":    res.Message,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"escalations": out})
}

func (s *server) handleAudit(w http.ResponseWriter, r *http.Request) {
	q := hooks.AuditQuery{
		Event:   hooks.EventName(r.URL.Query().Get("event")),
		UseCase: r.URL.Query().Get("use_case"),
	}
	if raw := r.URL.Query().Get("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.WriteBadRequest(w, "since must be RFC 3339")
			return
		}
		q.Since = t
	}
	if raw := r.URL.Query().Get("until"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			api.WriteBadRequest(w, "until must be RFC 3339")
			return
		}
		q.Until = t
	}
	entries := s.audit.Query(q)
	if entries == nil {
		entries = []hooks.AuditEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

func (s *server) handlePresets(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"presets": s.presets.Names()})
}
