package web

import (
	"net/http"
	"strconv"

	"snipsense/internal/errors"
	"snipsense/internal/ops"
)

// Handlers contains HTTP route handlers for the dashboard.
type Handlers struct {
	env      *ops.Env
	agent    Agent
	hub      *Hub
	renderer *Renderer
}

// HandleStatus handles GET /status — the agent overview page.
func (h *Handlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Status(h.env, ops.StatusInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "status", StatusPageData{
		PageData: PageData{
			Title:   "Status",
			Version: h.renderer.version,
			Nav:     "status",
		},
		Status: result,
		Live:   h.hub != nil,
	})
}

// HandleRuns handles GET /runs — list recorded analysis runs.
func (h *Handlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Runs(h.env, ops.RunsInput{
		Limit: parseIntParam(r, "limit", ops.DefaultRunsLimit),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "runs", RunsPageData{
		PageData: PageData{
			Title:   "Runs",
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Runs:  result.Runs,
		Total: result.Total,
	})
}

// HandleRunDetail handles GET /runs/{id} — one run with its suggestions.
func (h *Handlers) HandleRunDetail(w http.ResponseWriter, r *http.Request) {
	result, err := ops.Run(h.env, ops.RunInput{ID: r.PathValue("id")})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	report := buildRunReport(result.Run, result.Suggestions)

	h.renderer.renderPage(w, r, "run", RunDetailPageData{
		PageData: PageData{
			Title:   "Run " + result.Run.ID,
			Version: h.renderer.version,
			Nav:     "runs",
		},
		Run:          result.Run,
		Suggestions:  result.Suggestions,
		RenderedHTML: renderMarkdown(report),
	})
}

// HandleSuggestions handles GET /suggestions — the suggestion list.
func (h *Handlers) HandleSuggestions(w http.ResponseWriter, r *http.Request) {
	runID := r.URL.Query().Get("run_id")

	result, err := ops.Suggestions(h.env, ops.SuggestionsInput{
		RunID: runID,
		Limit: parseIntParam(r, "limit", ops.DefaultSuggestionsLimit),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	h.renderer.renderPage(w, r, "suggestions", SuggestionsPageData{
		PageData: PageData{
			Title:   "Suggestions",
			Version: h.renderer.version,
			Nav:     "suggestions",
		},
		Suggestions: result.Suggestions,
		RunID:       runID,
	})
}

// HandleAnalyze handles POST /analyze — trigger an analysis run. With a live
// agent the run happens in the background; standalone, the request blocks
// until the run finishes.
func (h *Handlers) HandleAnalyze(w http.ResponseWriter, r *http.Request) {
	if h.agent != nil {
		if err := h.agent.AnalyzeNow(); err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusAccepted, map[string]any{"started": true})
		return
	}

	result, err := ops.Analyze(r.Context(), h.env, ops.AnalyzeInput{})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, result)
}

// HandleEvents handles GET /events — the live event stream. Standalone mode
// has no event source, so the endpoint reports unavailable.
func (h *Handlers) HandleEvents(w http.ResponseWriter, r *http.Request) {
	if h.hub == nil {
		h.renderer.renderError(w, r, &errors.AgentError{
			Code:    errors.ErrInvalidRequest,
			Status:  http.StatusServiceUnavailable,
			Message: "live events require a running agent",
		})
		return
	}
	h.hub.HandleEvents(w, r)
}

// parseIntParam reads an integer query parameter with a default.
func parseIntParam(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
