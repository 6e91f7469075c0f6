package web

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/yuin/goldmark"

	"snipsense/internal/errors"
	"snipsense/internal/ops"
	"snipsense/internal/stats"
)

// PageData contains common fields used across all page templates.
type PageData struct {
	Title   string
	Version string
	Nav     string // active nav item: "status", "runs", "suggestions"
}

// StatusPageData is the template data for the status page.
type StatusPageData struct {
	PageData
	Status *ops.StatusOutput
	Live   bool // a live agent feeds /events
}

// RunsPageData is the template data for the run list page.
type RunsPageData struct {
	PageData
	Runs  []stats.Run
	Total int
}

// RunDetailPageData is the template data for the run detail page.
type RunDetailPageData struct {
	PageData
	Run          stats.Run
	Suggestions  []stats.Suggestion
	RenderedHTML template.HTML
}

// SuggestionsPageData is the template data for the suggestions page.
type SuggestionsPageData struct {
	PageData
	Suggestions []stats.Suggestion
	RunID       string
}

// ErrorPageData is the template data for the error page.
type ErrorPageData struct {
	PageData
	StatusCode int
	Message    string
}

// Renderer manages template parsing and rendering.
type Renderer struct {
	templates map[string]*template.Template
	version   string
}

// NewRenderer creates a Renderer by parsing templates from the given FS.
func NewRenderer(templateFS fs.FS, version string) *Renderer {
	funcMap := template.FuncMap{
		"formatTime":       formatTime,
		"formatDuration":   formatDuration,
		"formatConfidence": formatConfidence,
		"deref":            deref,
		"hasValue":         hasValue,
	}

	// Parse layout as the base template
	layoutTmpl := template.Must(template.New("layout").Funcs(funcMap).ParseFS(templateFS, "layout.html"))

	pages := map[string]string{
		"status":      "status.html",
		"runs":        "runs.html",
		"run":         "run.html",
		"suggestions": "suggestions.html",
		"error":       "error.html",
	}

	templates := make(map[string]*template.Template, len(pages))
	for name, file := range pages {
		t := template.Must(layoutTmpl.Clone())
		template.Must(t.ParseFS(templateFS, file))
		templates[name] = t
	}

	return &Renderer{
		templates: templates,
		version:   version,
	}
}

// renderPage renders a named page template with the given data and HTTP 200 status.
func (r *Renderer) renderPage(w http.ResponseWriter, req *http.Request, name string, data any) {
	r.renderPageStatus(w, req, http.StatusOK, name, data)
}

// renderPageStatus renders a named page template with the given data and HTTP status code.
func (r *Renderer) renderPageStatus(w http.ResponseWriter, req *http.Request, status int, name string, data any) {
	t, ok := r.templates[name]
	if !ok {
		log.Printf("template %q not found", name)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", data); err != nil {
		log.Printf("template execution error: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// renderError renders an error response with content negotiation.
func (r *Renderer) renderError(w http.ResponseWriter, req *http.Request, err error) {
	var aErr *errors.AgentError
	if !stderrors.As(err, &aErr) {
		aErr = errors.NewInternal(err)
	}

	status := aErr.Status
	message := aErr.Message

	// JSON request
	if strings.Contains(req.Header.Get("Accept"), "application/json") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{
				"code":    string(aErr.Code),
				"message": message,
				"status":  status,
			},
		})
		return
	}

	// Full error page
	r.renderPageStatus(w, req, status, "error", ErrorPageData{
		PageData: PageData{
			Title:   fmt.Sprintf("Error %d", status),
			Version: r.version,
		},
		StatusCode: status,
		Message:    message,
	})
}

// renderJSON writes a JSON response.
func renderJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// renderMarkdown converts markdown text to HTML using goldmark.
func renderMarkdown(md string) template.HTML {
	var buf bytes.Buffer
	if err := goldmark.Convert([]byte(md), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(md))
	}
	return template.HTML(buf.String())
}

// buildRunReport renders one run as a markdown document for the detail page.
func buildRunReport(run stats.Run, suggestions []stats.Suggestion) string {
	var b strings.Builder

	fmt.Fprintf(&b, "## Run %s\n\n", run.ID)
	fmt.Fprintf(&b, "- **Started:** %s\n", formatTime(run.StartedAt))
	fmt.Fprintf(&b, "- **Duration:** %s\n", formatDuration(run.DurationMS))
	fmt.Fprintf(&b, "- **Entries:** %d · **Clusters:** %d · **Suggestions:** %d\n\n",
		run.EntryCount, run.ClusterCount, run.SuggestionCount)

	if run.Fatal != nil {
		fmt.Fprintf(&b, "> **Fatal:** %s\n\n", *run.Fatal)
	}
	if len(run.Errors) > 0 {
		b.WriteString("### Errors\n\n")
		for _, e := range run.Errors {
			fmt.Fprintf(&b, "- %s\n", e)
		}
		b.WriteString("\n")
	}

	if len(suggestions) > 0 {
		b.WriteString("### Suggestions\n\n")
		for _, s := range suggestions {
			fmt.Fprintf(&b, "- `%s` → %s (%s)\n", s.Trigger, s.Replacement, formatConfidence(s.Confidence))
		}
	}

	return b.String()
}

// formatTime formats a Unix timestamp as "2006-01-02 15:04" UTC.
func formatTime(unix int64) string {
	return time.Unix(unix, 0).UTC().Format("2006-01-02 15:04")
}

// formatDuration renders a millisecond count compactly.
func formatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// formatConfidence renders a confidence score as a percentage.
func formatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

// deref dereferences a pointer, returning the zero value if nil.
func deref(v any) any {
	if v == nil {
		return ""
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return reflect.Zero(rv.Type().Elem()).Interface()
		}
		return rv.Elem().Interface()
	}
	return v
}

// hasValue checks if a pointer value is non-nil.
func hasValue(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Pointer {
		return !rv.IsNil()
	}
	return true
}
