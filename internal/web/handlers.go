package web

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/hpungsan/brief/internal/cases"
	"github.com/hpungsan/brief/internal/config"
	"github.com/hpungsan/brief/internal/errors"
	"github.com/hpungsan/brief/internal/ops"
)

// maxFormBytes bounds a submitted case body.
const maxFormBytes = 1 << 20

// Handlers contains HTTP route handlers for the web UI and JSON API.
type Handlers struct {
	db       *sql.DB
	cfg      *config.Config
	runner   ops.Runner
	renderer *Renderer
	logger   *slog.Logger

	// runCtx parents executions started from the HTML form; cancelled on shutdown.
	runCtx context.Context
	runs   sync.WaitGroup

	mu     sync.Mutex
	closed bool // no new background runs once shutdown began
}

// HandleList handles GET /cases, newest first.
func (h *Handlers) HandleList(w http.ResponseWriter, r *http.Request) {
	input := ops.ListInput{
		Limit:  parseIntParam(r, "limit", ops.DefaultListLimit),
		Offset: parseIntParam(r, "offset", 0),
	}

	result, err := ops.List(r.Context(), h.db, input)
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, result)
		return
	}

	h.renderer.renderPage(w, "list", ListPageData{
		PageData: PageData{
			Title:   "Cases",
			Version: h.renderer.version,
			Nav:     "cases",
		},
		Items:      result.Items,
		Pagination: result.Pagination,
	})
}

// HandleNew handles GET /cases/new, the submission form.
func (h *Handlers) HandleNew(w http.ResponseWriter, r *http.Request) {
	h.renderer.renderPage(w, "new", h.newPage(SubmitForm{}, ""))
}

func (h *Handlers) newPage(form SubmitForm, msg string) NewPageData {
	return NewPageData{
		PageData: PageData{
			Title:   "New case",
			Version: h.renderer.version,
			Nav:     "new",
		},
		Form:  form,
		Error: msg,
	}
}

// createRequest is the JSON body accepted by POST /cases.
type createRequest struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
	Query       string  `json:"query"`
}

// HandleCreate handles POST /cases from either a form or a JSON body.
func (h *Handlers) HandleCreate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	if isJSONBody(r) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid JSON body"))
			return
		}
		out, err := ops.Submit(r.Context(), h.db, ops.SubmitInput{
			Title:       req.Title,
			Description: req.Description,
			Query:       req.Query,
		})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusCreated, out)
		return
	}

	if err := r.ParseForm(); err != nil {
		h.renderer.renderError(w, r, errors.NewInvalidRequest("invalid form data"))
		return
	}
	form := SubmitForm{
		Title:       r.FormValue("title"),
		Description: r.FormValue("description"),
		Query:       r.FormValue("query"),
	}
	description := form.Description
	out, err := ops.Submit(r.Context(), h.db, ops.SubmitInput{
		Title:       form.Title,
		Description: &description,
		Query:       form.Query,
	})
	if err != nil {
		if errors.Is(err, errors.ErrInvalidRequest) && !wantsJSON(r) {
			h.renderer.renderPageStatus(w, http.StatusBadRequest, "new", h.newPage(form, errors.From(err).Message))
			return
		}
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusCreated, out)
		return
	}
	http.Redirect(w, r, "/cases/"+out.ID, http.StatusSeeOther)
}

// HandleDetail handles GET /cases/{id}: status, trace and rendered verdict.
func (h *Handlers) HandleDetail(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	c, err := ops.Get(r.Context(), h.db, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	if wantsJSON(r) {
		renderJSON(w, http.StatusOK, c)
		return
	}

	logs, err := ops.Logs(r.Context(), h.db, ops.LogsInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	data := DetailPageData{
		PageData: PageData{
			Title:   c.Title,
			Version: h.renderer.version,
			Nav:     "cases",
		},
		Case:    c,
		Logs:    logs.Items,
		Running: c.Status == cases.StatusProcessing,
	}
	if c.Result != nil {
		if doc, err := cases.DecodeVerdict(c.Result.FindingsText()); err == nil {
			v := doc.Verdict()
			data.Verdict = &v
		}
		data.RenderedHTML = renderMarkdown(cases.RenderMarkdown(c.Title, c.Result))
	}

	h.renderer.renderPage(w, "detail", data)
}

// HandleExecute handles POST /cases/{id}/execute.
// JSON clients wait for the run; the HTML form starts it in the background
// and redirects to the detail page.
func (h *Handlers) HandleExecute(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if wantsJSON(r) {
		out, err := ops.Execute(r.Context(), h.db, h.runner, h.cfg, ops.ExecuteInput{ID: id})
		if err != nil {
			h.renderer.renderError(w, r, err)
			return
		}
		renderJSON(w, http.StatusOK, out)
		return
	}

	// Surface not-found and busy cases before detaching
	c, err := ops.Get(r.Context(), h.db, ops.GetInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	if c.Status == cases.StatusProcessing {
		h.renderer.renderError(w, r, errors.NewCaseBusy(c.ID))
		return
	}

	started := h.goRun(func() {
		out, err := ops.Execute(h.runCtx, h.db, h.runner, h.cfg, ops.ExecuteInput{ID: c.ID})
		switch {
		case err != nil:
			h.logger.Warn("background execution failed", "case_id", c.ID, "error", err)
		case !out.Success:
			h.logger.Info("execution finished", "case_id", c.ID, "status", out.Status, "error", out.Error)
		default:
			h.logger.Info("execution finished", "case_id", c.ID, "status", out.Status)
		}
	})
	if !started {
		h.renderer.renderError(w, r, errors.NewCancelled("execute"))
		return
	}

	http.Redirect(w, r, "/cases/"+c.ID, http.StatusSeeOther)
}

// HandleLogs handles GET /cases/{id}/logs. Browsers are sent to the detail page.
func (h *Handlers) HandleLogs(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !wantsJSON(r) {
		http.Redirect(w, r, "/cases/"+id, http.StatusFound)
		return
	}

	out, err := ops.Logs(r.Context(), h.db, ops.LogsInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleResult handles GET /cases/{id}/result. Browsers are sent to the detail page.
func (h *Handlers) HandleResult(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !wantsJSON(r) {
		http.Redirect(w, r, "/cases/"+id, http.StatusFound)
		return
	}

	out, err := ops.Result(r.Context(), h.db, ops.ResultInput{ID: id})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}
	renderJSON(w, http.StatusOK, out)
}

// HandleExport handles GET /cases/{id}/export?format=markdown|json as a download.
func (h *Handlers) HandleExport(w http.ResponseWriter, r *http.Request) {
	out, err := ops.Export(r.Context(), h.db, ops.ExportInput{
		ID:     r.PathValue("id"),
		Format: r.URL.Query().Get("format"),
	})
	if err != nil {
		h.renderer.renderError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", out.Mime+"; charset=utf-8")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(out.Content))
}

// goRun starts fn as a tracked background run. It reports false once
// closeRuns has been called.
func (h *Handlers) goRun(fn func()) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.runs.Add(1)
	go func() {
		defer h.runs.Done()
		fn()
	}()
	return true
}

// closeRuns stops goRun from starting new runs.
func (h *Handlers) closeRuns() {
	h.mu.Lock()
	h.closed = true
	h.mu.Unlock()
}

// Wait blocks until background executions started by the form have finished.
func (h *Handlers) Wait() {
	h.runs.Wait()
}

// isJSONBody reports whether the request body is declared as JSON.
func isJSONBody(r *http.Request) bool {
	mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mt == "application/json"
}

// parseIntParam extracts an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, def int) int {
	s := strings.TrimSpace(r.URL.Query().Get(name))
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}
