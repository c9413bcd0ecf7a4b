package http

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/admingrid/internal/grid/controller"
	"github.com/odyssey-erp/admingrid/internal/grid/prefs"
	"github.com/odyssey-erp/admingrid/internal/grid/render"
	"github.com/odyssey-erp/admingrid/internal/platform/httpx"
	"github.com/odyssey-erp/admingrid/internal/shared"
	"github.com/odyssey-erp/admingrid/internal/view"
)

const (
	instancePrefix = "grid-instance:"
	resumePrefix   = "grid-resume:"
)

// PerPageChoices are offered by the page size selector.
var PerPageChoices = []int{10, 25, 50, 100}

// PageData feeds pages/grid.html.
type PageData struct {
	Entity         string
	Title          string
	Base           string
	Page           controller.Page
	PerPageChoices []int
	Signals        []controller.Envelope
}

// Response is the JSON body of data and mutation endpoints.
type Response struct {
	Page    controller.Page       `json:"page"`
	Signals []controller.Envelope `json:"signals"`
}

func (h *Handler) handlePage(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)

	if snap, ok := h.resumable(t); ok && !hasGridParams(r.URL) {
		ctl.Restore(snap)
	} else {
		ctl.Mount(r.Context(), r.URL)
	}
	signals := rec.Drain()
	for _, s := range signals {
		clean, ok := s.(controller.CleanURL)
		if ok && clean.Path != r.URL.RequestURI() {
			h.redirect(w, r, t, ctl, clean.Path)
			return
		}
	}

	page, err := ctl.Render(r.Context())
	if err != nil {
		h.logger.Error("render grid", slog.String("entity", t.def.Entity), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.saveInstance(t, ctl)

	csrfToken, _ := h.cfg.CSRF.EnsureToken(r.Context(), t.sess)
	var flash *shared.FlashMessage
	if t.sess != nil {
		flash = t.sess.PopFlash()
	}
	title := t.grid.Title
	if title == "" {
		title = t.def.Entity
	}
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data: PageData{
			Entity:         t.def.Entity,
			Title:          title,
			Base:           gridPath(r),
			Page:           page,
			PerPageChoices: PerPageChoices,
			Signals:        controller.Envelopes(append(signals, rec.Drain()...)),
		},
	}
	if err := h.cfg.Templates.Render(w, "pages/grid.html", data); err != nil {
		h.logger.Error("render grid page", slog.String("entity", t.def.Entity), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) handleData(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)
	h.resume(r, t, ctl)
	h.respond(w, r, t, ctl, rec)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form")
		return
	}
	form := parseStateForm(r)
	if err := h.validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)
	h.resume(r, t, ctl)
	if err := apply(r.Context(), ctl, form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	h.respond(w, r, t, ctl, rec)
}

func (h *Handler) handleRowAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form")
		return
	}
	form := parseActionForm(r)
	if err := h.validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)
	h.resume(r, t, ctl)
	action := chi.URLParam(r, "action")
	if err := ctl.RunRowAction(r.Context(), action, form.ID, form.Confirmed); err != nil {
		h.actionFailed(w, r, t, ctl, action, err)
		return
	}
	if !wantsJSON(r) {
		h.flash(t, "success", "Action completed")
	}
	h.respond(w, r, t, ctl, rec)
}

func (h *Handler) handleBulkAction(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form")
		return
	}
	form := parseBulkForm(r)
	if err := h.validate(form); err != nil {
		httpx.RespondError(w, err)
		return
	}
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)
	h.resume(r, t, ctl)
	action := chi.URLParam(r, "action")
	if err := ctl.RunBulkAction(r.Context(), action, form.IDs, form.Confirmed); err != nil {
		h.actionFailed(w, r, t, ctl, action, err)
		return
	}
	if !wantsJSON(r) {
		h.flash(t, "success", "Bulk action completed")
	}
	h.respond(w, r, t, ctl, rec)
}

func (h *Handler) handleClearPreferences(w http.ResponseWriter, r *http.Request) {
	t := targetFrom(r.Context())
	rec := &controller.Recorder{}
	ctl := h.controller(t, rec)
	h.resume(r, t, ctl)
	ctl.ClearPreferences(r.Context())
	h.respond(w, r, t, ctl, rec)
}

// resume restores the instance kept in the session, or mounts a new one.
func (h *Handler) resume(r *http.Request, t *target, ctl *controller.Controller) {
	if snap, ok := h.loadInstance(t); ok {
		ctl.Restore(snap)
		return
	}
	ctl.Mount(r.Context(), r.URL)
}

func (h *Handler) respond(w http.ResponseWriter, r *http.Request, t *target, ctl *controller.Controller, rec *controller.Recorder) {
	if !wantsJSON(r) {
		h.redirect(w, r, t, ctl, gridPath(r))
		return
	}
	page, err := ctl.Render(r.Context())
	if err != nil {
		h.logger.Error("render grid", slog.String("entity", t.def.Entity), slog.Any("error", err))
		if errors.Is(err, render.ErrUnregistered) {
			httpx.Problem(w, http.StatusInternalServerError, "Render Failed", err.Error())
			return
		}
		httpx.RespondError(w, err)
		return
	}
	h.saveInstance(t, ctl)
	httpx.JSON(w, http.StatusOK, Response{Page: page, Signals: controller.Envelopes(rec.Drain())})
}

func (h *Handler) actionFailed(w http.ResponseWriter, r *http.Request, t *target, ctl *controller.Controller, action string, err error) {
	h.logger.Warn("grid action failed",
		slog.String("entity", t.def.Entity),
		slog.String("action", action),
		slog.Any("error", err))
	if wantsJSON(r) {
		httpx.RespondError(w, problem(err))
		return
	}
	h.flash(t, "danger", err.Error())
	h.redirect(w, r, t, ctl, gridPath(r))
}

// redirect saves the instance and marks it to be resumed by the next page
// load instead of mounting afresh.
func (h *Handler) redirect(w http.ResponseWriter, r *http.Request, t *target, ctl *controller.Controller, to string) {
	h.saveInstance(t, ctl)
	if t.sess != nil {
		t.sess.Set(resumePrefix+t.def.Entity, "1")
	}
	http.Redirect(w, r, to, http.StatusSeeOther)
}

func (h *Handler) flash(t *target, kind, message string) {
	if t.sess != nil {
		t.sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
}

func (h *Handler) loadInstance(t *target) (controller.Snapshot, bool) {
	var snap controller.Snapshot
	if t.sess == nil {
		return snap, false
	}
	ok, err := t.sess.GetJSON(instancePrefix+t.def.Entity, &snap)
	if err != nil {
		h.logger.Warn("discard grid instance", slog.String("entity", t.def.Entity), slog.Any("error", err))
		t.sess.Delete(instancePrefix + t.def.Entity)
		return controller.Snapshot{}, false
	}
	return snap, ok
}

// resumable returns the instance saved before a redirect. The marker is
// consumed.
func (h *Handler) resumable(t *target) (controller.Snapshot, bool) {
	if t.sess == nil || t.sess.Get(resumePrefix+t.def.Entity) == "" {
		return controller.Snapshot{}, false
	}
	t.sess.Delete(resumePrefix + t.def.Entity)
	return h.loadInstance(t)
}

func (h *Handler) saveInstance(t *target, ctl *controller.Controller) {
	if t.sess == nil {
		return
	}
	if err := t.sess.SetJSON(instancePrefix+t.def.Entity, ctl.Snapshot()); err != nil {
		h.logger.Warn("encode grid instance", slog.String("entity", t.def.Entity), slog.Any("error", err))
	}
}

func wantsJSON(r *http.Request) bool {
	return strings.Contains(r.Header.Get("Accept"), "application/json") ||
		r.Header.Get("X-Requested-With") == "XMLHttpRequest"
}

func hasGridParams(u *url.URL) bool {
	for name := range u.Query() {
		if prefs.Recognized(name) {
			return true
		}
	}
	return false
}

func gridPath(r *http.Request) string {
	return "/grids/" + url.PathEscape(chi.URLParam(r, "entity"))
}
