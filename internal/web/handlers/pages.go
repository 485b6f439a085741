// Package handlers serves the portal's HTML pages.
package handlers

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/a-h/templ"
	"github.com/nickoftime/keyvault-spo/internal/models"
	weberrors "github.com/nickoftime/keyvault-spo/internal/web/errors"
	"github.com/nickoftime/keyvault-spo/pkg/logger"
	"github.com/nickoftime/keyvault-spo/web/pages"
)

// PostLister returns the posts shown on the home page, newest first.
type PostLister interface {
	ListPosts(ctx context.Context) ([]models.Post, error)
}

// PageHandler handles the portal's page routes.
type PageHandler struct {
	lister   PostLister
	listName string
	logger   *slog.Logger
	now      func() time.Time
}

// NewPageHandler creates a new page handler.
func NewPageHandler(lister PostLister, listName string, log *slog.Logger) *PageHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PageHandler{
		lister:   lister,
		listName: listName,
		logger:   log,
		now:      time.Now,
	}
}

// Index renders the list view.
func (h *PageHandler) Index(w http.ResponseWriter, r *http.Request) {
	posts, err := h.lister.ListPosts(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, pages.List(pages.ListData{
		Posts:    posts,
		ListName: h.listName,
		Now:      h.now(),
	}))
}

// Privacy renders the privacy notice.
func (h *PageHandler) Privacy(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, pages.Privacy())
}

// Error renders the error page with the current correlation id.
func (h *PageHandler) Error(w http.ResponseWriter, r *http.Request) {
	noStore(w)
	h.render(w, r, http.StatusOK, pages.Error(pages.ErrorData{
		CorrelationID: logger.CorrelationIDFromContext(r.Context()),
	}))
}

// fail logs err with the request's correlation id and renders the error page.
// Nothing from err reaches the response.
func (h *PageHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	correlationID := logger.CorrelationIDFromContext(r.Context())
	if correlationID == "" {
		correlationID = weberrors.NewCorrelationID()
	}

	entry := weberrors.NewErrorLogEntryFromError(err, correlationID)

	// The client is gone; nobody will read a page.
	if entry.ErrorCode == weberrors.CodeCanceled && r.Context().Err() != nil {
		h.logger.Info("request canceled by client", "correlation_id", correlationID, "path", r.URL.Path)
		return
	}

	h.logger.Error("request failed", append(entry.ToSlogAttrs(),
		"method", r.Method,
		"path", r.URL.Path,
	)...)

	noStore(w)
	h.render(w, r, http.StatusInternalServerError, pages.Error(pages.ErrorData{CorrelationID: correlationID}))
}

// render buffers the page so a failed render never leaves half a document.
// The page still renders after the request deadline has passed.
func (h *PageHandler) render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	var buf bytes.Buffer
	if err := c.Render(context.WithoutCancel(r.Context()), &buf); err != nil {
		h.logger.Error("rendering page", "error", err, "path", r.URL.Path)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	w.Write(buf.Bytes())
}

func noStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-cache, no-store")
	w.Header().Set("Pragma", "no-cache")
}
