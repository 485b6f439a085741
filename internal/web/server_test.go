package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nickoftime/keyvault-spo/internal/models"
	"github.com/nickoftime/keyvault-spo/internal/web/handlers"
	"github.com/nickoftime/keyvault-spo/internal/web/middleware"
	"github.com/nickoftime/keyvault-spo/pkg/config"
	"github.com/nickoftime/keyvault-spo/web/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLister struct {
	posts []models.Post
	err   error
}

func (s stubLister) ListPosts(context.Context) ([]models.Post, error) {
	return s.posts, s.err
}

type panicLister struct{}

func (panicLister) ListPosts(context.Context) ([]models.Post, error) {
	panic("unexpected")
}

type blockingLister struct{}

func (blockingLister) ListPosts(ctx context.Context) ([]models.Post, error) {
	<-ctx.Done()
	return nil, fmt.Errorf("querying list: %w", ctx.Err())
}

func newTestServer(t *testing.T, lister handlers.PostLister) *httptest.Server {
	return newTestServerWithTimeout(t, lister, 5*time.Second)
}

func newTestServerWithTimeout(t *testing.T, lister handlers.PostLister, timeout time.Duration) *httptest.Server {
	t.Helper()
	cfg := config.LoadWithDefaults()
	cfg.RequestTimeout = timeout

	checker := health.NewChecker("test", nil)
	checker.AddCheck("keyvault_identity", func(context.Context) error { return nil })

	srv := NewServer(cfg, lister, checker, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(body)
}

func TestRoutes(t *testing.T) {
	ts := newTestServer(t, stubLister{posts: []models.Post{{ID: 1, Title: "Build a bot"}}})

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/", http.StatusOK, "Build a bot"},
		{"/privacy", http.StatusOK, "Privacy Policy"},
		{"/error", http.StatusOK, "An error occurred"},
		{"/health", http.StatusOK, `"status":"healthy"`},
		{"/assets/site.css", http.StatusOK, ".line-through"},
		{"/nope", http.StatusNotFound, ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, body := get(t, ts.URL+tt.path)
			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			assert.Contains(t, body, tt.wantBody)
			assert.NotEmpty(t, resp.Header.Get(middleware.CorrelationIDHeader))
		})
	}
}

func TestIndexFailureShowsCorrelationID(t *testing.T) {
	ts := newTestServer(t, stubLister{err: errors.New("tenant contoso refused")})

	resp, body := get(t, ts.URL+"/")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	id := resp.Header.Get(middleware.CorrelationIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, body, id)
	assert.NotContains(t, body, "contoso")
}

func TestPanicRecovered(t *testing.T) {
	ts := newTestServer(t, panicLister{})

	resp, body := get(t, ts.URL+"/")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Contains(t, body, resp.Header.Get(middleware.CorrelationIDHeader))
}

func TestRequestDeadlineRendersErrorPage(t *testing.T) {
	ts := newTestServerWithTimeout(t, blockingLister{}, 50*time.Millisecond)

	resp, body := get(t, ts.URL+"/")

	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	id := resp.Header.Get(middleware.CorrelationIDHeader)
	require.NotEmpty(t, id)
	assert.Contains(t, body, id)
}
