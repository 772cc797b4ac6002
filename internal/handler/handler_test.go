package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/penshort/shortkv/internal/handler/dto"
	"github.com/penshort/shortkv/internal/metrics"
	"github.com/penshort/shortkv/internal/service"
	"github.com/penshort/shortkv/internal/shortcode"
	"github.com/penshort/shortkv/internal/store"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestLinkService(t *testing.T, st store.Store, opts ...shortcode.Option) *service.LinkService {
	t.Helper()

	gen, err := shortcode.New(shortcode.ExistenceFunc(func(ctx context.Context, code string) (bool, error) {
		return store.Exists(ctx, st, code)
	}), shortcode.DefaultLength, opts...)
	if err != nil {
		t.Fatalf("shortcode.New: %v", err)
	}
	return service.NewLinkService(st, gen, "https://sho.rt", discardLogger(), metrics.NewNoop())
}

func decodeError(t *testing.T, body io.Reader) dto.ErrorResponse {
	t.Helper()
	var resp dto.ErrorResponse
	if err := json.NewDecoder(body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return resp
}

// brokenStore fails every operation.
type brokenStore struct{}

var errBackend = errors.New("backend unavailable")

func (brokenStore) Get(context.Context, string) ([]byte, error)              { return nil, errBackend }
func (brokenStore) Put(context.Context, string, []byte, time.Duration) error { return errBackend }
func (brokenStore) Delete(context.Context, string) error                     { return errBackend }
func (brokenStore) List(context.Context, string, int) (store.Page, error)    { return store.Page{}, errBackend }
func (brokenStore) Ping(context.Context) error                               { return errBackend }
func (brokenStore) Close() error                                             { return nil }

func TestHandler_Info(t *testing.T) {
	h := New("")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	h.Info(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}

	contentType := rec.Header().Get("Content-Type")
	if contentType != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", contentType)
	}

	var response dto.InfoResponse
	if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if response.Name != "shortkv" {
		t.Errorf("unexpected name: %s", response.Name)
	}
	if response.Version != Version {
		t.Errorf("unexpected version: %s", response.Version)
	}
	if _, ok := response.Endpoints["POST /"]; !ok {
		t.Errorf("endpoints missing POST /: %v", response.Endpoints)
	}
}

func TestHandler_NotFound(t *testing.T) {
	h := New("shortkv")

	req := httptest.NewRequest(http.MethodGet, "/nonexistent/path", nil)
	rec := httptest.NewRecorder()

	h.NotFound(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status 404, got %d", rec.Code)
	}

	resp := decodeError(t, rec.Body)
	if resp.Success || resp.Code != dto.CodeNotFound {
		t.Errorf("unexpected error response: %+v", resp)
	}
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	h := New("shortkv")

	req := httptest.NewRequest(http.MethodDelete, "/", nil)
	rec := httptest.NewRecorder()

	h.MethodNotAllowed(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rec.Code)
	}

	resp := decodeError(t, rec.Body)
	if resp.Code != dto.CodeMethodNotAllowed {
		t.Errorf("unexpected code: %s", resp.Code)
	}
}
