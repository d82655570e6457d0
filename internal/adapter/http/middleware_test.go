package http

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/agentgraph/internal/domain"
)

func TestResponseWriterRecordsStatus(t *testing.T) {
	inner := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: inner, status: http.StatusOK}
	rw.WriteHeader(http.StatusTeapot)
	if rw.status != http.StatusTeapot || inner.Code != http.StatusTeapot {
		t.Fatalf("status = %d / %d", rw.status, inner.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	called := false
	h := CORS("http://localhost:3000")(http.HandlerFunc(func(http.ResponseWriter, *http.Request) { called = true }))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/api/v1/projects", nil))
	if w.Code != http.StatusNoContent || called {
		t.Fatalf("preflight: status %d, next called %v", w.Code, called)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("allow origin = %q", got)
	}
}

func TestWriteDomainError(t *testing.T) {
	tests := []struct {
		err  error
		want int
		body string
	}{
		{fmt.Errorf("get: %w", domain.ErrNotFound), http.StatusNotFound, `"error":"gone"`},
		{fmt.Errorf("%w: name is required", domain.ErrValidation), http.StatusBadRequest, `"error":"name is required"`},
		{fmt.Errorf("create project p1: %w: bad props", domain.ErrValidation), http.StatusBadRequest, `"error":"bad props"`},
		{fmt.Errorf("delete: %w", domain.ErrResourcesExist), http.StatusConflict, domain.ErrResourcesExist.Error()},
		{domain.ErrConflict, http.StatusConflict, "already exists"},
		{errors.New("connection reset"), http.StatusInternalServerError, `"retryable":true`},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			writeDomainError(w, tt.err, "gone")
			if w.Code != tt.want {
				t.Fatalf("status = %d, want %d", w.Code, tt.want)
			}
			if !strings.Contains(w.Body.String(), tt.body) {
				t.Errorf("body %s does not contain %s", w.Body, tt.body)
			}
		})
	}
}
