package middleware

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRecoverWritesInternalEnvelope(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	handler := RequestID(Recover(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})))

	req := httptest.NewRequest(http.MethodGet, "/api/imports/fields", nil)
	req.Header.Set("X-Request-Id", "req-1")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, `"code":"INTERNAL"`) || !strings.Contains(body, `"requestId":"req-1"`) {
		t.Fatalf("unexpected body %s", body)
	}
}
