package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestLimitBodyBytesAppliesImportOverride(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := io.ReadAll(r.Body); err != nil {
			if !IsBodyTooLarge(err) {
				t.Errorf("expected a max bytes error, got %v", err)
			}
			w.WriteHeader(http.StatusRequestEntityTooLarge)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	router := LimitBodyBytes(2, BodyLimit{PathPrefix: "/imports", MaxBytes: 10})(handler)

	tests := []struct {
		name   string
		path   string
		status int
	}{
		{name: "override on /api path", path: "/api/imports", status: http.StatusOK},
		{name: "override on bare path", path: "/imports", status: http.StatusOK},
		{name: "default elsewhere", path: "/api/health", status: http.StatusRequestEntityTooLarge},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, tc.path, strings.NewReader("12345"))
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rr.Code)
			}
		})
	}
}
