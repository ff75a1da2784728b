package middleware

import (
	"errors"
	"net/http"
	"strings"
)

// BodyLimit raises the request body ceiling for paths under PathPrefix.
// Prefixes are matched with and without the /api mount point.
type BodyLimit struct {
	PathPrefix string
	MaxBytes   int64
}

func LimitBodyBytes(defaultMax int64, overrides ...BodyLimit) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if maxBytes := bodyLimitFor(r.URL.Path, defaultMax, overrides); maxBytes > 0 {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bodyLimitFor(path string, defaultMax int64, overrides []BodyLimit) int64 {
	apiPath := strings.TrimPrefix(path, "/api")
	for _, o := range overrides {
		if o.PathPrefix == "" || o.MaxBytes <= 0 {
			continue
		}
		if strings.HasPrefix(path, o.PathPrefix) || strings.HasPrefix(apiPath, o.PathPrefix) {
			return o.MaxBytes
		}
	}
	return defaultMax
}

// IsBodyTooLarge reports whether err came from a body cut off by LimitBodyBytes.
func IsBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}
