package middleware

import (
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const OrganizationHeader = "X-Organization-Id"

// RequireOrganization scopes the request to the organization named in the
// X-Organization-Id header. Session handling lives in front of this service.
func RequireOrganization(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimSpace(r.Header.Get(OrganizationHeader))
		if raw == "" {
			writeError(w, r, http.StatusBadRequest, "ORGANIZATION_REQUIRED", "X-Organization-Id header is required", nil)
			return
		}
		orgID, err := uuid.Parse(raw)
		if err != nil || orgID == uuid.Nil {
			writeError(w, r, http.StatusBadRequest, "ORGANIZATION_INVALID", "X-Organization-Id must be a UUID", map[string]string{"header": OrganizationHeader})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOrganizationID(r.Context(), orgID)))
	})
}
