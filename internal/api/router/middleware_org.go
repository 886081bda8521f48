package router

import (
	"net/http"
	"strings"

	"github.com/voxdesk/scheduling/internal/tenancy"
)

const orgHeader = "X-Org-Id"

// resolveOrgID copies the tenant header into the request context. The header
// is optional here: invocations may carry the org id in the body instead, so
// enforcement happens at the tool handler.
func resolveOrgID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if orgID := strings.TrimSpace(r.Header.Get(orgHeader)); orgID != "" {
			r = r.WithContext(tenancy.WithOrgID(r.Context(), orgID))
		}
		next.ServeHTTP(w, r)
	})
}
