package request

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// chiRoute returns the matched route pattern so metrics are not keyed by raw
// ids.
func chiRoute(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
