package web

import (
	"context"
	"net/http"

	"github.com/JonMunkholm/roster/internal/core"
	"github.com/JonMunkholm/roster/internal/web/middleware"
)

// requestContext carries the resolved client address into the service so
// lookups record it in the access log.
func requestContext(r *http.Request) context.Context {
	return core.ContextWithClientIP(r.Context(), middleware.ClientIP(r))
}
