package controllers

import (
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/enrich"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

// FlowItems returns the session's enriched items. An empty session simply has
// no items yet; that is not an error.
func FlowItems(cacheClient *cache.Client, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cacheClient == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "cache unavailable"))
			return
		}

		session := middleware.SessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
			return
		}

		items := []enrich.EnrichedItem{}
		cacheClient.Get(r.Context(), session, cache.KeyEnrichedItems, &items)
		responses.WriteSuccess(w, map[string]any{"items": items})
	}
}
