package controllers

import (
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/internal/bootstrap"
	"github.com/solyse/club-flow/internal/cache"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

// FlowOptions returns the persisted quote snapshot with its shipping options.
func FlowOptions(cacheClient *cache.Client, logg *logger.Logger) http.HandlerFunc {
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

		var record bootstrap.QuoteRecord
		if !cacheClient.Get(r.Context(), session, cache.KeyQuotes, &record) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "no quote in progress"))
			return
		}
		responses.WriteSuccess(w, record)
	}
}
