package controllers

import (
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/internal/flow"
	"github.com/solyse/club-flow/internal/scan"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

// FlowRestart wipes the session's flow state so the visitor can start over,
// typically after an unsupported-country handoff. The scan guard is reset
// alongside the cached state so a fresh pass may rescan the same tag.
func FlowRestart(svc flow.Service, scanSvc scan.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil || scanSvc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flow service unavailable"))
			return
		}

		session := middleware.SessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
			return
		}

		svc.Restart(r.Context(), session)
		scanSvc.Reset(session)
		responses.WriteSuccess(w, map[string]string{"status": "restarted"})
	}
}
