package controllers

import (
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/internal/flow"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

// FlowRedirect hands the session off to the booking site. The marketing event
// it fires is best-effort and never delays the response past its timeout.
func FlowRedirect(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "flow service unavailable"))
			return
		}

		session := middleware.SessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
			return
		}

		result, err := svc.Redirect(r.Context(), session)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
