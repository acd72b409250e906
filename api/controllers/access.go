package controllers

import (
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/api/validators"
	"github.com/solyse/club-flow/internal/flow"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

type accessRequest struct {
	Channel string `json:"channel" validate:"required,oneof=email phone"`
	Contact string `json:"contact" validate:"required"`
}

// FlowAccess looks up the contact and sends a one-time code. An unknown
// contact still receives a code so registration can proceed.
func FlowAccess(svc flow.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req accessRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Access(r.Context(), session, flow.AccessRequest{
			Channel: req.Channel,
			Contact: req.Contact,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
