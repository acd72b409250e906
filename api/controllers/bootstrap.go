package controllers

import (
	"context"
	"net/http"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/api/responses"
	"github.com/solyse/club-flow/api/validators"
	"github.com/solyse/club-flow/internal/bootstrap"
	pkgerrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
)

// BootstrapService runs the initial data load for a session.
type BootstrapService interface {
	Load(ctx context.Context, session string, params bootstrap.Params) (*bootstrap.Result, error)
}

type bootstrapRequest struct {
	Mode        string `json:"mode" validate:"omitempty,oneof=login quote event"`
	Pickup      string `json:"pickup"`
	Destination string `json:"destination"`
	Event       string `json:"event"`
	Partner     string `json:"partner"`
}

// SessionBootstrap runs the orchestrated first load. The body carries the
// entry URL's query-string contract; an absent mode defaults to login.
func SessionBootstrap(svc BootstrapService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "bootstrap service unavailable"))
			return
		}

		session := middleware.SessionFromContext(r.Context())
		if session == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
			return
		}

		var req bootstrapRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Load(r.Context(), session, bootstrap.Params{
			Mode:        req.Mode,
			Pickup:      req.Pickup,
			Destination: req.Destination,
			Event:       req.Event,
			Partner:     req.Partner,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
