package scan

import (
	"context"
	"errors"

	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/track"
	"github.com/solyse/club-flow/internal/upstream"
	perrors "github.com/solyse/club-flow/pkg/errors"
	"github.com/solyse/club-flow/pkg/logger"
	"github.com/solyse/club-flow/pkg/metrics"
)

// Validator resolves a tag code to its owner.
type Validator interface {
	ValidateTag(ctx context.Context, session, code string) (*upstream.Customer, error)
}

// Result is the outcome of one scan attempt. Suppressed scans carry no
// owner and no error.
type Result struct {
	Code       string             `json:"code"`
	Type       CodeType           `json:"type"`
	Suppressed bool               `json:"suppressed"`
	Owner      *upstream.Customer `json:"owner,omitempty"`
}

// Service turns scanned URLs into validated tag owners, applying the
// duplicate-scan guard per session.
type Service interface {
	Scan(ctx context.Context, session, rawURL string) (*Result, error)
	Reset(session string)
}

type service struct {
	validator Validator
	guard     *Guard
	cache     *cache.Client
	logg      *logger.Logger
	flow      *metrics.FlowMetrics
	crumbs    *track.Recorder
}

func NewService(validator Validator, guard *Guard, cacheClient *cache.Client, logg *logger.Logger, flow *metrics.FlowMetrics, crumbs *track.Recorder) (Service, error) {
	if validator == nil {
		return nil, errors.New("validator is required")
	}
	if guard == nil {
		return nil, errors.New("guard is required")
	}
	if cacheClient == nil {
		return nil, errors.New("cache client is required")
	}
	if logg == nil {
		return nil, errors.New("logger is required")
	}
	return &service{
		validator: validator,
		guard:     guard,
		cache:     cacheClient,
		logg:      logg,
		flow:      flow,
		crumbs:    crumbs,
	}, nil
}

func (s *service) Scan(ctx context.Context, session, rawURL string) (*Result, error) {
	extracted, ok := ExtractCode(rawURL)
	if !ok {
		s.flow.IncScan("rejected")
		return nil, perrors.New(perrors.CodeValidation, "scanned code is not a recognized tag URL")
	}

	if !s.guard.Begin(session, extracted.Code) {
		s.flow.IncScan("suppressed")
		return &Result{Code: extracted.Code, Type: extracted.Type, Suppressed: true}, nil
	}

	owner, err := s.validator.ValidateTag(ctx, session, extracted.Code)
	if err != nil {
		s.guard.Finish(session, extracted.Code, false)
		s.flow.IncScan("failed")
		s.crumbs.Record(ctx, "scan_failed", session+":"+extracted.Code, map[string]any{"type": extracted.Type})
		return nil, err
	}
	s.guard.Finish(session, extracted.Code, true)

	s.cache.Set(ctx, session, cache.KeyScannerPage, extracted)
	s.flow.IncScan("accepted")
	s.crumbs.Record(ctx, "scan_accepted", session+":"+extracted.Code, map[string]any{"type": extracted.Type})
	return &Result{Code: extracted.Code, Type: extracted.Type, Owner: owner}, nil
}

// Reset forgets the session's duplicate-scan state, part of the start-over
// flow so an earlier suppression does not leak into the fresh pass.
func (s *service) Reset(session string) {
	s.guard.Reset(session)
}
