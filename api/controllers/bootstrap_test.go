package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solyse/club-flow/internal/bootstrap"
)

func TestSessionBootstrapPassesParams(t *testing.T) {
	var gotSession string
	var gotParams bootstrap.Params
	svc := &testBootstrapService{
		loadFn: func(_ context.Context, session string, params bootstrap.Params) (*bootstrap.Result, error) {
			gotSession = session
			gotParams = params
			return &bootstrap.Result{Mode: params.NormalizedMode(), InitialLoadComplete: true}, nil
		},
	}

	req := jsonRequest(t, http.MethodPost, "/api/v1/session/bootstrap", map[string]string{
		"mode":        "quote",
		"pickup":      "austin country club",
		"destination": "pebble beach",
	})
	rec := httptest.NewRecorder()
	SessionBootstrap(svc, testLogger())(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if gotSession != "sess-1" {
		t.Fatalf("unexpected session %q", gotSession)
	}
	if gotParams.Mode != "quote" || gotParams.Pickup != "austin country club" {
		t.Fatalf("params not forwarded: %+v", gotParams)
	}

	var result bootstrap.Result
	decodeData(t, rec.Body.Bytes(), &result)
	if result.Mode != "quote" || !result.InitialLoadComplete {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSessionBootstrapRejectsUnknownMode(t *testing.T) {
	req := jsonRequest(t, http.MethodPost, "/api/v1/session/bootstrap", map[string]string{"mode": "checkout"})
	rec := httptest.NewRecorder()
	SessionBootstrap(&testBootstrapService{}, testLogger())(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestSessionBootstrapRequiresSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/session/bootstrap", nil)
	rec := httptest.NewRecorder()
	SessionBootstrap(&testBootstrapService{}, testLogger())(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
