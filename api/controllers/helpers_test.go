package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/solyse/club-flow/api/middleware"
	"github.com/solyse/club-flow/internal/bootstrap"
	"github.com/solyse/club-flow/internal/cache"
	"github.com/solyse/club-flow/internal/flow"
	"github.com/solyse/club-flow/internal/scan"
	"github.com/solyse/club-flow/pkg/logger"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testCache(t *testing.T) *cache.Client {
	t.Helper()
	client, err := cache.NewClient(cache.NewMemoryStore(), "test", testLogger(), nil)
	if err != nil {
		t.Fatalf("building cache client: %v", err)
	}
	return client
}

func jsonRequest(t *testing.T, method, target string, body any) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.WithSession(req.Context(), "sess-1"))
}

func decodeData(t *testing.T, body []byte, dest any) {
	t.Helper()
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		t.Fatalf("unmarshal envelope: %v", err)
	}
	if err := json.Unmarshal(envelope.Data, dest); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
}

type testBootstrapService struct {
	loadFn func(ctx context.Context, session string, params bootstrap.Params) (*bootstrap.Result, error)
}

func (s *testBootstrapService) Load(ctx context.Context, session string, params bootstrap.Params) (*bootstrap.Result, error) {
	if s.loadFn != nil {
		return s.loadFn(ctx, session, params)
	}
	return &bootstrap.Result{Mode: params.NormalizedMode()}, nil
}

type testFlowService struct {
	accessFn   func(ctx context.Context, session string, req flow.AccessRequest) (*flow.AccessResult, error)
	verifyFn   func(ctx context.Context, session string, req flow.VerifyRequest) (*flow.VerifyResult, error)
	registerFn func(ctx context.Context, session string, req flow.RegisterRequest) (*flow.RegisterResult, error)
	redirectFn func(ctx context.Context, session string) (*flow.RedirectResult, error)
	restarted  int
}

func (s *testFlowService) Access(ctx context.Context, session string, req flow.AccessRequest) (*flow.AccessResult, error) {
	if s.accessFn != nil {
		return s.accessFn(ctx, session, req)
	}
	return &flow.AccessResult{}, nil
}

func (s *testFlowService) Verify(ctx context.Context, session string, req flow.VerifyRequest) (*flow.VerifyResult, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, session, req)
	}
	return &flow.VerifyResult{Verified: true}, nil
}

func (s *testFlowService) Register(ctx context.Context, session string, req flow.RegisterRequest) (*flow.RegisterResult, error) {
	if s.registerFn != nil {
		return s.registerFn(ctx, session, req)
	}
	return &flow.RegisterResult{}, nil
}

func (s *testFlowService) Redirect(ctx context.Context, session string) (*flow.RedirectResult, error) {
	if s.redirectFn != nil {
		return s.redirectFn(ctx, session)
	}
	return &flow.RedirectResult{URL: "https://bagcaddie.com/club/?BC123"}, nil
}

func (s *testFlowService) Restart(ctx context.Context, session string) {
	s.restarted++
}

type testScanService struct {
	scanFn func(ctx context.Context, session, rawURL string) (*scan.Result, error)
	resets int
}

func (s *testScanService) Scan(ctx context.Context, session, rawURL string) (*scan.Result, error) {
	if s.scanFn != nil {
		return s.scanFn(ctx, session, rawURL)
	}
	return &scan.Result{Code: "ABCD1234", Type: scan.TypeItem}, nil
}

func (s *testScanService) Reset(string) {
	s.resets++
}
