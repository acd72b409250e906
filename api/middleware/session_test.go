package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
)

func TestSessionEchoesExistingHeader(t *testing.T) {
	var seen string
	handler := Session(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-BC-Session", "sess-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen != "sess-1" {
		t.Fatalf("unexpected session %q", seen)
	}
	if got := rec.Header().Get("X-BC-Session"); got != "sess-1" {
		t.Fatalf("header not echoed, got %q", got)
	}
}

func TestSessionMintsWhenAbsent(t *testing.T) {
	var seen string
	handler := Session(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = SessionFromContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if seen == "" {
		t.Fatal("expected a minted session id")
	}
	if _, err := uuid.Parse(seen); err != nil {
		t.Fatalf("minted session is not a uuid: %v", err)
	}
	if rec.Header().Get("X-BC-Session") != seen {
		t.Fatal("minted session not echoed back")
	}
}
