package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func protectedHandler(t *testing.T, wantActor int64) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actorID, ok := GetActorIDFromContext(r.Context())
		if !ok {
			t.Fatalf("actor id missing from context")
		}
		if actorID != wantActor {
			t.Fatalf("actor id = %d, want %d", actorID, wantActor)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestActorMiddleware_ValidToken(t *testing.T) {
	auth := NewActorMiddleware("test-secret")
	handler := auth.Middleware(protectedHandler(t, 7))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+auth.Token(7))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestActorMiddleware_MissingHeader(t *testing.T) {
	auth := NewActorMiddleware("test-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be reached without a token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestActorMiddleware_TamperedToken(t *testing.T) {
	auth := NewActorMiddleware("test-secret")
	other := NewActorMiddleware("other-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be reached with a forged token")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+other.Token(7))
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestActorMiddleware_MalformedToken(t *testing.T) {
	auth := NewActorMiddleware("test-secret")
	handler := auth.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler must not be reached with a malformed token")
	}))

	for _, token := range []string{"no-dot", "abc.def", "0.sig", "-5.sig"} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("token %q: status = %d, want 401", token, rec.Code)
		}
	}
}

func TestParseToken_RoundTrip(t *testing.T) {
	auth := NewActorMiddleware("test-secret")

	id, ok := auth.parseToken(auth.Token(42))
	if !ok {
		t.Fatalf("expected token to verify")
	}
	if id != 42 {
		t.Fatalf("id = %d, want 42", id)
	}
}
