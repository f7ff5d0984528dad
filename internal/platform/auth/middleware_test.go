package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

const testSecret = "unit-test-secret"

func signToken(t *testing.T, claims identityClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	raw, err := token.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return raw
}

func TestVerifyExtractsIdentity(t *testing.T) {
	verifier, err := NewVerifier(testSecret, "idp.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw := signToken(t, identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "idp.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Email: "user@example.com",
		Name:  "Test User",
		Admin: true,
	})

	identity, err := verifier.Verify(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if identity.UserID != "user-1" || !identity.Admin || identity.Email != "user@example.com" {
		t.Fatalf("unexpected identity %#v", identity)
	}
}

func TestVerifyRejectsWrongIssuerAndMissingSubject(t *testing.T) {
	verifier, err := NewVerifier(testSecret, "idp.example")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wrongIssuer := signToken(t, identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-1",
			Issuer:    "other.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := verifier.Verify(wrongIssuer); err == nil {
		t.Fatal("expected issuer mismatch error")
	}

	noSubject := signToken(t, identityClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "idp.example",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	if _, err := verifier.Verify(noSubject); err == nil {
		t.Fatal("expected missing subject error")
	}
}

func TestMiddlewareRejectsMissingToken(t *testing.T) {
	verifier, err := NewVerifier(testSecret, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	handler := verifier.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/orders/mine", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireAdminBlocksNonAdmins(t *testing.T) {
	handler := RequireAdmin()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/orders/admin", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: "user-1"}))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodGet, "/orders/admin", nil)
	req = req.WithContext(WithIdentity(req.Context(), &Identity{UserID: "admin-1", Admin: true}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
}

func TestCanAccessOrder(t *testing.T) {
	owner := &Identity{UserID: "user-1"}
	admin := &Identity{UserID: "admin-1", Admin: true}
	stranger := &Identity{UserID: "user-2"}

	if !owner.CanAccessOrder("user-1") {
		t.Fatal("owner should access own order")
	}
	if !admin.CanAccessOrder("user-1") {
		t.Fatal("admin should access any order")
	}
	if stranger.CanAccessOrder("user-1") {
		t.Fatal("stranger should not access foreign order")
	}
}
