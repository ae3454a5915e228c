package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "access-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return token
}

func TestAuthenticate(t *testing.T) {
	exp := time.Now().Add(time.Hour).Unix()
	cases := []struct {
		name   string
		header string
		status int
		caller Caller
	}{
		{"missing header", "", http.StatusUnauthorized, Caller{}},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, Caller{}},
		{"garbage token", "Bearer nope", http.StatusUnauthorized, Caller{}},
		{
			"foreign secret",
			"Bearer " + signToken(t, "other", jwt.MapClaims{"sub": "owner-a", "role": "owner", "exp": exp}),
			http.StatusUnauthorized, Caller{},
		},
		{
			"expired",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "owner-a", "role": "owner", "exp": time.Now().Add(-time.Minute).Unix()}),
			http.StatusUnauthorized, Caller{},
		},
		{
			"missing role",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "owner-a", "exp": exp}),
			http.StatusUnauthorized, Caller{},
		},
		{
			"subject",
			"Bearer " + signToken(t, testSecret, jwt.MapClaims{"sub": "owner-a", "role": "Owner", "exp": exp}),
			http.StatusOK, Caller{ID: "owner-a", Role: RoleOwner},
		},
		{
			"numeric user id",
			"bearer " + signToken(t, testSecret, jwt.MapClaims{"user_id": 42, "role": "operator", "exp": exp}),
			http.StatusOK, Caller{ID: "42", Role: RoleOperator},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var got Caller
			handler := Authenticate(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got, _ = CallerFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/api/reservations/upcoming", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			if got != tc.caller {
				t.Fatalf("expected caller %+v, got %+v", tc.caller, got)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleOperator, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	cases := []struct {
		name   string
		caller *Caller
		status int
	}{
		{"anonymous", nil, http.StatusUnauthorized},
		{"owner", &Caller{ID: "owner-a", Role: RoleOwner}, http.StatusForbidden},
		{"operator", &Caller{ID: "op-1", Role: RoleOperator}, http.StatusNoContent},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/operator/reservations/verify", nil)
			if tc.caller != nil {
				req = req.WithContext(WithCaller(req.Context(), *tc.caller))
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
		})
	}
}
