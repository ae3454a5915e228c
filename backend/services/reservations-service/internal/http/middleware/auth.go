package middleware

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Caller roles understood by the reservations API.
const (
	RoleOwner    = "owner"
	RoleOperator = "operator"
)

type contextKey string

const callerKey contextKey = "caller"

// Caller is the authenticated identity behind a request.
type Caller struct {
	ID   string
	Role string
}

// Authenticate validates bearer tokens issued by the auth service and stores the
// caller in the request context.
func Authenticate(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeUnauthorized(w, "missing authorization header")
				return
			}
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				writeUnauthorized(w, "invalid authorization header")
				return
			}

			claims := jwt.MapClaims{}
			token, err := jwt.ParseWithClaims(strings.TrimSpace(parts[1]), claims, func(token *jwt.Token) (interface{}, error) {
				if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrTokenSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				writeUnauthorized(w, "invalid token")
				return
			}

			caller, err := callerFromClaims(claims)
			if err != nil {
				writeUnauthorized(w, err.Error())
				return
			}
			next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
		})
	}
}

// RequireRole rejects callers whose role differs from role.
func RequireRole(role string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		caller, ok := CallerFromContext(r.Context())
		if !ok {
			writeUnauthorized(w, "unauthorized")
			return
		}
		if caller.Role != role {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":"forbidden"}`))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// callerFromClaims reads the identity from "sub", falling back to the numeric
// "user_id" claim older tokens carry.
func callerFromClaims(claims jwt.MapClaims) (Caller, error) {
	var caller Caller
	if sub, err := claims.GetSubject(); err == nil {
		caller.ID = strings.TrimSpace(sub)
	}
	if caller.ID == "" {
		switch v := claims["user_id"].(type) {
		case float64:
			caller.ID = strconv.FormatInt(int64(v), 10)
		case string:
			caller.ID = strings.TrimSpace(v)
		}
	}
	if caller.ID == "" {
		return Caller{}, errors.New("caller id not found")
	}
	role, _ := claims["role"].(string)
	caller.Role = strings.ToLower(strings.TrimSpace(role))
	if caller.Role == "" {
		return Caller{}, errors.New("caller role not found")
	}
	return caller, nil
}

// WithCaller stores caller in ctx.
func WithCaller(ctx context.Context, caller Caller) context.Context {
	return context.WithValue(ctx, callerKey, caller)
}

// CallerFromContext retrieves the caller from request context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	caller, ok := ctx.Value(callerKey).(Caller)
	return caller, ok
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":` + strconv.Quote(message) + `}`))
}
