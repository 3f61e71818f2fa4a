// Package auth validates HS256 bearer tokens and places the verified
// claims on the request context.
package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type contextKey string

const claimsKey contextKey = "authClaims"

// DevToken is a development shortcut accepted in place of a signed
// token. It maps to the fixed subject "dev-user".
const DevToken = "devtoken"

// ErrNoClaims is returned when a handler asks for claims on a request
// that never went through the middleware.
var ErrNoClaims = errors.New("no auth claims in context")

// Claims are the verified token claims handlers care about.
type Claims struct {
	Subject string
}

// Verifier checks bearer tokens against one signing key.
type Verifier struct {
	secret   []byte
	audience string
	issuer   string
}

// NewVerifier builds a token verifier for the given HS256 secret.
func NewVerifier(secret, audience, issuer string) *Verifier {
	return &Verifier{secret: []byte(secret), audience: audience, issuer: issuer}
}

// GenerateToken signs a short-lived token for the given subject. Used
// by tooling and tests; the service itself does not issue tokens.
func (v *Verifier) GenerateToken(subject string, ttl time.Duration) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		Audience:  jwt.ClaimStrings{v.audience},
		Issuer:    v.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	})
	return token.SignedString(v.secret)
}

func (v *Verifier) verify(tokenString string) (*Claims, error) {
	if tokenString == DevToken {
		return &Claims{Subject: "dev-user"}, nil
	}

	parsed, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{},
		func(t *jwt.Token) (any, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return v.secret, nil
		},
		jwt.WithAudience(v.audience),
		jwt.WithIssuer(v.issuer),
	)
	if err != nil {
		return nil, err
	}

	reg, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || reg.Subject == "" {
		return nil, errors.New("token missing subject")
	}
	return &Claims{Subject: reg.Subject}, nil
}

// Middleware authenticates every request except GET /healthz.
func (v *Verifier) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}

		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			http.Error(w, `{"detail":"missing bearer token"}`, http.StatusUnauthorized)
			return
		}

		claims, err := v.verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			http.Error(w, `{"detail":"invalid token"}`, http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClaimsFromContext returns the claims the middleware stored.
func GetClaimsFromContext(ctx context.Context) (*Claims, error) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	if !ok {
		return nil, ErrNoClaims
	}
	return claims, nil
}
