// Package auth issues and checks HMAC-signed bearer tokens.
package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/diewo77/go-billdesk/httpx"
)

type ctxKey string

const (
	sessionCookieName = "session"
	claimsCtxKey      = ctxKey("claims")

	RoleAdmin = "admin"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
)

// Claims identify the caller of a request.
type Claims struct {
	UserID    string `json:"sub"`
	Role      string `json:"role"`
	ExpiresAt int64  `json:"exp"`
}

// UserVerifier is an optional callback to validate that a token's user still exists.
// Set it during app bootstrap via SetUserVerifier. If nil, no extra verification is performed.
type UserVerifier func(ctx context.Context, userID string) bool

var verifier UserVerifier

// SetUserVerifier configures the global verifier used by RequireAuth.
func SetUserVerifier(v UserVerifier) { verifier = v }

// Signer issues and parses tokens of the form payload.signature, both
// base64url encoded.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret string, ttl time.Duration) *Signer {
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

func (s *Signer) sign(payload string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(payload))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

// Issue returns a token for userID valid for the signer's TTL.
func (s *Signer) Issue(userID, role string) (string, time.Time, error) {
	exp := s.now().Add(s.ttl)
	raw, err := json.Marshal(Claims{UserID: userID, Role: role, ExpiresAt: exp.Unix()})
	if err != nil {
		return "", time.Time{}, errors.Wrap(err, "encode claims")
	}
	payload := base64.RawURLEncoding.EncodeToString(raw)
	return payload + "." + s.sign(payload), exp, nil
}

// Parse validates token and returns its claims.
func (s *Signer) Parse(token string) (Claims, error) {
	payload, sig, ok := strings.Cut(token, ".")
	if !ok || payload == "" || sig == "" {
		return Claims{}, ErrInvalidToken
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(payload))) {
		return Claims{}, ErrInvalidToken
	}
	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil {
		return Claims{}, ErrInvalidToken
	}
	var c Claims
	if err := json.Unmarshal(raw, &c); err != nil || c.UserID == "" {
		return Claims{}, ErrInvalidToken
	}
	if s.now().Unix() >= c.ExpiresAt {
		return Claims{}, ErrExpiredToken
	}
	return c, nil
}

// SetSessionCookie stores token in an HttpOnly cookie for browser clients.
func SetSessionCookie(w http.ResponseWriter, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Expires:  expires,
	})
}

// ClearSession deletes the session cookie.
func ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{Name: sessionCookieName, Value: "", Path: "/", Expires: time.Unix(0, 0), HttpOnly: true, SameSite: http.SameSiteLaxMode})
}

// TokenFromRequest reads a bearer token, falling back to the session cookie.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if c, err := r.Cookie(sessionCookieName); err == nil {
		return c.Value
	}
	return ""
}

// WithClaims stores claims in context.
func WithClaims(ctx context.Context, c Claims) context.Context {
	return context.WithValue(ctx, claimsCtxKey, c)
}

// ClaimsFromContext extracts claims.
func ClaimsFromContext(ctx context.Context) (Claims, bool) {
	c, ok := ctx.Value(claimsCtxKey).(Claims)
	return c, ok
}

// Middleware attaches claims to the request context when a valid token is present.
func Middleware(s *Signer) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tok := TokenFromRequest(r); tok != "" {
				if c, err := s.Parse(tok); err == nil {
					r = r.WithContext(WithClaims(r.Context(), c))
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth answers 401 unless the request carries valid claims for an existing user.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, ok := ClaimsFromContext(r.Context())
		if !ok {
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		if verifier != nil && !verifier(r.Context(), c.UserID) {
			// Token refers to a deleted user.
			ClearSession(w)
			httpx.JSONError(w, http.StatusUnauthorized, "unauthorized", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin answers 403 unless the caller has the admin role. It expects
// to run behind RequireAuth.
func RequireAdmin(next http.Handler) http.Handler {
	return RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, _ := ClaimsFromContext(r.Context())
		if c.Role != RoleAdmin {
			httpx.JSONError(w, http.StatusForbidden, "forbidden", nil)
			return
		}
		next.ServeHTTP(w, r)
	}))
}
