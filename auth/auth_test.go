package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSignerRoundTrip(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	tok, exp, err := s.Issue("u-1", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), exp, time.Minute)

	c, err := s.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, RoleAdmin, c.Role)
}

func TestSignerRejects(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	tok, _, err := s.Issue("u-1", "staff")
	require.NoError(t, err)

	_, err = NewSigner("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)

	for _, bad := range []string{"", "abc", "abc.", tok + "x"} {
		_, err = s.Parse(bad)
		assert.ErrorIs(t, err, ErrInvalidToken, bad)
	}

	expired := NewSigner("secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = expired.Parse(tok)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestTokenFromRequest(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Empty(t, TokenFromRequest(r))

	r.AddCookie(&http.Cookie{Name: sessionCookieName, Value: "from-cookie"})
	assert.Equal(t, "from-cookie", TokenFromRequest(r))

	r.Header.Set("Authorization", "Bearer abc.def")
	assert.Equal(t, "abc.def", TokenFromRequest(r))

	r.Header.Set("Authorization", "Basic xyz")
	assert.Empty(t, TokenFromRequest(r))
}

func TestGuards(t *testing.T) {
	s := NewSigner("secret", time.Hour)
	admin, _, _ := s.Issue("u-admin", RoleAdmin)
	staff, _, _ := s.Issue("u-staff", "staff")
	gone, _, _ := s.Issue("u-gone", "staff")

	SetUserVerifier(func(_ context.Context, id string) bool { return id != "u-gone" })
	t.Cleanup(func() { SetUserVerifier(nil) })

	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	authed := Middleware(s)(RequireAuth(ok))
	adminOnly := Middleware(s)(RequireAdmin(ok))

	tests := []struct {
		name    string
		handler http.Handler
		token   string
		want    int
	}{
		{"anonymous", authed, "", http.StatusUnauthorized},
		{"garbage", authed, "nope", http.StatusUnauthorized},
		{"staff", authed, staff, http.StatusNoContent},
		{"deleted user", authed, gone, http.StatusUnauthorized},
		{"staff on admin route", adminOnly, staff, http.StatusForbidden},
		{"admin", adminOnly, admin, http.StatusNoContent},
		{"anonymous on admin route", adminOnly, "", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.token != "" {
				r.Header.Set("Authorization", "Bearer "+tt.token)
			}
			w := httptest.NewRecorder()
			tt.handler.ServeHTTP(w, r)
			assert.Equal(t, tt.want, w.Code)
		})
	}
}
