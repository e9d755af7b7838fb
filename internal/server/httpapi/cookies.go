package httpapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/accounthub/internal/common"
)

func newCookie(name, value string, ttl time.Duration) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteNoneMode,
	}
}

func (s *Server) setAuthCookies(w http.ResponseWriter, access, refresh string) {
	http.SetCookie(w, newCookie(common.AccessTokenCookieName, access, s.accessTTL))
	http.SetCookie(w, newCookie(common.RefreshTokenCookieName, refresh, s.refreshTTL))
}

func clearAuthCookies(w http.ResponseWriter) {
	for _, name := range []string{common.AccessTokenCookieName, common.RefreshTokenCookieName} {
		c := newCookie(name, "", 0)
		c.MaxAge = -1
		http.SetCookie(w, c)
	}
}

// accessToken returns the access token from the cookie, falling back to an
// "Authorization: Bearer" header.
func accessToken(r *http.Request) string {
	if c, err := r.Cookie(common.AccessTokenCookieName); err == nil && c.Value != "" {
		return c.Value
	}

	h := r.Header.Get(common.AuthorizationHeaderName)
	if len(h) > len(common.BearerPrefix) && strings.EqualFold(h[:len(common.BearerPrefix)], common.BearerPrefix) {
		return strings.TrimSpace(h[len(common.BearerPrefix):])
	}
	return ""
}
