package auth

import (
	"net/http"
	"strings"
	"time"
)

const (
	AccessCookieName  = "bo_access"
	RefreshCookieName = "bo_refresh"
)

type CookieConfig struct {
	Domain string
	Secure bool
}

func (c CookieConfig) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.Domain,
		HttpOnly: true,
		Secure:   c.Secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}

func SetAuthCookies(w http.ResponseWriter, cfg CookieConfig, tokens *AuthTokens, accessTTL, refreshTTL time.Duration) {
	http.SetCookie(w, cfg.cookie(AccessCookieName, tokens.AccessToken, int(accessTTL.Seconds())))
	http.SetCookie(w, cfg.cookie(RefreshCookieName, tokens.RefreshToken, int(refreshTTL.Seconds())))
}

func ClearAuthCookies(w http.ResponseWriter, cfg CookieConfig) {
	http.SetCookie(w, cfg.cookie(AccessCookieName, "", -1))
	http.SetCookie(w, cfg.cookie(RefreshCookieName, "", -1))
}

// AccessToken pulls the access token from the session cookie, falling back to
// an Authorization bearer header when allowBearer is set.
func AccessToken(r *http.Request, allowBearer bool) string {
	if cookie, err := r.Cookie(AccessCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if !allowBearer {
		return ""
	}
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}
