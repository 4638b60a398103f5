package sessions

import (
	"net/http"
)

const (
	// AccessCookieName carries the signed access token
	AccessCookieName = "__example_jt__"
	// RefreshCookieName carries the sealed refresh envelope, never the plaintext token
	RefreshCookieName = "__example_refresh__"
)

// Tokens is the cookie pair. Both values are set together and cleared together.
type Tokens struct {
	AccessToken  string
	RefreshToken string
}

// ReadTokens returns whatever cookie values the request carries. Missing cookies
// yield empty strings.
func ReadTokens(r *http.Request) Tokens {
	return Tokens{
		AccessToken:  cookieValue(r, AccessCookieName),
		RefreshToken: cookieValue(r, RefreshCookieName),
	}
}

// SetTokens writes both cookies. They are session cookies; token expiry is
// enforced by the tokens themselves.
func SetTokens(w http.ResponseWriter, tokens Tokens) {
	http.SetCookie(w, newCookie(AccessCookieName, tokens.AccessToken))
	http.SetCookie(w, newCookie(RefreshCookieName, tokens.RefreshToken))
}

// ClearTokens expires both cookies.
func ClearTokens(w http.ResponseWriter) {
	for _, name := range []string{AccessCookieName, RefreshCookieName} {
		cookie := newCookie(name, "")
		cookie.MaxAge = -1
		http.SetCookie(w, cookie)
	}
}

func newCookie(name, value string) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}
