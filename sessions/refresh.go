package sessions

// RefreshRequest is the body of POST /api/auth/refresh.
type RefreshRequest struct {
	// Refresh is the sealed refresh envelope taken from the refresh cookie.
	// Format: hex(nonce):hex(ciphertext):hex(tag)
	Refresh string `json:"refresh"`
}

// RefreshResponse is returned by a successful refresh exchange.
type RefreshResponse struct {
	// AccessToken is a newly signed access token for the same identity.
	AccessToken string `json:"access_token"`

	// RefreshToken is the rotated, sealed refresh envelope. The presented
	// envelope is superseded by it.
	// Lifespan: short, see ROTATED_REFRESH_EXPIRATION
	RefreshToken string `json:"refresh_token"`
}

// Tokens returns the response as a cookie pair
func (r RefreshResponse) Tokens() Tokens {
	return Tokens{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
	}
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// MessageResponse is the generic JSON reply of the auth endpoints.
type MessageResponse struct {
	Message string `json:"message"`
}
