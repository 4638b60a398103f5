package server

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/jrsteele09/go-session-server/internal/errors"
	"github.com/jrsteele09/go-session-server/sessions"
	"github.com/rs/zerolog/log"
)

const maxBodyBytes = 1 << 16

// LoginHandler checks credentials and sets the cookie pair
func (s *Server) LoginHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessions.LoginRequest
		if err := decodeJSON(w, r, &req); err != nil || req.Email == "" || req.Password == "" {
			writeJSONMessage(w, http.StatusBadRequest, "Email and password are required")
			return
		}

		pair, err := s.auth.Login(r.Context(), req.Email, req.Password)
		if err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidCredentials) {
				writeJSONMessage(w, http.StatusUnauthorized, "Email or password incorrect")
				return
			}
			log.Err(err).Msg("login failed")
			writeJSONMessage(w, http.StatusInternalServerError, "Unable to sign in")
			return
		}

		sessions.SetTokens(w, sessions.Tokens{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken})
		writeJSON(w, http.StatusOK, sessions.MessageResponse{Message: "Log in successful"})
	}
}

// RefreshHandler exchanges {"refresh": envelope} for a new access token and a
// rotated refresh envelope. The cookie pair is set on success as well.
func (s *Server) RefreshHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sessions.RefreshRequest
		if err := decodeJSON(w, r, &req); err != nil || req.Refresh == "" {
			s.metrics.Refresh("bad_request")
			writeJSONMessage(w, http.StatusBadRequest, "Refresh token is required")
			return
		}

		pair, err := s.verifier.RefreshSession(r.Context(), req.Refresh)
		if err != nil {
			s.metrics.Refresh(refreshResult(err))
			if apperrors.IsGatekeepingFailure(err) {
				log.Debug().Err(err).Msg("refresh rejected")
				writeJSONMessage(w, http.StatusUnauthorized, "Refresh token rejected")
				return
			}
			log.Err(err).Msg("refresh failed")
			writeJSONMessage(w, http.StatusInternalServerError, "Unable to refresh session")
			return
		}
		s.metrics.Refresh("rotated")

		resp := sessions.RefreshResponse{AccessToken: pair.AccessToken, RefreshToken: pair.RefreshToken}
		sessions.SetTokens(w, resp.Tokens())
		writeJSON(w, http.StatusOK, resp)
	}
}

// LogoutHandler clears the cookie pair and forgets the session server-side when
// a rotation registry is configured.
func (s *Server) LogoutHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tokens := sessions.ReadTokens(r)
		if err := s.auth.Logout(r.Context(), tokens.RefreshToken); err != nil {
			log.Err(err).Msg("logout could not revoke session")
		}
		sessions.ClearTokens(w)
		writeJSON(w, http.StatusOK, sessions.MessageResponse{Message: "Log out successful"})
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(v)
}

func refreshResult(err error) string {
	switch {
	case apperrors.Is(err, apperrors.ErrMalformedEnvelope):
		return "malformed"
	case apperrors.Is(err, apperrors.ErrAuthenticationFailed):
		return "tampered"
	case apperrors.Is(err, apperrors.ErrTokenExpired):
		return "expired"
	case apperrors.Is(err, apperrors.ErrInvalidSignature):
		return "invalid_signature"
	case apperrors.Is(err, apperrors.ErrRefreshTokenReused):
		return "reused"
	case apperrors.Is(err, apperrors.ErrSessionRevoked):
		return "revoked"
	default:
		return "error"
	}
}
