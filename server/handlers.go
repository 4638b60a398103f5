package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-session-server/gatekeeper"
	"github.com/rs/zerolog/log"
)

// IndexHandler returns the identity the gatekeeper verified for this request
func (s *Server) IndexHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		identity, ok := gatekeeper.IdentityFromContext(r.Context())
		if !ok {
			// Only reachable if the route was registered without the gatekeeper
			http.Redirect(w, r, s.gatekeeper.LoginPath(), http.StatusSeeOther)
			return
		}
		writeJSON(w, http.StatusOK, identity)
	}
}

// LoginPageHandler is the redirect target for rejected sessions. Rendering a
// login form is left to the front end.
func (s *Server) LoginPageHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(s.config.GetAppName() + ": sign in with POST " + RouteAPIAuthLogin + "\n"))
	}
}

func (s *Server) HealthHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Err(err).Msg("failed to encode response")
	}
}

func writeJSONMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"message": message})
}
