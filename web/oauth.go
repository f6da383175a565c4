// ABOUTME: OAuth connect flow handlers
// ABOUTME: Issues single-use state nonces, redirects to Google consent, and stores the returned credential
package web

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/harperreed/studypilot/sync"
)

// handleOAuthConnect starts the consent flow for the user named by X-User-ID or ?user_id.
func (s *Server) handleOAuthConnect(w http.ResponseWriter, r *http.Request) {
	if !s.app.Config.OAuthConfigured() {
		writeJSON(w, http.StatusServiceUnavailable, errorEnvelope{Error: ErrorResponse{
			Code:    "OAUTH_NOT_CONFIGURED",
			Message: "Google OAuth client credentials are not configured",
		}})
		return
	}

	user := r.Header.Get(UserHeader)
	if user == "" {
		user = r.URL.Query().Get("user_id")
	}
	if user == "" {
		writeError(w, r, fmt.Errorf("%w: user_id is required", errInvalidInput))
		return
	}

	state := sync.NewState()
	if err := s.app.Users.CreateOAuthState(r.Context(), state, user); err != nil {
		writeError(w, r, err)
		return
	}

	http.Redirect(w, r, sync.AuthURL(s.app.OAuth, state), http.StatusFound)
}

// handleOAuthCallback exchanges the authorization code and stores the credential.
func (s *Server) handleOAuthCallback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		writeError(w, r, fmt.Errorf("%w: authorization denied: %s", errInvalidInput, e))
		return
	}

	code := q.Get("code")
	if code == "" {
		writeError(w, r, fmt.Errorf("%w: no authorization code received", errInvalidInput))
		return
	}

	user, err := s.app.Users.ConsumeOAuthState(r.Context(), q.Get("state"), oauthStateMaxAge)
	if err != nil {
		writeError(w, r, err)
		return
	}

	token, err := s.app.OAuth.Exchange(r.Context(), code)
	if err != nil {
		s.logger.WarnContext(r.Context(), "oauth code exchange failed",
			slog.String("user_id", user),
			slog.String("error", err.Error()),
		)
		writeJSON(w, http.StatusBadGateway, errorEnvelope{Error: ErrorResponse{
			Code:    "EXCHANGE_FAILED",
			Message: "Google rejected the authorization code; start the connection again",
		}})
		return
	}

	if err := s.app.Credentials.Connect(r.Context(), user, token); err != nil {
		writeError(w, r, err)
		return
	}

	s.logger.InfoContext(r.Context(), "calendar connected", slog.String("user_id", user))
	writeJSON(w, http.StatusOK, map[string]any{
		"connected": true,
		"user_id":   user,
	})
}
