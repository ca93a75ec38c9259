package devapi

import (
	"net/http"
	"strings"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/internal/utils"
	"github.com/jrsteele09/go-school-admin/users"
)

// handleLogin handles POST /login
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req apimodel.LoginRequest
	if !decodeBody(r, &req) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	fields := apimodel.FieldErrors{}
	if req.Email == "" {
		fields["email"] = []string{"The email field is required."}
	}
	if req.Password == "" {
		fields["password"] = []string{"The password field is required."}
	}
	if len(fields) > 0 {
		s.metrics.logins.WithLabelValues("invalid").Inc()
		writeValidation(w, fields)
		return
	}

	user, err := s.users.GetByEmail(req.Email)
	if err != nil || !users.CheckPasswordHash(req.Password, user.PasswordHash) {
		s.metrics.logins.WithLabelValues("rejected").Inc()
		s.logger.Info().Str("email", req.Email).Msg("Login rejected")
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if user.Status == "inactive" {
		s.metrics.logins.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Account is inactive")
		return
	}

	accessToken, refreshToken, err := s.issueTokens(user)
	if err != nil {
		s.logger.Err(err).Str("email", req.Email).Msg("Failed to issue tokens")
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}

	s.metrics.logins.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, apimodel.LoginResponse{
		User:         user,
		AccessToken:  utils.Ptr(accessToken),
		RefreshToken: utils.Ptr(refreshToken),
	})
}

// handleRefresh handles POST /refresh. Refresh tokens are single use; each exchange returns a new pair.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	var req apimodel.RefreshRequest
	if !decodeBody(r, &req) || req.RefreshToken == "" {
		s.metrics.refreshes.WithLabelValues("invalid").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	userID, nextRefresh, err := s.refresh.Rotate(req.RefreshToken)
	if err != nil {
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		s.logger.Info().Err(err).Msg("Refresh rejected")
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	user, err := s.users.GetByID(users.ID(userID))
	if err != nil {
		s.refresh.Revoke(nextRefresh)
		s.metrics.refreshes.WithLabelValues("rejected").Inc()
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	accessToken, err := s.issuer.CreateAccessToken(user)
	if err != nil {
		s.logger.Err(err).Str("user_id", userID).Msg("Failed to issue access token")
		writeError(w, http.StatusInternalServerError, "Server Error")
		return
	}
	s.tokensLock.Lock()
	s.accessTokens[accessToken] = user.ID
	s.tokensLock.Unlock()

	s.metrics.refreshes.WithLabelValues("success").Inc()
	writeJSON(w, http.StatusOK, apimodel.TokenResponse{
		AccessToken:  utils.Ptr(accessToken),
		RefreshToken: utils.Ptr(nextRefresh),
	})
}
