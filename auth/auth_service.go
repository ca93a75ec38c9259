package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/internal/utils"
	"github.com/jrsteele09/go-school-admin/sessions"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Sender is the part of gateway.Gateway the service uses.
type Sender interface {
	Send(ctx context.Context, method, path string, payload any, opts ...gateway.CallOption) (*gateway.Response, error)
}

// SessionStore is the part of sessions.Store the service uses.
type SessionStore interface {
	Current() sessions.Session
	Login(user *users.User, accessToken, refreshToken string) error
	Logout()
}

// Service logs users in and out of the school API.
type Service struct {
	api       Sender
	store     SessionStore
	validator *Validator
	logger    zerolog.Logger
}

// ServiceOption defines a function type to modify the Service instance.
type ServiceOption func(*Service)

func WithLogger(l zerolog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = l
	}
}

func NewService(api Sender, store SessionStore, opts ...ServiceOption) *Service {
	s := &Service{
		api:       api,
		store:     store,
		validator: NewValidator(),
		logger:    log.Logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Login exchanges email and password for a session. The call is sent without credentials, so
// a rejected password never triggers a token refresh. A rejection is a *CredentialsError.
func (s *Service) Login(ctx context.Context, email, password string) (*users.User, error) {
	email = strings.TrimSpace(email)
	if err := s.validator.ValidateUserCredentials(email, password); err != nil {
		return nil, fmt.Errorf("[Auth Login] %s: %w", err.Error(), errors.ErrInvalidCredentials)
	}

	req := apimodel.LoginRequest{Email: email, Password: password}
	resp, err := s.api.Send(ctx, http.MethodPost, apimodel.RouteLogin, req, gateway.Anonymous())
	if err != nil {
		if apiErr, ok := gateway.AsAPIError(err); ok && isCredentialsRejection(apiErr.StatusCode) {
			s.logger.Info().Str("email", email).Int("status", apiErr.StatusCode).Msg("Login rejected")
			return nil, newCredentialsError(apiErr)
		}
		s.logger.Err(err).Str("email", email).Msg("Login request failed")
		return nil, fmt.Errorf("[Auth Login] %w", err)
	}

	var loginResp apimodel.LoginResponse
	if err := resp.Decode(&loginResp); err != nil {
		return nil, fmt.Errorf("[Auth Login] %w", err)
	}
	if err := loginResp.Validate(); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "[Auth Login] %s", err.Error())
	}
	if err := s.validator.ValidateAccessToken(utils.Value(loginResp.AccessToken)); err != nil {
		return nil, errors.Wrapf(errors.ErrMalformedResponse, "[Auth Login] %s", err.Error())
	}

	user := loginResp.User
	if user.Email == "" {
		user.Email = email
	}
	if err := s.store.Login(user, utils.Value(loginResp.AccessToken), utils.Value(loginResp.RefreshToken)); err != nil {
		return nil, fmt.Errorf("[Auth Login] %w", err)
	}
	return user.Clone(), nil
}

// Logout ends the local session. The API keeps no server-side session to revoke.
func (s *Service) Logout() {
	s.store.Logout()
}

// CurrentUser returns the logged in user or errors.ErrNoSession.
func (s *Service) CurrentUser() (*users.User, error) {
	session := s.store.Current()
	if !session.IsAuthenticated() {
		return nil, errors.ErrNoSession
	}
	if err := s.validator.ValidateUserState(session.User); err != nil {
		return nil, errors.Wrapf(errors.ErrInvalidSession, "[Auth CurrentUser] %s", err.Error())
	}
	return session.User, nil
}

// Menu returns the navigation entries for the logged in user's role.
func (s *Service) Menu() []users.MenuItem {
	return users.MenuFor(s.store.Current().Role())
}

func isCredentialsRejection(status int) bool {
	return status == http.StatusUnauthorized || status == http.StatusUnprocessableEntity
}
