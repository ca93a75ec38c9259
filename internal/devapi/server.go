// Package devapi is an in-memory stand-in for the school API. It issues short-lived HS256
// access tokens and single-use refresh tokens so the client's refresh path can be exercised
// locally and in tests.
package devapi

import (
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/token"
	"github.com/jrsteele09/go-school-admin/token/refresh"
	refreshrepofake "github.com/jrsteele09/go-school-admin/token/refresh/repofake"
	"github.com/jrsteele09/go-school-admin/users"
	fakeuserrepo "github.com/jrsteele09/go-school-admin/users/repofake"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	issuerName      = "school-devapi"
	defaultPerPage  = 10
	maxPerPage      = 100
	refreshTokenTTL = 7 * 24 * time.Hour
)

type Server struct {
	router   chi.Router
	users    users.UserRepo
	issuer   *token.Issuer
	refresh  *refresh.Manager
	logger   zerolog.Logger
	registry *prometheus.Registry
	metrics  *serverMetrics

	recordsLock sync.RWMutex
	students    map[users.ID]school.Student
	teachers    map[users.ID]school.Teacher

	tokensLock   sync.RWMutex
	accessTokens map[string]users.ID // live access tokens; ExpireAccessTokens clears it

	refreshCalls atomic.Int64
}

type Option func(*Server)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Server) {
		s.logger = l
	}
}

// WithUserRepo replaces the in-memory user repo.
func WithUserRepo(repo users.UserRepo) Option {
	return func(s *Server) {
		if repo != nil {
			s.users = repo
		}
	}
}

// New creates a dev API that signs access tokens with signingKey and expires them after accessTTL.
func New(signingKey string, accessTTL time.Duration, opts ...Option) (*Server, error) {
	issuer, err := token.NewIssuer(signingKey, issuerName, accessTTL)
	if err != nil {
		return nil, fmt.Errorf("[DevAPI New] %w", err)
	}

	s := &Server{
		users:        fakeuserrepo.NewFakeUserRepo(),
		issuer:       issuer,
		refresh:      refresh.NewManager(refreshrepofake.NewFakeRefreshTokenRepo(), refreshTokenTTL),
		logger:       log.Logger,
		registry:     prometheus.NewRegistry(),
		students:     make(map[users.ID]school.Student),
		teachers:     make(map[users.ID]school.Teacher),
		accessTokens: make(map[string]users.ID),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.metrics = newServerMetrics(s.registry)
	s.router = s.routes()
	return s, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh tokens stay valid,
// so the next call from a client gets a 401 and has to refresh.
func (s *Server) ExpireAccessTokens() {
	s.tokensLock.Lock()
	defer s.tokensLock.Unlock()
	s.accessTokens = make(map[string]users.ID)
	s.logger.Info().Msg("All access tokens expired")
}

// RefreshCalls is the number of POST /refresh requests received, successful or not.
func (s *Server) RefreshCalls() int {
	return int(s.refreshCalls.Load())
}

// Registry holds the dev API's own request metrics.
func (s *Server) Registry() *prometheus.Registry {
	return s.registry
}

func (s *Server) issueTokens(user *users.User) (accessToken, refreshToken string, err error) {
	accessToken, err = s.issuer.CreateAccessToken(user)
	if err != nil {
		return "", "", err
	}
	refreshToken, err = s.refresh.Create(user.ID.String())
	if err != nil {
		return "", "", err
	}

	s.tokensLock.Lock()
	s.accessTokens[accessToken] = user.ID
	s.tokensLock.Unlock()
	return accessToken, refreshToken, nil
}

// authenticate resolves a bearer token to its user. The token must verify and still be live.
func (s *Server) authenticate(rawToken string) (*users.User, error) {
	claims, err := s.issuer.Verify(rawToken)
	if err != nil {
		return nil, err
	}

	s.tokensLock.RLock()
	userID, live := s.accessTokens[rawToken]
	s.tokensLock.RUnlock()
	if !live || userID.String() != claims.Subject {
		return nil, token.ErrInvalidToken
	}
	return s.users.GetByID(userID)
}
