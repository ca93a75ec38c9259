package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/internal/utils"
	"github.com/jrsteele09/go-school-admin/sessions"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"
)

// DefaultTimeout bounds a single dispatch when no client is supplied.
const DefaultTimeout = 30 * time.Second

// SessionStore is the part of sessions.Store the gateway needs.
type SessionStore interface {
	Current() sessions.Session
	Refresh(spent, accessToken, refreshToken string) error
	Logout()
}

var _ SessionStore = (*sessions.Store)(nil)

// call states, logged at debug level
const (
	stateDispatched        = "DISPATCHED"
	stateSucceeded         = "SUCCEEDED"
	stateFailedTerminal    = "FAILED_TERMINAL"
	stateAuthFailed        = "AUTH_FAILED"
	stateRefreshing        = "REFRESHING"
	stateRetriedDispatched = "RETRIED_DISPATCHED"
	stateRefreshFailed     = "REFRESH_FAILED"
	stateSessionTerminated = "SESSION_TERMINATED"
)

// Gateway sends every API call. It attaches the current access token and, when the API
// answers 401, exchanges the refresh token once and replays the call once.
// A Gateway is safe for concurrent use.
type Gateway struct {
	baseURL     string
	refreshPath string
	store       SessionStore
	client      *http.Client
	timeout     time.Duration
	logger      zerolog.Logger
	redirector  Redirector
	limiter     *rate.Limiter
	metrics     Collector

	refreshes singleflight.Group
}

func New(baseURL string, store SessionStore, opts ...Option) *Gateway {
	g := &Gateway{
		baseURL:     strings.TrimRight(baseURL, "/"),
		refreshPath: apimodel.RouteRefresh,
		store:       store,
		timeout:     DefaultTimeout,
		logger:      log.Logger,
		redirector:  nopRedirector{},
		metrics:     NopCollector{},
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.client == nil {
		g.client = &http.Client{Timeout: g.timeout}
	}
	return g
}

// BaseURL is the API root every path is resolved against.
func (g *Gateway) BaseURL() string {
	return g.baseURL
}

// Send dispatches method path with payload encoded as JSON and returns the response of any
// status below 400. Failures come back as *APIError, or wrap ErrNetwork when no response
// was received. A 401 triggers at most one refresh and one replay.
func (g *Gateway) Send(ctx context.Context, method, path string, payload any, opts ...CallOption) (*Response, error) {
	req, err := NewRequest(method, path, payload, opts...)
	if err != nil {
		return nil, err
	}
	return g.Do(ctx, req)
}

// Do runs the request through the refresh-and-retry protocol.
func (g *Gateway) Do(ctx context.Context, req Request) (*Response, error) {
	var accessToken string
	if !req.anonymous {
		accessToken = g.store.Current().AccessToken
	}

	resp, err := g.dispatch(ctx, req, accessToken)
	if err != nil {
		g.trace(req, stateFailedTerminal).Err(err).Msg("Request failed")
		return nil, err
	}
	if resp.StatusCode < http.StatusBadRequest {
		g.trace(req, stateSucceeded).Int("status", resp.StatusCode).Msg("Request succeeded")
		return resp, nil
	}

	apiErr := newAPIError(req, resp.StatusCode, resp.Body)
	if resp.StatusCode != http.StatusUnauthorized || !req.canRetry() {
		g.trace(req, stateFailedTerminal).Int("status", resp.StatusCode).Msg("Request failed")
		return nil, apiErr
	}

	g.trace(req, stateAuthFailed).Msg("Access token rejected")
	current := g.store.Current()

	// Another call rotated the tokens while this one was in flight.
	if accessToken != "" && current.AccessToken != "" && current.AccessToken != accessToken {
		return g.replay(ctx, req)
	}
	if !current.CanRefresh() {
		g.trace(req, stateFailedTerminal).Msg("No refresh token, not retrying")
		return nil, apiErr.withCause(errors.ErrNoRefreshToken)
	}

	g.trace(req, stateRefreshing).Msg("Refreshing session")
	err = g.refresh(ctx, current.RefreshToken)
	switch {
	case err == nil:
		return g.replay(ctx, req)
	case errors.Is(err, errors.ErrNoSession):
		g.trace(req, stateFailedTerminal).Msg("Logged out during refresh")
		return nil, apiErr.withCause(errors.ErrNoSession)
	case errors.Is(err, errors.ErrRefreshFailed):
		g.trace(req, stateRefreshFailed).Err(err).Msg("Refresh failed")
		g.trace(req, stateSessionTerminated).Msg("Session terminated")
		return nil, err
	}
	g.trace(req, stateFailedTerminal).Err(err).Msg("Gave up waiting for refresh")
	return nil, err
}

func (g *Gateway) replay(ctx context.Context, req Request) (*Response, error) {
	next := req.retry()
	g.metrics.RecordRetry()
	g.trace(next, stateRetriedDispatched).Msg("Replaying request")
	return g.Do(ctx, next)
}

// refresh exchanges refreshToken for a new pair and stores it. Concurrent callers holding the
// same refresh token share one exchange. On failure the session is torn down and the user
// redirected, once per exchange. A session that was logged out meanwhile yields ErrNoSession
// without a redirect.
func (g *Gateway) refresh(ctx context.Context, refreshToken string) error {
	// The first caller's cancellation must not fail the others waiting on it.
	flightCtx := context.WithoutCancel(ctx)

	ch := g.refreshes.DoChan(refreshToken, func() (any, error) {
		// A caller that read the session just before an earlier exchange finished.
		if moved, err := g.sessionMoved(refreshToken); moved {
			return nil, err
		}

		err := g.exchange(flightCtx, refreshToken)
		switch {
		case err == nil:
			g.metrics.RecordRefresh(RefreshSucceeded)
			return nil, nil
		case errors.Is(err, errors.ErrSessionChanged):
			g.logger.Debug().Msg("Session replaced during refresh, discarding exchanged tokens")
			return nil, nil
		case errors.Is(err, errors.ErrNoSession):
			g.logger.Debug().Msg("Logged out during refresh, discarding exchanged tokens")
			return nil, err
		}
		// The failed token is no longer the session's, so there is nothing to tear down.
		if moved, movedErr := g.sessionMoved(refreshToken); moved {
			g.logger.Debug().Err(err).Msg("Refresh failed for a session that has since changed")
			return nil, movedErr
		}
		g.metrics.RecordRefresh(RefreshFailed)
		g.logger.Warn().Err(err).Msg("Token refresh failed, ending session")
		g.store.Logout()
		g.redirector.RedirectToLogin()
		return nil, fmt.Errorf("%w: %w", errors.ErrRefreshFailed, err)
	})

	select {
	case <-ctx.Done():
		return fmt.Errorf("[Gateway refresh] waiting for refresh: %w: %w", errors.ErrNetwork, ctx.Err())
	case res := <-ch:
		if res.Shared {
			g.metrics.RecordCoalescedRefresh()
		}
		if res.Err != nil {
			return fmt.Errorf("[Gateway refresh] %w", res.Err)
		}
		return nil
	}
}

// sessionMoved reports whether the session no longer holds refreshToken. The error is nil when
// another session is current and ErrNoSession when logged out.
func (g *Gateway) sessionMoved(refreshToken string) (bool, error) {
	current := g.store.Current()
	if current.RefreshToken == refreshToken {
		return false, nil
	}
	if current.IsAuthenticated() {
		return true, nil
	}
	return true, errors.ErrNoSession
}

func (g *Gateway) exchange(ctx context.Context, refreshToken string) error {
	payload := apimodel.RefreshRequest{RefreshToken: refreshToken}
	req, err := NewRequest(http.MethodPost, g.refreshPath, payload, Anonymous())
	if err != nil {
		return err
	}

	resp, err := g.dispatch(ctx, req, "")
	if err != nil {
		return err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return newAPIError(req, resp.StatusCode, resp.Body)
	}

	var tokens apimodel.TokenResponse
	if err := resp.Decode(&tokens); err != nil {
		return err
	}
	if err := tokens.Validate(); err != nil {
		return errors.Wrapf(errors.ErrMalformedResponse, "[Gateway exchange] %s", err.Error())
	}

	nextRefresh := utils.Coalesce(utils.Value(tokens.RefreshToken), refreshToken)
	if err := g.store.Refresh(refreshToken, utils.Value(tokens.AccessToken), nextRefresh); err != nil {
		return fmt.Errorf("[Gateway exchange] store tokens: %w", err)
	}
	g.logger.Debug().Msg("Session tokens refreshed")
	return nil
}

// dispatch performs one HTTP round trip. A non-nil error means no response was received.
func (g *Gateway) dispatch(ctx context.Context, req Request, accessToken string) (*Response, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("[Gateway dispatch] rate limit wait: %w: %w", errors.ErrNetwork, err)
		}
	}

	var body io.Reader
	if req.body != nil {
		body = bytes.NewReader(req.body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, g.baseURL+req.Path, body)
	if err != nil {
		return nil, fmt.Errorf("[Gateway dispatch] build %s %s: %w", req.Method, req.Path, err)
	}
	for key, values := range req.header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("X-Request-ID", req.ID)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if accessToken != "" {
		(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}).SetAuthHeader(httpReq)
	}

	g.trace(req, stateDispatched).Msg("Dispatching request")
	start := time.Now()
	httpResp, err := g.client.Do(httpReq)
	if err != nil {
		g.metrics.RecordNetworkError(req.Method)
		return nil, fmt.Errorf("[Gateway dispatch] %s %s: %w: %w", req.Method, req.Path, errors.ErrNetwork, err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		g.metrics.RecordNetworkError(req.Method)
		return nil, fmt.Errorf("[Gateway dispatch] read %s %s: %w: %w", req.Method, req.Path, errors.ErrNetwork, err)
	}
	g.metrics.RecordRequest(req.Method, httpResp.StatusCode, time.Since(start))

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       respBody,
	}, nil
}

func (g *Gateway) trace(req Request, state string) *zerolog.Event {
	return g.logger.Debug().
		Str("request_id", req.ID).
		Str("method", req.Method).
		Str("path", req.Path).
		Int("attempt", req.attempt).
		Str("state", state)
}
