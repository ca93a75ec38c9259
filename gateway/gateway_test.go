package gateway_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-school-admin/apimodel"
	"github.com/jrsteele09/go-school-admin/gateway"
	apperrors "github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/sessions"
	fakestorage "github.com/jrsteele09/go-school-admin/sessions/repofakes"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loggedInStore(t *testing.T, accessToken, refreshToken string) *sessions.Store {
	t.Helper()
	store := sessions.NewStore(fakestorage.NewFakeStorage(), sessions.WithLogger(zerolog.Nop()))
	user := &users.User{ID: "1", Email: "teacher@school.test", Role: users.RoleTeacher}
	require.NoError(t, store.Login(user, accessToken, refreshToken))
	return store
}

// fakeAPI accepts Bearer <valid> on every path except /refresh, which swaps refreshToken for
// the next pair when refreshOK is set.
type fakeAPI struct {
	mu           sync.Mutex
	valid        string
	refreshToken string
	next         [2]string
	refreshOK    bool
	refreshDelay time.Duration

	dispatches   atomic.Int32
	refreshCalls atomic.Int32
	authHeaders  []string
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/refresh" {
		f.refreshCalls.Add(1)
		time.Sleep(f.refreshDelay)

		var body struct {
			RefreshToken string `json:"refresh_token"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		f.mu.Lock()
		defer f.mu.Unlock()
		if !f.refreshOK || body.RefreshToken != f.refreshToken || r.Header.Get("Authorization") != "" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":"invalid refresh token"}`))
			return
		}
		f.valid, f.refreshToken = f.next[0], f.next[1]
		_ = json.NewEncoder(w).Encode(map[string]string{"access_token": f.next[0], "refresh_token": f.next[1]})
		return
	}

	f.dispatches.Add(1)
	f.mu.Lock()
	f.authHeaders = append(f.authHeaders, r.Header.Get("Authorization"))
	valid := f.valid
	f.mu.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+valid {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"data":[{"id":1}],"current_page":1}`))
}

type redirectCounter struct {
	n atomic.Int32
}

func (r *redirectCounter) RedirectToLogin() {
	r.n.Add(1)
}

func newGateway(t *testing.T, h http.Handler, store gateway.SessionStore, opts ...gateway.Option) *gateway.Gateway {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	opts = append([]gateway.Option{gateway.WithLogger(zerolog.Nop())}, opts...)
	return gateway.New(srv.URL, store, opts...)
}

func TestSend_AttachesCredentialsAndReturnsBodyUnchanged(t *testing.T) {
	var got *http.Request
	var gotBody map[string]string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Clone(context.Background())
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id": 5}`))
	})
	g := newGateway(t, h, loggedInStore(t, "T1", "R1"))

	resp, err := g.Send(context.Background(), http.MethodPost, "/students", map[string]string{"first_name": "Ada"},
		gateway.WithRequestID("req-1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	require.Equal(t, `{"id": 5}`, string(resp.Body))

	require.Equal(t, "Bearer T1", got.Header.Get("Authorization"))
	require.Equal(t, "application/json", got.Header.Get("Accept"))
	require.Equal(t, "application/json", got.Header.Get("Content-Type"))
	require.Equal(t, "req-1", got.Header.Get("X-Request-ID"))
	require.Equal(t, "Ada", gotBody["first_name"])
}

func TestSend_LoggedOutSendsNoCredentials(t *testing.T) {
	var auth string
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
	})
	store := sessions.NewStore(fakestorage.NewFakeStorage(), sessions.WithLogger(zerolog.Nop()))
	g := newGateway(t, h, store)

	resp, err := g.Send(context.Background(), http.MethodGet, "/ping", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, auth)
}

func TestSend_RefreshesAndReplaysOnce(t *testing.T) {
	api := &fakeAPI{valid: "expired", refreshToken: "R1", next: [2]string{"T2", "R2"}, refreshOK: true}
	store := loggedInStore(t, "T1", "R1")
	redirects := &redirectCounter{}
	g := newGateway(t, api, store, gateway.WithRedirector(redirects))

	resp, err := g.Send(context.Background(), http.MethodGet, "/students?page=1", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.JSONEq(t, `{"data":[{"id":1}],"current_page":1}`, string(resp.Body))

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.EqualValues(t, 2, api.dispatches.Load())
	require.Equal(t, []string{"Bearer T1", "Bearer T2"}, api.authHeaders)

	current := store.Current()
	require.Equal(t, "T2", current.AccessToken)
	require.Equal(t, "R2", current.RefreshToken)
	require.Equal(t, "teacher@school.test", current.User.Email)
	require.Zero(t, redirects.n.Load())
}

func TestSend_SecondUnauthorizedIsReturned(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			_, _ = w.Write([]byte(`{"access_token":"T2","refresh_token":"R2"}`))
			return
		}
		w.WriteHeader(http.StatusUnauthorized)
	})
	var refreshes, dispatches atomic.Int32
	counting := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/refresh" {
			refreshes.Add(1)
		} else {
			dispatches.Add(1)
		}
		h.ServeHTTP(w, r)
	})
	store := loggedInStore(t, "T1", "R1")
	g := newGateway(t, counting, store)

	_, err := g.Send(context.Background(), http.MethodGet, "/teachers", nil)
	require.Error(t, err)
	require.True(t, gateway.IsUnauthorized(err))
	require.ErrorIs(t, err, gateway.ErrUnauthorized)
	require.NotErrorIs(t, err, gateway.ErrRefreshFailed)

	require.EqualValues(t, 1, refreshes.Load())
	require.EqualValues(t, 2, dispatches.Load())
	// The refresh itself worked, so the session survives.
	require.Equal(t, "T2", store.Current().AccessToken)
}

func TestSend_RefreshFailureEndsSession(t *testing.T) {
	api := &fakeAPI{valid: "never", refreshToken: "R1", refreshOK: false}
	storage := fakestorage.NewFakeStorage()
	store := sessions.NewStore(storage, sessions.WithLogger(zerolog.Nop()))
	require.NoError(t, store.Login(&users.User{ID: "1", Email: "a@x.com", Role: users.RoleAdmin}, "T1", "R1"))

	redirects := &redirectCounter{}
	g := newGateway(t, api, store, gateway.WithRedirector(redirects))

	_, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
	require.ErrorIs(t, err, gateway.ErrRefreshFailed)

	apiErr, ok := gateway.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, apimodel.RouteRefresh, apiErr.Path)
	require.Equal(t, "invalid refresh token", apiErr.Message)

	require.True(t, store.Current().IsEmpty())
	_, found, _ := storage.Get(sessions.StorageKey)
	require.False(t, found)
	require.EqualValues(t, 1, redirects.n.Load())
	require.EqualValues(t, 1, api.dispatches.Load())
}

func TestSend_NoRefreshTokenMeansNoRetry(t *testing.T) {
	api := &fakeAPI{valid: "other", refreshOK: true}
	store := loggedInStore(t, "T1", "")
	redirects := &redirectCounter{}
	g := newGateway(t, api, store, gateway.WithRedirector(redirects))

	_, err := g.Send(context.Background(), http.MethodGet, "/student/profile", nil)
	require.True(t, gateway.IsUnauthorized(err))
	require.ErrorIs(t, err, gateway.ErrNoRefreshToken)

	require.Zero(t, api.refreshCalls.Load())
	require.EqualValues(t, 1, api.dispatches.Load())
	require.Zero(t, redirects.n.Load())
	require.Equal(t, "T1", store.Current().AccessToken)
}

func TestSend_AnonymousNeverRefreshes(t *testing.T) {
	api := &fakeAPI{valid: "T1", refreshToken: "R1", next: [2]string{"T2", "R2"}, refreshOK: true}
	store := loggedInStore(t, "T1", "R1")
	g := newGateway(t, api, store)

	_, err := g.Send(context.Background(), http.MethodPost, "/login", map[string]string{"email": "a@x.com"}, gateway.Anonymous())
	require.True(t, gateway.IsUnauthorized(err))
	require.Zero(t, api.refreshCalls.Load())
	require.Equal(t, []string{""}, api.authHeaders)
}

func TestSend_OtherFailuresPropagate(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"message":"Server Error"}`,
			check: func(t *testing.T, err error) {
				require.True(t, gateway.IsServerError(err))
				require.False(t, gateway.IsValidation(err))
			},
		},
		{
			name:   "validation",
			status: http.StatusUnprocessableEntity,
			body:   `{"errors":{"email":["The email has already been taken."]}}`,
			check: func(t *testing.T, err error) {
				require.True(t, gateway.IsValidation(err))
				apiErr, ok := gateway.AsAPIError(err)
				require.True(t, ok)
				require.Equal(t, "The email has already been taken.", apiErr.FieldError("email"))
				require.Equal(t, `{"errors":{"email":["The email has already been taken."]}}`, string(apiErr.Body))
			},
		},
		{
			name:   "forbidden",
			status: http.StatusForbidden,
			body:   `{"error":"Forbidden"}`,
			check: func(t *testing.T, err error) {
				require.False(t, gateway.IsUnauthorized(err))
				require.Contains(t, err.Error(), "403 Forbidden")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var refreshes atomic.Int32
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/refresh" {
					refreshes.Add(1)
				}
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			store := loggedInStore(t, "T1", "R1")
			g := newGateway(t, h, store)

			_, err := g.Send(context.Background(), http.MethodPost, "/teachers", nil)
			require.Error(t, err)
			tt.check(t, err)
			require.Zero(t, refreshes.Load())
			require.Equal(t, "T1", store.Current().AccessToken)
		})
	}
}

func TestSend_NetworkErrors(t *testing.T) {
	t.Run("connection refused", func(t *testing.T) {
		srv := httptest.NewServer(http.NotFoundHandler())
		url := srv.URL
		srv.Close()

		store := loggedInStore(t, "T1", "R1")
		g := gateway.New(url, store, gateway.WithLogger(zerolog.Nop()))
		_, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
		require.ErrorIs(t, err, gateway.ErrNetwork)
		require.True(t, gateway.IsNetwork(err))
		require.Equal(t, "T1", store.Current().AccessToken)
	})

	t.Run("timeout", func(t *testing.T) {
		h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(200 * time.Millisecond)
		})
		g := newGateway(t, h, loggedInStore(t, "T1", "R1"), gateway.WithTimeout(20*time.Millisecond))
		_, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
		require.ErrorIs(t, err, gateway.ErrNetwork)
	})
}

func TestSend_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	api := &fakeAPI{
		valid:        "expired",
		refreshToken: "R1",
		next:         [2]string{"T2", "R2"},
		refreshOK:    true,
		refreshDelay: 50 * time.Millisecond,
	}
	store := loggedInStore(t, "T1", "R1")
	redirects := &redirectCounter{}
	reg := prometheus.NewRegistry()
	g := newGateway(t, api, store,
		gateway.WithRedirector(redirects),
		gateway.WithCollector(gateway.NewPrometheusCollector(reg)))

	const callers = 10
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
			if assert.NoError(t, err) {
				assert.Equal(t, http.StatusOK, resp.StatusCode)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, api.refreshCalls.Load())
	require.Zero(t, redirects.n.Load())
	require.Equal(t, "T2", store.Current().AccessToken)
	require.Equal(t, "R2", store.Current().RefreshToken)

	count, err := testutil.GatherAndCount(reg, "school_gateway_refresh_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}

// heldRefresh answers 401 to everything but Bearer <valid>, and parks /refresh until release
// is called, then hands out the pair T2-old-user/R2-old-user.
type heldRefresh struct {
	valid       string
	entered     chan struct{}
	enterOnce   sync.Once
	released    chan struct{}
	releaseOnce sync.Once
}

// newHeldGateway releases the parked refresh before the test server shuts down.
func newHeldGateway(t *testing.T, valid string, store gateway.SessionStore, redirects gateway.Redirector) (*heldRefresh, *gateway.Gateway) {
	t.Helper()
	h := &heldRefresh{valid: valid, entered: make(chan struct{}), released: make(chan struct{})}
	g := newGateway(t, h, store, gateway.WithRedirector(redirects))
	t.Cleanup(h.release)
	return h, g
}

func (h *heldRefresh) release() {
	h.releaseOnce.Do(func() { close(h.released) })
}

func (h *heldRefresh) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/refresh" {
		h.enterOnce.Do(func() { close(h.entered) })
		<-h.released
		_, _ = w.Write([]byte(`{"access_token":"T2-old-user","refresh_token":"R2-old-user"}`))
		return
	}
	if r.Header.Get("Authorization") != "Bearer "+h.valid {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	_, _ = w.Write([]byte(`{}`))
}

func TestSend_SessionChangeDuringRefresh(t *testing.T) {
	t.Run("login as another user keeps the new session", func(t *testing.T) {
		store := loggedInStore(t, "T1", "R1")
		redirects := &redirectCounter{}
		held, g := newHeldGateway(t, "T9-new-user", store, redirects)

		done := make(chan error, 1)
		go func() {
			_, err := g.Send(context.Background(), http.MethodGet, "/teacher/profile", nil)
			done <- err
		}()

		<-held.entered
		admin := &users.User{ID: "2", Email: "admin@school.test", Role: users.RoleAdmin}
		require.NoError(t, store.Login(admin, "T9-new-user", "R9-new-user"))
		held.release()
		require.NoError(t, <-done)

		current := store.Current()
		require.Equal(t, "admin@school.test", current.User.Email)
		require.Equal(t, "T9-new-user", current.AccessToken)
		require.Equal(t, "R9-new-user", current.RefreshToken)
		require.Zero(t, redirects.n.Load())
	})

	t.Run("logout is not a failed refresh", func(t *testing.T) {
		store := loggedInStore(t, "T1", "R1")
		redirects := &redirectCounter{}
		held, g := newHeldGateway(t, "never", store, redirects)

		done := make(chan error, 1)
		go func() {
			_, err := g.Send(context.Background(), http.MethodGet, "/teacher/profile", nil)
			done <- err
		}()

		<-held.entered
		store.Logout()
		held.release()
		err := <-done

		require.True(t, gateway.IsUnauthorized(err))
		require.ErrorIs(t, err, apperrors.ErrNoSession)
		require.NotErrorIs(t, err, gateway.ErrRefreshFailed)
		require.True(t, store.Current().IsEmpty())
		require.Zero(t, redirects.n.Load())
	})
}

func TestSend_CancelledCallerStopsWaitingForRefresh(t *testing.T) {
	store := loggedInStore(t, "T1", "R1")
	redirects := &redirectCounter{}
	held, g := newHeldGateway(t, "T2-old-user", store, redirects)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := g.Send(ctx, http.MethodGet, "/students", nil)
		done <- err
	}()

	<-held.entered
	cancel()
	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
		require.ErrorIs(t, err, gateway.ErrNetwork)
		require.NotErrorIs(t, err, gateway.ErrRefreshFailed)
	case <-time.After(2 * time.Second):
		t.Fatal("cancelled caller still blocked on the shared refresh")
	}

	// The exchange itself carries on and lands in the store.
	held.release()
	require.Eventually(t, func() bool {
		return store.Current().AccessToken == "T2-old-user"
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "R2-old-user", store.Current().RefreshToken)
	require.Zero(t, redirects.n.Load())
}

func TestSend_RefreshEdgeCases(t *testing.T) {
	tests := []struct {
		name             string
		refresh          func(t *testing.T, w http.ResponseWriter)
		rotateMidCall    bool
		wantErrs         []error
		wantAccess       string
		wantRefresh      string
		wantRefreshCalls int32
		wantRedirects    int32
	}{
		{
			name:          "tokens already rotated by another call",
			rotateMidCall: true,
			wantAccess:    "T2",
			wantRefresh:   "R2",
		},
		{
			name: "response without refresh token keeps the old one",
			refresh: func(t *testing.T, w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"access_token":"T2"}`))
			},
			wantAccess:       "T2",
			wantRefresh:      "R1",
			wantRefreshCalls: 1,
		},
		{
			name: "malformed body",
			refresh: func(t *testing.T, w http.ResponseWriter) {
				_, _ = w.Write([]byte(`<html>Bad Gateway</html>`))
			},
			wantErrs:         []error{gateway.ErrRefreshFailed, apperrors.ErrMalformedResponse},
			wantRefreshCalls: 1,
			wantRedirects:    1,
		},
		{
			name: "response without access token",
			refresh: func(t *testing.T, w http.ResponseWriter) {
				_, _ = w.Write([]byte(`{"refresh_token":"R2"}`))
			},
			wantErrs:         []error{gateway.ErrRefreshFailed, apperrors.ErrMalformedResponse},
			wantRefreshCalls: 1,
			wantRedirects:    1,
		},
		{
			name: "connection dropped",
			refresh: func(t *testing.T, w http.ResponseWriter) {
				hj, ok := w.(http.Hijacker)
				if !assert.True(t, ok) {
					return
				}
				conn, _, err := hj.Hijack()
				if assert.NoError(t, err) {
					_ = conn.Close()
				}
			},
			wantErrs:         []error{gateway.ErrRefreshFailed, gateway.ErrNetwork},
			wantRefreshCalls: 1,
			wantRedirects:    1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := loggedInStore(t, "T1", "R1")
			var refreshCalls atomic.Int32
			h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path == "/refresh" {
					refreshCalls.Add(1)
					if tt.refresh != nil {
						tt.refresh(t, w)
					}
					return
				}
				auth := r.Header.Get("Authorization")
				if tt.rotateMidCall && auth == "Bearer T1" {
					assert.NoError(t, store.Refresh("R1", "T2", "R2"))
				}
				if auth != "Bearer T2" {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				_, _ = w.Write([]byte(`{}`))
			})
			redirects := &redirectCounter{}
			g := newGateway(t, h, store, gateway.WithRedirector(redirects))

			_, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
			if len(tt.wantErrs) == 0 {
				require.NoError(t, err)
			}
			for _, want := range tt.wantErrs {
				require.ErrorIs(t, err, want)
			}

			current := store.Current()
			require.Equal(t, tt.wantAccess, current.AccessToken)
			require.Equal(t, tt.wantRefresh, current.RefreshToken)
			require.Equal(t, tt.wantRefreshCalls, refreshCalls.Load())
			require.Equal(t, tt.wantRedirects, redirects.n.Load())
		})
	}
}

func TestSend_RateLimitHonoursContext(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	g := newGateway(t, h, loggedInStore(t, "T1", "R1"), gateway.WithRateLimit(0.001, 1))

	_, err := g.Send(context.Background(), http.MethodGet, "/students", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = g.Send(ctx, http.MethodGet, "/students", nil)
	require.ErrorIs(t, err, gateway.ErrNetwork)
}

func TestRequest_RetryIsANewValue(t *testing.T) {
	req, err := gateway.NewRequest("get", "students", nil)
	require.NoError(t, err)
	require.Equal(t, http.MethodGet, req.Method)
	require.Equal(t, "/students", req.Path)
	require.NotEmpty(t, req.ID)
	require.Zero(t, req.Attempt())
	require.False(t, req.Anonymous())

	_, err = gateway.NewRequest(http.MethodPost, "/x", func() {})
	require.Error(t, err)
}

func TestResponse_Decode(t *testing.T) {
	resp := &gateway.Response{Body: []byte(`{"id":3}`)}
	var v struct{ ID int }
	require.NoError(t, resp.Decode(&v))
	require.Equal(t, 3, v.ID)

	require.Error(t, (&gateway.Response{}).Decode(&v))
	require.Error(t, (&gateway.Response{Body: []byte("<html>")}).Decode(&v))
}

func TestRedirectFunc(t *testing.T) {
	called := false
	var r gateway.Redirector = gateway.RedirectFunc(func() { called = true })
	r.RedirectToLogin()
	require.True(t, called)
}
