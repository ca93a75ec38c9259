package devapi_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jrsteele09/go-school-admin/auth"
	"github.com/jrsteele09/go-school-admin/gateway"
	"github.com/jrsteele09/go-school-admin/internal/devapi"
	apperrors "github.com/jrsteele09/go-school-admin/internal/errors"
	"github.com/jrsteele09/go-school-admin/school"
	"github.com/jrsteele09/go-school-admin/sessions"
	fakestorage "github.com/jrsteele09/go-school-admin/sessions/repofakes"
	"github.com/jrsteele09/go-school-admin/users"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type env struct {
	api       *devapi.Server
	url       string
	store     *sessions.Store
	gw        *gateway.Gateway
	auth      *auth.Service
	school    *school.Client
	redirects int
	mu        sync.Mutex
}

func newEnv(t *testing.T) *env {
	t.Helper()
	api, err := devapi.New("test-signing-key", time.Minute, devapi.WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	_, err = api.SeedDefaults()
	require.NoError(t, err)

	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	e := &env{api: api, url: srv.URL}
	e.store = sessions.NewStore(fakestorage.NewFakeStorage(), sessions.WithLogger(zerolog.Nop()))
	e.gw = gateway.New(srv.URL, e.store,
		gateway.WithLogger(zerolog.Nop()),
		gateway.WithRedirector(gateway.RedirectFunc(func() {
			e.mu.Lock()
			e.redirects++
			e.mu.Unlock()
		})))
	e.auth = auth.NewService(e.gw, e.store, auth.WithLogger(zerolog.Nop()))
	e.school = school.NewClient(e.gw)
	return e
}

func (e *env) login(t *testing.T, email, password string) *users.User {
	t.Helper()
	u, err := e.auth.Login(context.Background(), email, password)
	require.NoError(t, err)
	return u
}

func TestNew_RequiresSigningKey(t *testing.T) {
	_, err := devapi.New("", time.Minute)
	require.Error(t, err)
}

func TestLogin(t *testing.T) {
	e := newEnv(t)

	t.Run("wrong password", func(t *testing.T) {
		_, err := e.auth.Login(context.Background(), "admin@school.test", "nope")
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, "Invalid credentials", err.Error())
	})

	t.Run("each role", func(t *testing.T) {
		for email, role := range map[string]users.RoleType{
			"admin@school.test":   users.RoleAdmin,
			"teacher@school.test": users.RoleTeacher,
			"student@school.test": users.RoleStudent,
		} {
			password := strings.Split(email, "@")[0] + "123"
			u := e.login(t, email, password)
			require.Equal(t, role, u.Role)
			require.NotEmpty(t, e.store.Current().RefreshToken)
		}
	})
}

func TestExpiredAccessTokenIsRefreshedTransparently(t *testing.T) {
	e := newEnv(t)
	e.login(t, "admin@school.test", "admin123")
	before := e.store.Current()

	e.api.ExpireAccessTokens()

	page, err := e.school.ListStudents(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, 1, e.api.RefreshCalls())

	after := e.store.Current()
	require.NotEqual(t, before.AccessToken, after.AccessToken)
	require.NotEqual(t, before.RefreshToken, after.RefreshToken)
	require.Equal(t, before.User.ID, after.User.ID)
	require.Zero(t, e.redirects)
}

func TestSpentRefreshTokenEndsSession(t *testing.T) {
	e := newEnv(t)
	e.login(t, "admin@school.test", "admin123")
	stale := e.store.Current()

	// Rotate once so stale.RefreshToken is spent, then put the stale pair back.
	e.api.ExpireAccessTokens()
	_, err := e.school.ListTeachers(context.Background(), 1, 10)
	require.NoError(t, err)
	require.NoError(t, e.store.Refresh(e.store.Current().RefreshToken, stale.AccessToken, stale.RefreshToken))

	_, err = e.school.ListTeachers(context.Background(), 1, 10)
	require.ErrorIs(t, err, gateway.ErrRefreshFailed)
	require.True(t, e.store.Current().IsEmpty())
	require.Equal(t, 1, e.redirects)
	require.Equal(t, 2, e.api.RefreshCalls())
}

func TestConcurrentCallsShareOneRefresh(t *testing.T) {
	e := newEnv(t)
	e.login(t, "teacher@school.test", "teacher123")
	e.api.ExpireAccessTokens()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			page, err := e.school.MyStudents(context.Background(), 1)
			if assert.NoError(t, err) {
				assert.Len(t, page.Data, 2)
			}
		}()
	}
	wg.Wait()

	require.Equal(t, 1, e.api.RefreshCalls())
	require.Zero(t, e.redirects)
}

func TestRoleChecks(t *testing.T) {
	e := newEnv(t)
	e.login(t, "student@school.test", "student123")

	_, err := e.school.ListStudents(context.Background(), 1)
	apiErr, ok := gateway.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusForbidden, apiErr.StatusCode)

	profile, err := e.school.StudentProfile(context.Background())
	require.NoError(t, err)
	require.Equal(t, "Ada", profile.FirstName)

	updated, err := e.school.UpdateStudentProfile(context.Background(), school.Student{PhoneNumber: "555-0100", ClassGrade: "12"})
	require.NoError(t, err)
	require.Equal(t, "555-0100", updated.PhoneNumber)
	require.Equal(t, "10", updated.ClassGrade)
}

func TestAdminManagesRecords(t *testing.T) {
	e := newEnv(t)
	e.login(t, "admin@school.test", "admin123")
	ctx := context.Background()

	t.Run("validation", func(t *testing.T) {
		_, err := e.school.CreateStudent(ctx, school.Student{FirstName: "Dup", LastName: "Licate", Email: "grace@school.test", Password: "pw"})
		require.True(t, gateway.IsValidation(err))
		apiErr, _ := gateway.AsAPIError(err)
		require.Equal(t, "The email has already been taken.", apiErr.FieldError("email"))
	})

	teachers, err := e.school.AllTeachers(ctx)
	require.NoError(t, err)
	require.Len(t, teachers, 1)

	created, err := e.school.CreateTeacher(ctx, school.Teacher{FirstName: "Edsger", LastName: "Dijkstra", Email: "edsger@school.test", Password: "pw"})
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)
	require.Equal(t, school.StatusActive, created.Status)

	st, err := e.school.CreateStudent(ctx, school.Student{FirstName: "Barbara", LastName: "Liskov", Email: "barbara@school.test", Password: "pw", TeacherID: created.ID})
	require.NoError(t, err)

	assigned, err := e.school.TeacherStudents(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	require.Equal(t, st.ID, assigned[0].ID)

	renamed, err := e.school.UpdateStudent(ctx, st.ID, school.Student{Email: "b.liskov@school.test"})
	require.NoError(t, err)
	require.Equal(t, "b.liskov@school.test", renamed.Email)

	require.NoError(t, e.school.DeleteTeacher(ctx, created.ID))
	require.NoError(t, e.school.DeleteStudent(ctx, st.ID))

	err = e.school.DeleteStudent(ctx, st.ID)
	apiErr, ok := gateway.AsAPIError(err)
	require.True(t, ok)
	require.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	page, err := e.school.ListTeachers(ctx, 1, 10)
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)
}

func TestTeacherManagesOwnStudents(t *testing.T) {
	e := newEnv(t)
	e.login(t, "teacher@school.test", "teacher123")
	ctx := context.Background()

	added, err := e.school.AddMyStudent(ctx, school.Student{FirstName: "Katherine", LastName: "Johnson", Email: "katherine@school.test", Password: "pw"})
	require.NoError(t, err)

	mine, err := e.school.MyStudents(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, 3, mine.Total)

	updated, err := e.school.UpdateMyStudent(ctx, added.ID, school.Student{ClassGrade: "11"})
	require.NoError(t, err)
	require.Equal(t, "11", updated.ClassGrade)

	require.NoError(t, e.school.DeleteMyStudent(ctx, added.ID))

	profile, err := e.school.TeacherProfile(ctx)
	require.NoError(t, err)
	require.Equal(t, "EMP-001", profile.EmployeeID)

	profile, err = e.school.UpdateTeacherProfile(ctx, school.Teacher{PhoneNumber: "555-0199", EmployeeID: "HACKED"})
	require.NoError(t, err)
	require.Equal(t, "555-0199", profile.PhoneNumber)
	require.Equal(t, "EMP-001", profile.EmployeeID)
}

func TestMetricsEndpoint(t *testing.T) {
	e := newEnv(t)
	e.login(t, "admin@school.test", "admin123")

	count, err := testutil.GatherAndCount(e.api.Registry(), "school_devapi_logins_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)

	resp, err := http.Get(e.url + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
