package session

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/fakebackend"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/metrics"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
	"github.com/GenivalfSilva/Sistema-Compras/internal/storage"
)

type recordingNavigator struct {
	mu        sync.Mutex
	location  string
	redirects int
}

func (n *recordingNavigator) Location() string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.location
}

func (n *recordingNavigator) RedirectToLogin() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.redirects++
	n.location = LoginPath
}

func (n *recordingNavigator) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.redirects
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

type env struct {
	srv     *fakebackend.Server
	ts      *httptest.Server
	mem     *storage.MemoryStore
	nav     *recordingNavigator
	metrics *metrics.Metrics
	m       *Manager
}

func newEnv(t *testing.T, opts fakebackend.Options, base http.RoundTripper) *env {
	t.Helper()
	srv := fakebackend.New(opts)
	require.NoError(t, srv.SeedDemoUsers())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	e := &env{
		srv:     srv,
		ts:      ts,
		mem:     storage.NewMemoryStore(),
		nav:     &recordingNavigator{location: "/solicitacoes"},
		metrics: metrics.New(),
	}
	e.m = NewManager(Config{
		BaseURL:   ts.URL + fakebackend.Prefix,
		Base:      base,
		Storage:   NewAuthStorage(e.mem),
		Navigator: e.nav,
		Metrics:   e.metrics,
	})
	return e
}

func (e *env) get(ctx context.Context, path string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.m.BaseURL()+path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := e.m.Client(5 * time.Second).Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()
	return resp, nil
}

func TestLogin_LoadsProfileAndPersists(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)

	var mu sync.Mutex
	var seen []EventType
	e.m.Subscribe(func(ev Event) {
		mu.Lock()
		seen = append(seen, ev.Type)
		mu.Unlock()
	})

	sess, err := e.m.Login(ctx, "suprimentos", "supri123")
	require.NoError(t, err)
	require.NotNil(t, sess.Profile)
	assert.False(t, sess.Degraded())
	assert.Equal(t, "suprimentos", sess.Profile.Username)
	assert.True(t, sess.Permissions()["can_manage_procurement"])
	assert.NotEmpty(t, sess.Tokens.Refresh)

	stored, err := NewAuthStorage(e.mem).GetTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.Tokens, *stored)
	profile, err := NewAuthStorage(e.mem).GetProfile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "suprimentos", profile.Username)

	mu.Lock()
	assert.Equal(t, []EventType{EventLogin, EventProfile}, seen)
	mu.Unlock()
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.LoginsTotal.WithLabelValues("success")))
}

func TestLogin_InvalidCredentials(t *testing.T) {
	e := newEnv(t, fakebackend.Options{}, nil)

	sess, err := e.m.Login(context.Background(), "admin", "nope")
	require.Error(t, err)
	assert.Nil(t, sess)
	assert.True(t, errors.Is(err, apperr.ErrInvalidCredentials))
	assert.Contains(t, err.Error(), "No active account")
	assert.False(t, e.m.Authenticated())
	assert.Equal(t, 0, e.mem.Len())
}

func TestLogin_DegradedWhenProfileFails(t *testing.T) {
	e := newEnv(t, fakebackend.Options{}, nil)
	e.srv.SetProfileFailure(true)

	sess, err := e.m.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProfileUnavailable)
	require.NotNil(t, sess)
	assert.True(t, sess.Degraded())
	assert.True(t, e.m.Authenticated())
	assert.Nil(t, e.m.Profile())

	e.srv.SetProfileFailure(false)
	p, err := e.m.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "admin", p.Username)
	assert.False(t, e.m.Session().Degraded())
}

func TestLogin_NetworkError(t *testing.T) {
	e := newEnv(t, fakebackend.Options{}, nil)
	e.ts.Close()

	_, err := e.m.Login(context.Background(), "admin", "admin123")
	require.Error(t, err)
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
}

func TestTransport_RefreshesOnceAndReplays(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	before := e.m.Session().Tokens

	e.srv.InvalidateAccessTokens()

	body := []byte(`{"departamento":"TI","prioridade":"Alta","descricao":"Teclados"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.m.BaseURL()+"/solicitacoes/", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := e.m.Client(5 * time.Second).Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	after := e.m.Session().Tokens
	assert.NotEqual(t, before.Access, after.Access)
	assert.Equal(t, before.Refresh, after.Refresh, "refresh token is kept")
	assert.Equal(t, int64(1), e.srv.RefreshCalls())

	stored, err := NewAuthStorage(e.mem).GetTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, after, *stored)
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.RefreshesTotal.WithLabelValues(metrics.RefreshSuccess)))
}

func TestTransport_ConcurrentUnauthorizedShareOneRefresh(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	e.srv.InvalidateAccessTokens()
	e.srv.SetRefreshDelay(150 * time.Millisecond)

	const n = 8
	var wg sync.WaitGroup
	codes := make([]int, n)
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := e.get(ctx, "/solicitacoes/")
			errs[i] = err
			if resp != nil {
				codes[i] = resp.StatusCode
			}
		}()
	}
	wg.Wait()

	for i := range n {
		require.NoError(t, errs[i])
		assert.Equal(t, http.StatusOK, codes[i])
	}
	assert.Equal(t, int64(1), e.srv.RefreshCalls())
	assert.True(t, e.m.Authenticated())
}

func TestTransport_ConcurrentUnauthorizedFailTogether(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	e.srv.InvalidateAccessTokens()
	e.srv.InvalidateRefreshTokens()
	e.srv.SetRefreshDelay(150 * time.Millisecond)

	const n = 8
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = e.get(ctx, "/solicitacoes/")
		}()
	}
	wg.Wait()

	for i := range n {
		assert.ErrorIs(t, errs[i], apperr.ErrSessionExpired, "caller %d", i)
	}
	assert.Equal(t, int64(1), e.srv.RefreshCalls())
	assert.Equal(t, 1, e.nav.count())
	assert.Equal(t, 0, e.mem.Len())
	assert.False(t, e.m.Authenticated())
}

func TestTransport_LogsCarryRequestID(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)

	var buf bytes.Buffer
	e.m = NewManager(Config{
		BaseURL:   e.ts.URL + fakebackend.Prefix,
		Storage:   NewAuthStorage(e.mem),
		Navigator: e.nav,
		Logger:    logging.NewWithWriter(&buf, slog.LevelDebug, "json"),
	})
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	e.srv.InvalidateAccessTokens()
	buf.Reset()

	resp, err := e.get(ctx, "/solicitacoes/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	id := resp.Header.Get(requestid.Header)
	require.NotEmpty(t, id)

	var lines int
	sc := bufio.NewScanner(&buf)
	for sc.Scan() {
		var entry map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &entry))
		if entry["msg"] == "request" || entry["msg"] == "access token rejected" {
			lines++
			assert.Equal(t, id, entry[logging.FieldRequestID], "%v", entry["msg"])
		}
	}
	assert.Equal(t, 3, lines, "rejected call, rejection and replay")
}

func TestTransport_KeepsCallerRequestID(t *testing.T) {
	ctx := requestid.With(context.Background(), "op-7")
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)

	resp, err := e.get(ctx, "/solicitacoes/")
	require.NoError(t, err)
	assert.Equal(t, "op-7", resp.Header.Get(requestid.Header))
}

func TestTransport_RefreshRejectedExpiresSession(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "estoque", "estoque123")
	require.NoError(t, err)

	expired := make(chan struct{}, 4)
	e.m.Subscribe(func(ev Event) {
		if ev.Type == EventExpired {
			expired <- struct{}{}
		}
	})

	e.srv.InvalidateAccessTokens()
	e.srv.InvalidateRefreshTokens()

	_, err = e.get(ctx, "/solicitacoes/")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrSessionExpired))

	assert.False(t, e.m.Authenticated())
	assert.Nil(t, e.m.Profile())
	assert.Equal(t, 0, e.mem.Len(), "tokens and profile are purged together")
	assert.Equal(t, 1, e.nav.count())
	assert.Len(t, expired, 1)
	assert.Equal(t, int64(1), e.srv.RefreshCalls())

	// Without a session the 401 is passed through and nothing is retried.
	resp, err := e.get(ctx, "/solicitacoes/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), e.srv.RefreshCalls())
	assert.Equal(t, 1, e.nav.count())
	assert.Equal(t, float64(1), testutil.ToFloat64(e.metrics.SessionsExpired))
}

func TestTransport_NoRefreshTokenExpiresWithoutCall(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{OmitRefresh: true}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	assert.Empty(t, e.m.Session().Tokens.Refresh)

	e.srv.InvalidateAccessTokens()
	_, err = e.get(ctx, "/solicitacoes/")
	assert.Equal(t, apperr.KindSessionExpired, apperr.KindOf(err))
	assert.Equal(t, int64(0), e.srv.RefreshCalls())
	assert.False(t, e.m.Authenticated())
}

func TestTransport_RefreshNetworkErrorKeepsSession(t *testing.T) {
	ctx := context.Background()
	var failing atomic.Bool
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if failing.Load() && r.URL.Path == fakebackend.Prefix+PathRefresh {
			return nil, errors.New("connection reset")
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	e := newEnv(t, fakebackend.Options{}, base)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	failing.Store(true)
	e.srv.InvalidateAccessTokens()

	_, err = e.get(ctx, "/solicitacoes/")
	assert.Equal(t, apperr.KindNetwork, apperr.KindOf(err))
	assert.True(t, e.m.Authenticated(), "network failures never purge")
	assert.Equal(t, 0, e.nav.count())

	failing.Store(false)

	resp, err := e.get(ctx, "/solicitacoes/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestTransport_SecondUnauthorizedIsReturned(t *testing.T) {
	ctx := context.Background()
	var calls atomic.Int32
	base := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		if r.URL.Path == fakebackend.Prefix+"/solicitacoes/" {
			calls.Add(1)
			return &http.Response{
				StatusCode: http.StatusUnauthorized,
				Body:       http.NoBody,
				Header:     make(http.Header),
				Request:    r,
			}, nil
		}
		return http.DefaultTransport.RoundTrip(r)
	})
	e := newEnv(t, fakebackend.Options{}, base)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	resp, err := e.get(ctx, "/solicitacoes/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(1), e.srv.RefreshCalls())
	assert.Equal(t, int32(2), calls.Load())
	assert.True(t, e.m.Authenticated())
}

func TestHandleUnauthorized_StaleTokenSkipsRefresh(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.m.BaseURL()+"/solicitacoes/", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer superseded")

	retry, err := e.m.HandleUnauthorized(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+e.m.Session().Tokens.Access, retry.Header.Get("Authorization"))
	assert.Equal(t, int64(0), e.srv.RefreshCalls())
}

func TestHandleUnauthorized_WaiterContextCancelled(t *testing.T) {
	e := newEnv(t, fakebackend.Options{RefreshDelay: 300 * time.Millisecond}, nil)
	_, err := e.m.Login(context.Background(), "admin", "admin123")
	require.NoError(t, err)
	e.srv.InvalidateAccessTokens()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.m.BaseURL()+"/solicitacoes/", nil)
	require.NoError(t, err)
	e.m.Authorize(req)

	_, err = e.m.HandleUnauthorized(ctx, req)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	// The shared refresh still completes for everyone else.
	assert.Eventually(t, func() bool {
		resp, err := e.get(context.Background(), "/solicitacoes/")
		return err == nil && resp.StatusCode == http.StatusOK
	}, 2*time.Second, 50*time.Millisecond)
	assert.Equal(t, int64(1), e.srv.RefreshCalls())
}

func TestLogout_DuringRefreshDoesNotResurrect(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{RefreshDelay: 300 * time.Millisecond}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	e.srv.InvalidateAccessTokens()

	done := make(chan error, 1)
	go func() {
		_, err := e.get(ctx, "/solicitacoes/")
		done <- err
	}()

	require.Eventually(t, func() bool { return e.srv.RefreshCalls() == 1 }, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, e.m.Logout(ctx))

	err = <-done
	assert.Equal(t, apperr.KindSessionExpired, apperr.KindOf(err))
	assert.False(t, e.m.Authenticated())
	assert.Equal(t, 0, e.mem.Len())
}

func TestLogout_Idempotent(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	var logouts int
	e.m.Subscribe(func(ev Event) {
		if ev.Type == EventLogout {
			logouts++
		}
	})

	require.NoError(t, e.m.Logout(ctx))
	require.NoError(t, e.m.Logout(ctx))
	assert.False(t, e.m.Authenticated())
	assert.Equal(t, 1, logouts)
	assert.Equal(t, int64(1), e.srv.LogoutCalls())
	assert.Equal(t, 0, e.mem.Len())
	assert.Equal(t, 0, e.nav.count(), "logout does not redirect")
}

func TestLogout_BackendDownStillPurges(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)

	e.ts.Close()
	require.NoError(t, e.m.Logout(ctx))
	assert.False(t, e.m.Authenticated())
	assert.Equal(t, 0, e.mem.Len())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "diretoria", "dir123")
	require.NoError(t, err)

	restored := NewManager(Config{
		BaseURL: e.m.BaseURL(),
		Storage: NewAuthStorage(e.mem),
	})
	require.NoError(t, restored.Restore(ctx))
	assert.True(t, restored.Authenticated())
	require.NotNil(t, restored.Profile())
	assert.Equal(t, "diretoria", restored.Profile().Username)

	resp, err := restored.Client(5*time.Second).Get(restored.BaseURL() + "/solicitacoes/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAuthEndpointsNeverRefresh(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	_, err := e.m.Login(ctx, "admin", "admin123")
	require.NoError(t, err)
	e.srv.InvalidateAccessTokens()

	resp, err := e.get(ctx, PathProfile)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, int64(0), e.srv.RefreshCalls())
	assert.True(t, IsAuthEndpoint("/api/usuarios/auth/refresh/"))
	assert.False(t, IsAuthEndpoint("/api/usuarios/"))
}

func TestInspectToken(t *testing.T) {
	srv := fakebackend.New(fakebackend.Options{AccessTTL: time.Hour})
	require.NoError(t, srv.SeedDemoUsers())
	access, refresh, err := srv.IssueTokens("estoque")
	require.NoError(t, err)

	info, err := InspectToken(access)
	require.NoError(t, err)
	assert.Equal(t, "access", info.Type)
	assert.Equal(t, "estoque", info.Subject)
	assert.NotEmpty(t, info.ID)
	now := time.Now()
	assert.False(t, info.Expired(now))
	assert.InDelta(t, time.Hour.Seconds(), info.Remaining(now).Seconds(), 5)
	assert.True(t, info.Expired(now.Add(2*time.Hour)))
	assert.Zero(t, info.Remaining(now.Add(2*time.Hour)))

	info, err = InspectToken(refresh)
	require.NoError(t, err)
	assert.Equal(t, "refresh", info.Type)

	_, err = InspectToken("not-a-jwt")
	assert.Error(t, err)
}

func TestRefresh_Explicit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t, fakebackend.Options{}, nil)
	before, err := e.m.Login(ctx, "estoque", "estoque123")
	require.NoError(t, err)

	after, err := e.m.Refresh(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, before.Tokens.Access, after.Tokens.Access)
	assert.Equal(t, before.Tokens.Refresh, after.Tokens.Refresh)
	assert.Equal(t, "estoque", after.Profile.Username)
	assert.Equal(t, int64(1), e.srv.RefreshCalls())

	require.NoError(t, e.m.Logout(ctx))
	_, err = e.m.Refresh(ctx)
	assert.ErrorIs(t, err, apperr.ErrSessionExpired)
}
