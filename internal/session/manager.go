// Package session owns the credential pair and user profile of a client
// session. It authorizes outbound requests, refreshes the access token
// when the backend rejects it and tears the session down when refresh is
// no longer possible.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/metrics"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
)

// Auth endpoints, relative to the API base URL.
const (
	PathLogin   = "/usuarios/auth/login/"
	PathProfile = "/usuarios/auth/profile/"
	PathLogout  = "/usuarios/auth/logout/"
	PathRefresh = "/usuarios/auth/refresh/"
)

// ErrProfileUnavailable is wrapped into the error Login returns when tokens
// were issued but the profile could not be loaded.
var ErrProfileUnavailable = errors.New("profile unavailable")

// IsAuthEndpoint reports whether path belongs to the auth API. Requests to
// these endpoints never trigger a refresh.
func IsAuthEndpoint(path string) bool {
	return strings.Contains(path, "/usuarios/auth/")
}

// Config configures a Manager.
type Config struct {
	// BaseURL is the API root, e.g. http://127.0.0.1:8000/api.
	BaseURL string
	// Base performs the raw HTTP exchanges. Defaults to http.DefaultTransport.
	Base http.RoundTripper
	// Timeout bounds each auth call. Defaults to 10s.
	Timeout time.Duration

	Storage   *AuthStorage
	Navigator Navigator
	Logger    *logging.Logger
	Metrics   *metrics.Metrics
}

// Manager is the only writer of session state.
type Manager struct {
	baseURL string
	base    http.RoundTripper
	raw     *http.Client
	store   *AuthStorage
	nav     Navigator
	logger  *logging.Logger
	metrics *metrics.Metrics

	mu         sync.Mutex
	tokens     *Tokens
	profile    *UserProfile
	refreshing bool

	flight singleflight.Group

	subMu   sync.Mutex
	subs    map[int]func(Event)
	nextSub int
}

// NewManager builds a Manager with an empty session. Call Restore to load a
// persisted one.
func NewManager(cfg Config) *Manager {
	base := cfg.Base
	if base == nil {
		base = http.DefaultTransport
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	nav := cfg.Navigator
	if nav == nil {
		nav = NopNavigator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	return &Manager{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		base:    base,
		raw:     &http.Client{Transport: base, Timeout: timeout},
		store:   cfg.Storage,
		nav:     nav,
		logger:  logger,
		metrics: cfg.Metrics,
		subs:    make(map[int]func(Event)),
	}
}

// BaseURL returns the API root the manager talks to.
func (m *Manager) BaseURL() string {
	return m.baseURL
}

// Restore loads tokens and profile from durable storage.
func (m *Manager) Restore(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	tokens, err := m.store.GetTokens(ctx)
	if err != nil {
		return fmt.Errorf("restore tokens: %w", err)
	}
	profile, err := m.store.GetProfile(ctx)
	if err != nil {
		return fmt.Errorf("restore profile: %w", err)
	}

	m.mu.Lock()
	m.tokens = tokens
	if tokens != nil {
		m.profile = profile
	} else {
		m.profile = nil
	}
	m.mu.Unlock()
	return nil
}

// Session returns a snapshot of the current session, or nil when logged out.
func (m *Manager) Session() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() *Session {
	if m.tokens == nil {
		return nil
	}
	return &Session{Tokens: *m.tokens, Profile: cloneProfile(m.profile)}
}

// Profile returns a copy of the current profile, or nil.
func (m *Manager) Profile() *UserProfile {
	m.mu.Lock()
	defer m.mu.Unlock()
	return cloneProfile(m.profile)
}

// Authenticated reports whether an access token is held.
func (m *Manager) Authenticated() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokens != nil
}

// Authorize attaches the current access token to req and returns it. It
// does nothing and returns "" when there is no session.
func (m *Manager) Authorize(req *http.Request) string {
	m.mu.Lock()
	var access string
	if m.tokens != nil {
		access = m.tokens.Access
	}
	m.mu.Unlock()

	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return access
}

type credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login exchanges credentials for tokens, persists them and loads the
// profile. If the profile cannot be loaded the session is kept without one
// and returned along with an error wrapping ErrProfileUnavailable.
func (m *Manager) Login(ctx context.Context, username, password string) (*Session, error) {
	log := m.logger.With(logging.Username(username))

	resp, err := m.postJSON(ctx, PathLogin, "", credentials{Username: username, Password: password})
	if err != nil {
		m.metrics.ObserveLogin(false)
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusBadRequest,
		resp.StatusCode == http.StatusUnauthorized,
		resp.StatusCode == http.StatusForbidden:
		m.metrics.ObserveLogin(false)
		msg := readDetail(resp.Body)
		log.WarnContext(ctx, "login rejected", logging.Status(resp.StatusCode))
		return nil, apperr.New(apperr.KindInvalidCredentials, "%s", msg)
	case resp.StatusCode >= 300:
		m.metrics.ObserveLogin(false)
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("login failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var tokens Tokens
	if err := json.NewDecoder(resp.Body).Decode(&tokens); err != nil {
		m.metrics.ObserveLogin(false)
		return nil, fmt.Errorf("decode login response: %w", err)
	}
	if tokens.Access == "" {
		m.metrics.ObserveLogin(false)
		return nil, fmt.Errorf("login response carries no access token")
	}

	m.mu.Lock()
	m.tokens = &tokens
	m.profile = nil
	err = m.persistLocked(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if err != nil {
		log.ErrorContext(ctx, "failed to persist tokens", logging.Error(err))
	}

	m.metrics.ObserveLogin(true)
	log.InfoContext(ctx, "logged in")
	m.emit(Event{Type: EventLogin, Session: snap, Username: username})

	if _, err := m.FetchProfile(ctx); err != nil {
		if apperr.KindOf(err) == apperr.KindSessionExpired {
			return nil, err
		}
		log.WarnContext(ctx, "profile unavailable after login", logging.Error(err))
		return m.Session(), fmt.Errorf("%w: %w", ErrProfileUnavailable, err)
	}
	return m.Session(), nil
}

// FetchProfile loads the profile of the current session and stores it.
// A 401 terminates the session.
func (m *Manager) FetchProfile(ctx context.Context) (*UserProfile, error) {
	m.mu.Lock()
	var access string
	if m.tokens != nil {
		access = m.tokens.Access
	}
	m.mu.Unlock()
	if access == "" {
		return nil, apperr.New(apperr.KindSessionExpired, "no active session")
	}

	req, err := m.newRequest(ctx, http.MethodGet, PathProfile, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+access)

	resp, err := m.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		if m.currentAccess() == access {
			m.expire(ctx, "profile rejected")
		}
		return nil, apperr.New(apperr.KindSessionExpired, "profile request rejected")
	}
	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("profile request failed: %d - %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile UserProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}

	m.mu.Lock()
	if m.tokens == nil {
		// Logged out while the request was in flight.
		m.mu.Unlock()
		return &profile, nil
	}
	m.profile = cloneProfile(&profile)
	perr := m.persistLocked(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if perr != nil {
		m.logger.ErrorContext(ctx, "failed to persist profile", logging.Error(perr))
	}

	m.emit(Event{Type: EventProfile, Session: snap, Username: profile.Username})
	return &profile, nil
}

// Logout revokes the refresh token on the backend if it can and then purges
// the session unconditionally. Calling it without a session is a no-op
// apart from the purge.
func (m *Manager) Logout(ctx context.Context) error {
	m.mu.Lock()
	var tokens *Tokens
	if m.tokens != nil {
		t := *m.tokens
		tokens = &t
	}
	username := ""
	if m.profile != nil {
		username = m.profile.Username
	}
	m.mu.Unlock()

	if tokens != nil && tokens.Refresh != "" {
		if err := m.revoke(ctx, tokens); err != nil {
			m.logger.WarnContext(ctx, "logout request failed", logging.Error(err))
		}
	}

	had, err := m.purge(ctx)
	if had {
		m.logger.InfoContext(ctx, "logged out", logging.Username(username))
		m.emit(Event{Type: EventLogout, Username: username})
	}
	return err
}

func (m *Manager) revoke(ctx context.Context, tokens *Tokens) error {
	resp, err := m.postJSON(ctx, PathLogout, tokens.Access, map[string]string{"refresh": tokens.Refresh})
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("logout returned %d", resp.StatusCode)
	}
	return nil
}

// HandleUnauthorized is called with a request that came back 401. It makes
// sure a fresh access token exists, refreshing at most once no matter how
// many requests fail together, and returns a copy of failed carrying the
// new credential and a rewound body.
func (m *Manager) HandleUnauthorized(ctx context.Context, failed *http.Request) (*http.Request, error) {
	used := strings.TrimPrefix(failed.Header.Get("Authorization"), "Bearer ")

	access, err := m.refreshAccess(ctx, used)
	if err != nil {
		return nil, err
	}

	retry := failed.Clone(ctx)
	if failed.GetBody != nil {
		body, err := failed.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		retry.Body = body
	} else if failed.Body != nil && failed.Body != http.NoBody {
		return nil, fmt.Errorf("cannot replay %s %s: body is not rewindable", failed.Method, failed.URL.Path)
	}
	retry.Header.Set("Authorization", "Bearer "+access)
	return retry, nil
}

// Refresh replaces the current access token using the refresh token. It
// shares the in-flight refresh when one is running.
func (m *Manager) Refresh(ctx context.Context) (*Session, error) {
	if _, err := m.refreshAccess(ctx, m.currentAccess()); err != nil {
		return nil, err
	}
	return m.Session(), nil
}

// refreshAccess returns an access token newer than used. Concurrent callers
// share one refresh call; a caller whose token is already stale gets the
// current one without any call.
func (m *Manager) refreshAccess(ctx context.Context, used string) (string, error) {
	m.mu.Lock()
	if m.tokens == nil {
		m.mu.Unlock()
		return "", apperr.New(apperr.KindSessionExpired, "no active session")
	}
	if used != "" && m.tokens.Access != used {
		access := m.tokens.Access
		m.mu.Unlock()
		return access, nil
	}
	joining := m.refreshing
	m.mu.Unlock()

	if joining {
		m.metrics.ObserveRefreshWaiter()
	}

	// The refresh outlives any single waiter; each waiter only stops
	// waiting when its own context ends.
	ch := m.flight.DoChan("refresh", func() (any, error) {
		return m.refresh(context.WithoutCancel(ctx), used)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

type refreshResponse struct {
	Access string `json:"access"`
}

func (m *Manager) refresh(ctx context.Context, used string) (string, error) {
	m.mu.Lock()
	if m.tokens == nil {
		m.mu.Unlock()
		return "", apperr.New(apperr.KindSessionExpired, "no active session")
	}
	if used != "" && m.tokens.Access != used {
		access := m.tokens.Access
		m.mu.Unlock()
		return access, nil
	}
	current := *m.tokens
	m.refreshing = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.refreshing = false
		m.mu.Unlock()
	}()

	if current.Refresh == "" {
		m.metrics.ObserveRefresh(metrics.RefreshExpired)
		m.expire(ctx, "no refresh token")
		return "", apperr.New(apperr.KindSessionExpired, "no refresh token")
	}

	start := time.Now()
	resp, err := m.postJSON(ctx, PathRefresh, "", map[string]string{"refresh": current.Refresh})
	if err != nil {
		m.metrics.ObserveRefresh(metrics.RefreshNetwork)
		m.logger.WarnContext(ctx, "token refresh failed", logging.Error(err))
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		m.metrics.ObserveRefresh(metrics.RefreshExpired)
		m.expire(ctx, fmt.Sprintf("refresh rejected with %d", resp.StatusCode))
		return "", apperr.New(apperr.KindSessionExpired, "refresh token rejected")
	case resp.StatusCode >= 300:
		m.metrics.ObserveRefresh(metrics.RefreshError)
		return "", fmt.Errorf("refresh failed: %d", resp.StatusCode)
	}

	var body refreshResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Access == "" {
		m.metrics.ObserveRefresh(metrics.RefreshError)
		return "", fmt.Errorf("refresh response carries no access token")
	}

	m.mu.Lock()
	if m.tokens == nil || m.tokens.Refresh != current.Refresh {
		// Logged out, or a new login happened, while refreshing.
		m.mu.Unlock()
		m.metrics.ObserveRefresh(metrics.RefreshExpired)
		return "", apperr.New(apperr.KindSessionExpired, "session ended during refresh")
	}
	m.tokens = &Tokens{Access: body.Access, Refresh: current.Refresh}
	perr := m.persistLocked(ctx)
	snap := m.snapshotLocked()
	m.mu.Unlock()
	if perr != nil {
		m.logger.ErrorContext(ctx, "failed to persist refreshed tokens", logging.Error(perr))
	}

	m.metrics.ObserveRefresh(metrics.RefreshSuccess)
	m.logger.DebugContext(ctx, "access token refreshed", logging.Duration(time.Since(start).Milliseconds()))
	m.emit(Event{Type: EventRefreshed, Session: snap})
	return body.Access, nil
}

// expire terminates the session after an irrecoverable failure and sends
// the user to the login boundary unless already there.
func (m *Manager) expire(ctx context.Context, reason string) {
	had, err := m.purge(ctx)
	if err != nil {
		m.logger.ErrorContext(ctx, "failed to clear stored session", logging.Error(err))
	}
	if m.nav.Location() != LoginPath {
		m.nav.RedirectToLogin()
	}
	if had {
		m.logger.WarnContext(ctx, "session expired", slog.String("reason", reason))
		m.emit(Event{Type: EventExpired})
	}
}

// purge drops tokens and profile from memory and storage together. It
// reports whether there was anything to drop.
func (m *Manager) purge(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	had := m.tokens != nil || m.profile != nil
	m.tokens = nil
	m.profile = nil
	if m.store == nil {
		return had, nil
	}
	return had, m.store.Clear(context.WithoutCancel(ctx))
}

func (m *Manager) persistLocked(ctx context.Context) error {
	if m.store == nil {
		return nil
	}
	return m.store.Save(context.WithoutCancel(ctx), m.tokens, m.profile)
}

func (m *Manager) currentAccess() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.tokens == nil {
		return ""
	}
	return m.tokens.Access
}

func (m *Manager) newRequest(ctx context.Context, method, path string, body []byte) (*http.Request, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, m.baseURL+path, r)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	requestid.Ensure(req)
	return req, nil
}

func (m *Manager) postJSON(ctx context.Context, path, access string, payload any) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := m.newRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	if access != "" {
		req.Header.Set("Authorization", "Bearer "+access)
	}
	return m.do(req)
}

// do sends req on the raw client, classifying transport failures.
func (m *Manager) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := m.raw.Do(req)
	if err != nil {
		m.metrics.ObserveRequest(req.Method, 0, time.Since(start))
		return nil, apperr.Wrap(apperr.KindNetwork, err, req.Method+" "+req.URL.Path)
	}
	m.metrics.ObserveRequest(req.Method, resp.StatusCode, time.Since(start))
	return resp, nil
}

// readDetail extracts a human message from a DRF error body.
func readDetail(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, 64<<10))
	var body map[string]any
	if err := json.Unmarshal(data, &body); err == nil {
		for _, key := range []string{"detail", "error", "non_field_errors", "message"} {
			switch v := body[key].(type) {
			case string:
				return v
			case []any:
				if len(v) > 0 {
					if s, ok := v[0].(string); ok {
						return s
					}
				}
			}
		}
	}
	if s := strings.TrimSpace(string(data)); s != "" && len(s) < 200 {
		return s
	}
	return "credentials rejected"
}
