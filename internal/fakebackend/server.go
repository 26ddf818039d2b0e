// Package fakebackend is an in-memory implementation of the purchasing API
// used by tests and by the dev-backend command. It issues real HS256 JWTs,
// enforces the same status transitions and role checks as the production
// backend and exposes hooks to invalidate tokens and slow down refreshes.
package fakebackend

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
)

// Prefix is where the API is mounted.
const Prefix = "/api"

// Options configures a Server.
type Options struct {
	// Secret signs tokens. A random one is generated when empty.
	Secret []byte

	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// RefreshDelay is slept inside the refresh handler before answering.
	RefreshDelay time.Duration

	// OmitRefresh makes login return only an access token.
	OmitRefresh bool

	// PageSize enables the paginated list envelope. Zero returns bare arrays.
	PageSize int

	Logger *logging.Logger
}

type account struct {
	model.User
	hash        []byte
	permissions map[string]bool
}

// Server is the backend double. The zero value is not usable; call New.
type Server struct {
	opts Options
	log  *logging.Logger
	mux  *http.ServeMux

	accessGen  atomic.Int64
	refreshGen atomic.Int64

	refreshCalls atomic.Int64
	loginCalls   atomic.Int64
	logoutCalls  atomic.Int64
	profileFail  atomic.Bool
	refreshDelay atomic.Int64

	mu            sync.Mutex
	users         map[int64]*account
	nextUserID    int64
	revoked       map[string]bool
	solicitations map[int64]*model.Solicitation
	nextSolID     int64
	nextNumero    int64
	nextQuoteID   int64
	adminLog      []model.AdminLogEntry
	loginLog      []model.LoginLogEntry
	settings      []model.Setting
	sla           []model.SLASetting
	limits        []model.ApprovalLimit
	catalog       []model.CatalogItem
}

// New returns a Server seeded with default settings and catalog but no
// users.
func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte(uuid.NewString())
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 24 * time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 7 * 24 * time.Hour
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	s := &Server{
		opts:          opts,
		log:           logger,
		users:         make(map[int64]*account),
		revoked:       make(map[string]bool),
		solicitations: make(map[int64]*model.Solicitation),
		nextNumero:    1000,
	}
	s.refreshDelay.Store(int64(opts.RefreshDelay))
	s.seedDefaults()
	s.routes()
	return s
}

// Handler returns the HTTP handler serving the API under Prefix.
func (s *Server) Handler() http.Handler {
	return requestid.Middleware(s.mux)
}

func (s *Server) routes() {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+Prefix+"/usuarios/auth/login/{$}", s.handleLogin)
	mux.HandleFunc("POST "+Prefix+"/usuarios/auth/refresh/{$}", s.handleRefresh)
	mux.HandleFunc("POST "+Prefix+"/usuarios/auth/logout/{$}", s.authed(s.handleLogout))
	mux.HandleFunc("GET "+Prefix+"/usuarios/auth/profile/{$}", s.authed(s.handleProfile))

	mux.HandleFunc("GET "+Prefix+"/solicitacoes/{$}", s.authed(s.handleListSolicitations))
	mux.HandleFunc("POST "+Prefix+"/solicitacoes/{$}", s.authed(s.handleCreateSolicitation))
	mux.HandleFunc("GET "+Prefix+"/solicitacoes/catalogo/{$}", s.authed(s.handleCatalog))
	mux.HandleFunc("GET "+Prefix+"/solicitacoes/{id}/{$}", s.authed(s.handleGetSolicitation))
	mux.HandleFunc("PATCH "+Prefix+"/solicitacoes/{id}/{$}", s.authed(s.handleUpdateSolicitation))
	mux.HandleFunc("POST "+Prefix+"/solicitacoes/{id}/update-status/{$}", s.authed(s.handleUpdateStatus))
	mux.HandleFunc("POST "+Prefix+"/solicitacoes/{id}/approval/{$}", s.authed(s.handleApproval))
	mux.HandleFunc("GET "+Prefix+"/solicitacoes/{id}/cotacoes/{$}", s.authed(s.handleListQuotations))
	mux.HandleFunc("POST "+Prefix+"/solicitacoes/{id}/cotacoes/{$}", s.authed(s.handleAddQuotation))
	mux.HandleFunc("POST "+Prefix+"/solicitacoes/{id}/cotacoes/{qid}/select/{$}", s.authed(s.handleSelectQuotation))

	mux.HandleFunc("GET "+Prefix+"/usuarios/{$}", s.authed(s.handleListUsers))
	mux.HandleFunc("POST "+Prefix+"/usuarios/{$}", s.authed(s.handleCreateUser))
	mux.HandleFunc("GET "+Prefix+"/usuarios/{id}/{$}", s.authed(s.handleGetUser))
	mux.HandleFunc("PATCH "+Prefix+"/usuarios/{id}/{$}", s.authed(s.handleUpdateUser))

	mux.HandleFunc("GET "+Prefix+"/auditoria/admin/{$}", s.authed(s.handleAdminLog))
	mux.HandleFunc("GET "+Prefix+"/auditoria/login/{$}", s.authed(s.handleLoginLog))

	mux.HandleFunc("GET "+Prefix+"/configuracoes/{$}", s.authed(s.handleSettings))
	mux.HandleFunc("GET "+Prefix+"/configuracoes/sla/{$}", s.authed(s.handleSLA))
	mux.HandleFunc("GET "+Prefix+"/configuracoes/limites/{$}", s.authed(s.handleLimits))

	s.mux = mux
}

// InvalidateAccessTokens makes every access token issued so far fail with
// 401, as if it had expired.
func (s *Server) InvalidateAccessTokens() {
	s.accessGen.Add(1)
}

// InvalidateRefreshTokens makes every refresh token issued so far fail.
func (s *Server) InvalidateRefreshTokens() {
	s.refreshGen.Add(1)
}

// RefreshCalls returns how many refresh requests were received.
func (s *Server) RefreshCalls() int64 {
	return s.refreshCalls.Load()
}

// LoginCalls returns how many login requests were received.
func (s *Server) LoginCalls() int64 {
	return s.loginCalls.Load()
}

// LogoutCalls returns how many logout requests were received.
func (s *Server) LogoutCalls() int64 {
	return s.logoutCalls.Load()
}

// SetProfileFailure makes the profile endpoint answer 500 while on.
func (s *Server) SetProfileFailure(on bool) {
	s.profileFail.Store(on)
}

// SetRefreshDelay changes the delay applied to refresh responses.
func (s *Server) SetRefreshDelay(d time.Duration) {
	s.refreshDelay.Store(int64(d))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeFieldErrors(w http.ResponseWriter, fields map[string][]string) {
	writeJSON(w, http.StatusBadRequest, fields)
}

func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	return id, err == nil && id > 0
}

// writeList renders items as a bare array or, when paging is enabled, as
// one page of the DRF envelope.
func writeList[T any](s *Server, w http.ResponseWriter, r *http.Request, items []T) {
	if items == nil {
		items = []T{}
	}
	if s.opts.PageSize <= 0 {
		writeJSON(w, http.StatusOK, items)
		return
	}

	page := 1
	if p, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil && p > 0 {
		page = p
	}
	n := len(items)
	lo := (page - 1) * s.opts.PageSize
	if lo >= n && page > 1 {
		writeDetail(w, http.StatusNotFound, "Página inválida.")
		return
	}
	hi := min(lo+s.opts.PageSize, n)

	link := func(p int) *string {
		u := *r.URL
		q := u.Query()
		q.Set("page", strconv.Itoa(p))
		u.RawQuery = q.Encode()
		str := u.String()
		return &str
	}
	var next, prev *string
	if hi < n {
		next = link(page + 1)
	}
	if page > 1 {
		prev = link(page - 1)
	}

	writeJSON(w, http.StatusOK, model.Page[T]{
		Count:    n,
		Next:     next,
		Previous: prev,
		Results:  items[lo:hi],
	})
}
