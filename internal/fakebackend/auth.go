package fakebackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

type claims struct {
	TokenType  string `json:"token_type"`
	UserID     int64  `json:"user_id"`
	Generation int64  `json:"gen"`
	jwt.RegisteredClaims
}

type ctxKey struct{}

func userFrom(ctx context.Context) *account {
	a, _ := ctx.Value(ctxKey{}).(*account)
	return a
}

// AddUser creates an active account with the default permissions of role
// and returns its id.
func (s *Server) AddUser(username, password, nome, role, departamento string) (int64, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return 0, fmt.Errorf("user %q already exists", username)
		}
	}
	s.nextUserID++
	id := s.nextUserID
	s.users[id] = &account{
		User: model.User{
			ID:           id,
			Username:     username,
			Email:        username + "@compras.local",
			Nome:         nome,
			Perfil:       role,
			Departamento: departamento,
			IsActive:     true,
		},
		hash:        hash,
		permissions: access.PermissionsFor(role),
	}
	return id, nil
}

// IssueTokens mints a token pair for an existing user without going through
// login.
func (s *Server) IssueTokens(username string) (accessToken, refreshToken string, err error) {
	s.mu.Lock()
	u := s.findUserLocked(username)
	s.mu.Unlock()
	if u == nil {
		return "", "", fmt.Errorf("unknown user %q", username)
	}
	return s.issuePair(u)
}

func (s *Server) findUserLocked(username string) *account {
	for _, u := range s.users {
		if u.Username == username {
			return u
		}
	}
	return nil
}

func (s *Server) sign(u *account, tokenType string, gen int64, ttl time.Duration) (string, error) {
	now := time.Now()
	c := claims{
		TokenType:  tokenType,
		UserID:     u.ID,
		Generation: gen,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.Username,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(s.opts.Secret)
}

func (s *Server) issuePair(u *account) (string, string, error) {
	a, err := s.sign(u, tokenTypeAccess, s.accessGen.Load(), s.opts.AccessTTL)
	if err != nil {
		return "", "", err
	}
	r, err := s.sign(u, tokenTypeRefresh, s.refreshGen.Load(), s.opts.RefreshTTL)
	if err != nil {
		return "", "", err
	}
	return a, r, nil
}

var errTokenInvalid = errors.New("token is invalid or expired")

// verify parses raw and checks signature, expiry, type and generation.
func (s *Server) verify(raw, tokenType string) (*claims, error) {
	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		return s.opts.Secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, errTokenInvalid
	}
	if c.TokenType != tokenType {
		return nil, errTokenInvalid
	}

	gen := s.accessGen.Load()
	if tokenType == tokenTypeRefresh {
		gen = s.refreshGen.Load()
	}
	if c.Generation != gen {
		return nil, errTokenInvalid
	}
	return &c, nil
}

// authed rejects requests without a valid access token and stores the
// caller in the request context.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeDetail(w, http.StatusUnauthorized, "As credenciais de autenticação não foram fornecidas.")
			return
		}
		c, err := s.verify(raw, tokenTypeAccess)
		if err != nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}

		s.mu.Lock()
		u := s.users[c.UserID]
		s.mu.Unlock()
		if u == nil || !u.IsActive {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, u)))
	}
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	s.loginCalls.Add(1)

	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if body.Username == "" || body.Password == "" {
		fields := map[string][]string{}
		if body.Username == "" {
			fields["username"] = []string{"Este campo é obrigatório."}
		}
		if body.Password == "" {
			fields["password"] = []string{"Este campo é obrigatório."}
		}
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	u := s.findUserLocked(body.Username)
	s.mu.Unlock()

	if u == nil || !u.IsActive || bcrypt.CompareHashAndPassword(u.hash, []byte(body.Password)) != nil {
		s.recordLogin(r, body.Username, u, "Falha", "credenciais inválidas")
		s.log.WarnContext(r.Context(), "login rejected", logging.Username(body.Username))
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	accessToken, refreshToken, err := s.issuePair(u)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.recordLogin(r, body.Username, u, "Sucesso", "")
	s.log.InfoContext(r.Context(), "login", logging.Username(u.Username))

	resp := map[string]string{"access": accessToken}
	if !s.opts.OmitRefresh {
		resp["refresh"] = refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.refreshCalls.Add(1)

	if d := time.Duration(s.refreshDelay.Load()); d > 0 {
		select {
		case <-time.After(d):
		case <-r.Context().Done():
			return
		}
	}

	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Refresh == "" {
		writeFieldErrors(w, map[string][]string{"refresh": {"Este campo é obrigatório."}})
		return
	}

	c, err := s.verify(body.Refresh, tokenTypeRefresh)
	if err == nil {
		s.mu.Lock()
		if s.revoked[c.ID] {
			err = errTokenInvalid
		}
		s.mu.Unlock()
	}
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}

	s.mu.Lock()
	u := s.users[c.UserID]
	s.mu.Unlock()
	if u == nil || !u.IsActive {
		writeDetail(w, http.StatusUnauthorized, "User not found")
		return
	}

	accessToken, err := s.sign(u, tokenTypeAccess, s.accessGen.Load(), s.opts.AccessTTL)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.log.DebugContext(r.Context(), "token refreshed", logging.Username(u.Username))
	writeJSON(w, http.StatusOK, map[string]string{"access": accessToken})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.logoutCalls.Add(1)

	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Refresh == "" {
		writeDetail(w, http.StatusBadRequest, "Refresh token é obrigatório")
		return
	}
	c, err := s.verify(body.Refresh, tokenTypeRefresh)
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "Token inválido")
		return
	}

	s.mu.Lock()
	s.revoked[c.ID] = true
	s.mu.Unlock()

	s.log.InfoContext(r.Context(), "logout", logging.Username(userFrom(r.Context()).Username))
	writeDetail(w, http.StatusOK, "Logout realizado com sucesso")
}

type profileResponse struct {
	model.User
	Permissions map[string]bool `json:"permissions"`
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	if s.profileFail.Load() {
		writeDetail(w, http.StatusInternalServerError, "Erro interno")
		return
	}
	u := userFrom(r.Context())

	s.mu.Lock()
	resp := profileResponse{User: u.User, Permissions: clonePerms(u.permissions)}
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, resp)
}

func clonePerms(in map[string]bool) map[string]bool {
	out := make(map[string]bool, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func (s *Server) recordLogin(r *http.Request, attempted string, u *account, status, reason string) {
	entry := model.LoginLogEntry{
		UsernameTentativa: attempted,
		Status:            status,
		IPAddress:         clientIP(r),
		UserAgent:         r.UserAgent(),
		MotivoFalha:       reason,
		Timestamp:         time.Now().UTC(),
	}
	if u != nil {
		entry.UsuarioNome = u.Nome
	}

	s.mu.Lock()
	entry.ID = int64(len(s.loginLog) + 1)
	s.loginLog = append(s.loginLog, entry)
	s.mu.Unlock()
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		ip, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(ip)
	}
	host := r.RemoteAddr
	if i := strings.LastIndex(host, ":"); i > 0 {
		host = host[:i]
	}
	return host
}

func (s *Server) audit(r *http.Request, acao, modulo, detalhes string, solicitationID *int64) {
	u := userFrom(r.Context())
	name := "sistema"
	if u != nil {
		name = u.Username
	}
	entry := model.AdminLogEntry{
		Usuario:       name,
		Acao:          acao,
		Modulo:        modulo,
		Detalhes:      detalhes,
		SolicitacaoID: solicitationID,
		IPAddress:     clientIP(r),
		Timestamp:     time.Now().UTC(),
	}
	s.mu.Lock()
	entry.ID = int64(len(s.adminLog) + 1)
	s.adminLog = append(s.adminLog, entry)
	s.mu.Unlock()
	s.log.DebugContext(r.Context(), "audit", slog.String("acao", acao), slog.String("modulo", modulo))
}
