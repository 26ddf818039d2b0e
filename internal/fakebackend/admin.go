package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// adminOnly answers 403 and returns false unless the caller is an admin.
func adminOnly(w http.ResponseWriter, r *http.Request) bool {
	u := userFrom(r.Context())
	if u == nil || !access.Has(u.permissions, access.IsAdmin) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return false
	}
	return true
}

func (s *Server) handleListUsers(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	s.mu.Lock()
	out := make([]model.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u.User)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Nome < out[j].Nome })
	writeList(s, w, r, out)
}

func (s *Server) handleCreateUser(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}

	var body model.NewUser
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	fields := map[string][]string{}
	if strings.TrimSpace(body.Username) == "" {
		fields["username"] = []string{"Este campo é obrigatório."}
	}
	if utf8.RuneCountInString(body.Password) < 6 {
		fields["password"] = []string{"A senha deve ter pelo menos 6 caracteres."}
	}
	if strings.TrimSpace(body.Nome) == "" {
		fields["nome"] = []string{"Este campo é obrigatório."}
	}
	if !access.ValidRole(body.Perfil) {
		fields["perfil"] = []string{fmt.Sprintf("%q não é um escolha válido.", body.Perfil)}
	}
	if _, err := workflow.ParseDepartment(body.Departamento); err != nil {
		fields["departamento"] = []string{fmt.Sprintf("%q não é um escolha válido.", body.Departamento)}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	exists := s.findUserLocked(body.Username) != nil
	s.mu.Unlock()
	if exists {
		writeFieldErrors(w, map[string][]string{"username": {"Um usuário com este nome de usuário já existe."}})
		return
	}

	id, err := s.AddUser(body.Username, body.Password, body.Nome, body.Perfil, body.Departamento)
	if err != nil {
		writeFieldErrors(w, map[string][]string{"username": {err.Error()}})
		return
	}

	s.mu.Lock()
	u := s.users[id]
	if body.Email != "" {
		u.Email = body.Email
	}
	out := u.User
	s.mu.Unlock()

	s.audit(r, "CREATE", "usuarios", fmt.Sprintf("Usuário criado - %s", out.Username), nil)
	writeJSON(w, http.StatusCreated, out)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	id, ok := pathID(r, "id")
	s.mu.Lock()
	u := s.users[id]
	var out model.User
	if u != nil {
		out = u.User
	}
	s.mu.Unlock()
	if !ok || u == nil {
		writeDetail(w, http.StatusNotFound, "Não encontrado.")
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateUser(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusNotFound, "Não encontrado.")
		return
	}

	var patch struct {
		model.UserPatch
		Password *string `json:"password,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if patch.Perfil != nil && !access.ValidRole(*patch.Perfil) {
		writeFieldErrors(w, map[string][]string{"perfil": {fmt.Sprintf("%q não é um escolha válido.", *patch.Perfil)}})
		return
	}
	if patch.Departamento != nil {
		if _, err := workflow.ParseDepartment(*patch.Departamento); err != nil {
			writeFieldErrors(w, map[string][]string{"departamento": {fmt.Sprintf("%q não é um escolha válido.", *patch.Departamento)}})
			return
		}
	}
	var hash []byte
	if patch.Password != nil {
		if utf8.RuneCountInString(*patch.Password) < 6 {
			writeFieldErrors(w, map[string][]string{"password": {"A senha deve ter pelo menos 6 caracteres."}})
			return
		}
		h, err := bcrypt.GenerateFromPassword([]byte(*patch.Password), bcrypt.MinCost)
		if err != nil {
			writeDetail(w, http.StatusInternalServerError, err.Error())
			return
		}
		hash = h
	}

	s.mu.Lock()
	u := s.users[id]
	if u == nil {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Não encontrado.")
		return
	}
	if patch.Email != nil {
		u.Email = *patch.Email
	}
	if patch.Nome != nil {
		u.Nome = *patch.Nome
	}
	if patch.Perfil != nil {
		u.Perfil = *patch.Perfil
		u.permissions = access.PermissionsFor(u.Perfil)
	}
	if patch.Departamento != nil {
		u.Departamento = *patch.Departamento
	}
	if patch.IsActive != nil {
		u.IsActive = *patch.IsActive
	}
	if hash != nil {
		u.hash = hash
	}
	out := u.User
	s.mu.Unlock()

	s.audit(r, "UPDATE", "usuarios", fmt.Sprintf("Usuário atualizado - %s", out.Username), nil)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAdminLog(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	acao := r.URL.Query().Get("acao")
	usuario := r.URL.Query().Get("usuario")

	s.mu.Lock()
	out := make([]model.AdminLogEntry, 0, len(s.adminLog))
	for _, e := range s.adminLog {
		if acao != "" && e.Acao != acao {
			continue
		}
		if usuario != "" && e.Usuario != usuario {
			continue
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	slices.Reverse(out)
	writeList(s, w, r, out)
}

func (s *Server) handleLoginLog(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	status := r.URL.Query().Get("status")

	s.mu.Lock()
	out := make([]model.LoginLogEntry, 0, len(s.loginLog))
	for _, e := range s.loginLog {
		if status != "" && e.Status != status {
			continue
		}
		out = append(out, e)
	}
	s.mu.Unlock()

	slices.Reverse(out)
	writeList(s, w, r, out)
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	s.mu.Lock()
	out := slices.Clone(s.settings)
	s.mu.Unlock()
	writeList(s, w, r, out)
}

func (s *Server) handleSLA(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	s.mu.Lock()
	out := slices.Clone(s.sla)
	s.mu.Unlock()
	writeList(s, w, r, out)
}

func (s *Server) handleLimits(w http.ResponseWriter, r *http.Request) {
	if !adminOnly(w, r) {
		return
	}
	s.mu.Lock()
	out := slices.Clone(s.limits)
	s.mu.Unlock()
	writeList(s, w, r, out)
}

func (s *Server) seedDefaults() {
	s.settings = []model.Setting{
		{ID: 1, Chave: "LIMITE_GERENCIA", Valor: "5000.00", Tipo: "decimal", Descricao: "Valor máximo aprovado pela gerência"},
		{ID: 2, Chave: "LIMITE_DIRETORIA", Valor: "15000.00", Tipo: "decimal", Descricao: "Valor máximo aprovado pela diretoria"},
		{ID: 3, Chave: "SLA_PADRAO_DIAS", Valor: "3", Tipo: "int", Descricao: "SLA padrão em dias"},
	}

	for i, d := range workflow.Departments() {
		s.sla = append(s.sla, model.SLASetting{
			ID:           int64(i + 1),
			Departamento: string(d),
			SLAUrgente:   1,
			SLAAlta:      2,
			SLANormal:    3,
			SLABaixa:     5,
			Ativo:        true,
		})
	}

	s.limits = []model.ApprovalLimit{
		{ID: 1, Nome: "Gerência", ValorMinimo: 0, ValorMaximo: 5000, Aprovador: "Gerência", Ativo: true},
		{ID: 2, Nome: "Diretoria", ValorMinimo: 5000.01, ValorMaximo: 15000, Aprovador: "Diretoria", Ativo: true},
		{ID: 3, Nome: "Aprovação Especial", ValorMinimo: 15000.01, ValorMaximo: 999999999, Aprovador: "Diretoria", Ativo: true},
	}

	s.catalog = []model.CatalogItem{
		{ID: 1, Codigo: "PAP-001", Nome: "Papel A4 (resma)", Categoria: "Escritório", Unidade: "PCT", Ativo: true},
		{ID: 2, Codigo: "TON-010", Nome: "Toner impressora laser", Categoria: "Escritório", Unidade: "UN", Ativo: true},
		{ID: 3, Codigo: "NB-100", Nome: "Notebook 14 polegadas", Categoria: "TI", Unidade: "UN", Ativo: true},
		{ID: 4, Codigo: "MON-024", Nome: "Monitor 24 polegadas", Categoria: "TI", Unidade: "UN", Ativo: true},
		{ID: 5, Codigo: "LUV-003", Nome: "Luva de proteção", Categoria: "EPI", Unidade: "PAR", Ativo: true},
		{ID: 6, Codigo: "OLE-020", Nome: "Óleo lubrificante 20L", Categoria: "Manutenção", Unidade: "GL", Ativo: true},
		{ID: 7, Codigo: "CAB-005", Nome: "Cabo de rede Cat6 (caixa)", Categoria: "TI", Unidade: "CX", Ativo: false},
	}
}
