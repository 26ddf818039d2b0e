package fakebackend

import (
	"fmt"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// DemoUser is an account created by SeedDemoUsers.
type DemoUser struct {
	Username     string
	Password     string
	Nome         string
	Perfil       string
	Departamento workflow.Department
}

// DemoUsers has one account per role.
var DemoUsers = []DemoUser{
	{Username: "admin", Password: "admin123", Nome: "Administrador", Perfil: access.RoleAdmin, Departamento: workflow.DeptTI},
	{Username: "solicitante", Password: "solic123", Nome: "Ana Solicitante", Perfil: access.RoleSolicitante, Departamento: workflow.DeptManutencao},
	{Username: "estoque", Password: "estoque123", Nome: "Bruno Estoque", Perfil: access.RoleEstoque, Departamento: workflow.DeptOperacoes},
	{Username: "suprimentos", Password: "supri123", Nome: "Carla Suprimentos", Perfil: access.RoleSuprimentos, Departamento: workflow.DeptFinanceiro},
	{Username: "diretoria", Password: "dir123", Nome: "Diego Diretoria", Perfil: access.RoleGerenciaDiretoria, Departamento: workflow.DeptFinanceiro},
}

// SeedDemoUsers creates every DemoUsers account.
func (s *Server) SeedDemoUsers() error {
	for _, u := range DemoUsers {
		if _, err := s.AddUser(u.Username, u.Password, u.Nome, u.Perfil, string(u.Departamento)); err != nil {
			return fmt.Errorf("seed %s: %w", u.Username, err)
		}
	}
	return nil
}

// ForceStatus moves a solicitation to status without any transition or
// permission check.
func (s *Server) ForceStatus(id int64, status workflow.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	sol := s.solicitations[id]
	if sol == nil {
		return fmt.Errorf("solicitation %d not found", id)
	}
	sol.Status = status
	sol.ProximaAcao = nextAction(status)
	return nil
}
