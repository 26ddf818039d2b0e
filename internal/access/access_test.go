package access

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

func TestPermissionsFor(t *testing.T) {
	tests := []struct {
		role  string
		grant []Permission
	}{
		{role: RoleSolicitante, grant: []Permission{CanCreateSolicitation}},
		{role: RoleEstoque, grant: []Permission{CanManageStock}},
		{role: RoleSuprimentos, grant: []Permission{CanManageProcurement}},
		{role: RoleGerenciaDiretoria, grant: []Permission{CanApprove}},
		{role: RoleAdmin, grant: []Permission{IsAdmin, CanCreateSolicitation, CanManageStock, CanManageProcurement, CanApprove}},
		{role: "Visitante"},
	}

	all := []Permission{IsAdmin, CanCreateSolicitation, CanManageStock, CanManageProcurement, CanApprove}
	for _, tt := range tests {
		t.Run(tt.role, func(t *testing.T) {
			perms := PermissionsFor(tt.role)
			for _, p := range all {
				assert.Equal(t, contains(tt.grant, p), Has(perms, p), "permission %s", p)
			}
		})
	}
}

func contains(list []Permission, p Permission) bool {
	for _, x := range list {
		if x == p {
			return true
		}
	}
	return false
}

func TestRequire(t *testing.T) {
	err := Require(PermissionsFor(RoleEstoque), CanApprove)
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))

	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "can_approve", ae.Permission)

	assert.NoError(t, Require(PermissionsFor(RoleEstoque), CanManageStock))
	assert.Error(t, Require(nil, CanManageStock))
}

func TestHas_LegacyAlias(t *testing.T) {
	assert.True(t, Has(map[string]bool{"can_create_solicitacao": true}, CanCreateSolicitation))
	assert.False(t, Has(map[string]bool{"can_create_solicitacao": true}, CanApprove))
}

func TestCanMove(t *testing.T) {
	tests := []struct {
		name string
		role string
		from workflow.Status
		want bool
	}{
		{"stock moves new", RoleEstoque, workflow.StatusSolicitacao, true},
		{"stock cannot move requisition", RoleEstoque, workflow.StatusRequisicao, false},
		{"procurement moves requisition", RoleSuprimentos, workflow.StatusRequisicao, true},
		{"procurement moves purchase order", RoleSuprimentos, workflow.StatusPedidoCompras, true},
		{"procurement cannot approve", RoleSuprimentos, workflow.StatusAguardandoAprovacao, false},
		{"director approves", RoleGerenciaDiretoria, workflow.StatusAguardandoAprovacao, true},
		{"requester cannot move", RoleSolicitante, workflow.StatusSolicitacao, false},
		{"admin moves anything", RoleAdmin, workflow.StatusAguardandoEntrega, true},
		{"terminal needs admin", RoleSuprimentos, workflow.StatusPedidoFinalizado, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanMove(PermissionsFor(tt.role), tt.from))
		})
	}
}

func TestRequireMove(t *testing.T) {
	err := RequireMove(PermissionsFor(RoleSolicitante), workflow.StatusEmCotacao)
	var ae *apperr.Error
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "can_manage_procurement", ae.Permission)

	err = RequireMove(PermissionsFor(RoleSolicitante), workflow.StatusReprovado)
	require.True(t, errors.As(err, &ae))
	assert.Equal(t, "is_admin", ae.Permission)

	assert.NoError(t, RequireMove(PermissionsFor(RoleAdmin), workflow.StatusReprovado))
}

func TestStatusPermission(t *testing.T) {
	p, ok := StatusPermission(workflow.StatusAguardandoAprovacao)
	assert.True(t, ok)
	assert.Equal(t, CanApprove, p)

	_, ok = StatusPermission(workflow.StatusPedidoFinalizado)
	assert.False(t, ok)
}

func TestValidRole(t *testing.T) {
	for _, r := range Roles() {
		assert.True(t, ValidRole(r))
	}
	assert.False(t, ValidRole("Diretor"))
}
