// Package access gates client actions on the permission flags carried by
// the user profile. The backend remains the authority; these checks only
// keep the client from offering actions that would be refused.
package access

import (
	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// Permission is a key of the profile's permissions map.
type Permission string

const (
	IsAdmin               Permission = "is_admin"
	CanCreateSolicitation Permission = "can_create_solicitation"
	CanManageStock        Permission = "can_manage_stock"
	CanManageProcurement  Permission = "can_manage_procurement"
	CanApprove            Permission = "can_approve"
)

// legacyCreateAlias is still sent by older backends.
const legacyCreateAlias = "can_create_solicitacao"

// Role labels (perfil).
const (
	RoleSolicitante       = "Solicitante"
	RoleEstoque           = "Estoque"
	RoleSuprimentos       = "Suprimentos"
	RoleGerenciaDiretoria = "Gerência&Diretoria"
	RoleAdmin             = "Admin"
)

// Roles lists every role label.
func Roles() []string {
	return []string{RoleSolicitante, RoleEstoque, RoleSuprimentos, RoleGerenciaDiretoria, RoleAdmin}
}

// ValidRole reports whether role is a known label.
func ValidRole(role string) bool {
	for _, r := range Roles() {
		if r == role {
			return true
		}
	}
	return false
}

// PermissionsFor returns the default permission map of a role.
func PermissionsFor(role string) map[string]bool {
	admin := role == RoleAdmin
	create := role == RoleSolicitante || admin
	return map[string]bool{
		string(IsAdmin):               admin,
		string(CanCreateSolicitation): create,
		legacyCreateAlias:             create,
		string(CanManageStock):        role == RoleEstoque || admin,
		string(CanManageProcurement):  role == RoleSuprimentos || admin,
		string(CanApprove):            role == RoleGerenciaDiretoria || role == "Diretoria" || admin,
	}
}

// Has reports whether perms grants p. A nil map grants nothing.
func Has(perms map[string]bool, p Permission) bool {
	if perms[string(p)] {
		return true
	}
	return p == CanCreateSolicitation && perms[legacyCreateAlias]
}

// Require returns a forbidden error naming p when perms does not grant it.
func Require(perms map[string]bool, p Permission) error {
	if Has(perms, p) {
		return nil
	}
	return apperr.Forbidden(string(p))
}

var statusPermissions = map[workflow.Status]Permission{
	workflow.StatusSolicitacao:         CanManageStock,
	workflow.StatusRequisicao:          CanManageProcurement,
	workflow.StatusSuprimentos:         CanManageProcurement,
	workflow.StatusEmCotacao:           CanManageProcurement,
	workflow.StatusPedidoCompras:       CanManageProcurement,
	workflow.StatusAguardandoAprovacao: CanApprove,
	workflow.StatusAprovado:            CanManageProcurement,
	workflow.StatusCompraFeita:         CanManageProcurement,
	workflow.StatusAguardandoEntrega:   CanManageProcurement,
}

// StatusPermission returns the permission needed to move a solicitation out
// of status. Terminal and unknown statuses have none.
func StatusPermission(status workflow.Status) (Permission, bool) {
	p, ok := statusPermissions[status]
	return p, ok
}

// CanMove reports whether perms may move a solicitation out of from.
// Admins may move anything.
func CanMove(perms map[string]bool, from workflow.Status) bool {
	if Has(perms, IsAdmin) {
		return true
	}
	p, ok := statusPermissions[from]
	return ok && Has(perms, p)
}

// RequireMove is CanMove returning a forbidden error naming the missing
// permission.
func RequireMove(perms map[string]bool, from workflow.Status) error {
	if CanMove(perms, from) {
		return nil
	}
	if p, ok := statusPermissions[from]; ok {
		return apperr.Forbidden(string(p))
	}
	return apperr.Forbidden(string(IsAdmin))
}
