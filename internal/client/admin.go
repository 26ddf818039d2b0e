package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
)

func userPath(id int64) string {
	return fmt.Sprintf("/usuarios/%d/", id)
}

func (c *Client) ListUsers(ctx context.Context) ([]model.User, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	return list[model.User](ctx, c, "/usuarios/", nil, true)
}

func (c *Client) GetUser(ctx context.Context, id int64) (*model.User, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	var u model.User
	if err := c.call(ctx, http.MethodGet, userPath(id), nil, nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) CreateUser(ctx context.Context, in model.NewUser) (*model.User, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	var u model.User
	if err := c.call(ctx, http.MethodPost, "/usuarios/", nil, in, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *Client) UpdateUser(ctx context.Context, id int64, patch model.UserPatch) (*model.User, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	var u model.User
	if err := c.call(ctx, http.MethodPatch, userPath(id), nil, patch, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

// AdminLogFilter narrows the admin audit log. Empty fields match all.
type AdminLogFilter struct {
	Acao    string
	Usuario string
}

// AdminLog returns administrative audit records, newest first.
func (c *Client) AdminLog(ctx context.Context, f AdminLogFilter) ([]model.AdminLogEntry, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	q := url.Values{}
	if f.Acao != "" {
		q.Set("acao", f.Acao)
	}
	if f.Usuario != "" {
		q.Set("usuario", f.Usuario)
	}
	return list[model.AdminLogEntry](ctx, c, "/auditoria/admin/", q, true)
}

// LoginLog returns login attempts, optionally only those with status
// Sucesso or Falha.
func (c *Client) LoginLog(ctx context.Context, status string) ([]model.LoginLogEntry, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	q := url.Values{}
	if status != "" {
		q.Set("status", status)
	}
	return list[model.LoginLogEntry](ctx, c, "/auditoria/login/", q, true)
}

func (c *Client) Settings(ctx context.Context) ([]model.Setting, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	return list[model.Setting](ctx, c, "/configuracoes/", nil, true)
}

func (c *Client) SLASettings(ctx context.Context) ([]model.SLASetting, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	return list[model.SLASetting](ctx, c, "/configuracoes/sla/", nil, true)
}

func (c *Client) ApprovalLimits(ctx context.Context) ([]model.ApprovalLimit, error) {
	if err := c.require(access.IsAdmin); err != nil {
		return nil, err
	}
	return list[model.ApprovalLimit](ctx, c, "/configuracoes/limites/", nil, true)
}

// Catalog lists active catalog products matching search.
func (c *Client) Catalog(ctx context.Context, search string) ([]model.CatalogItem, error) {
	if err := c.require(access.CanManageProcurement); err != nil {
		return nil, err
	}
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	return list[model.CatalogItem](ctx, c, "/solicitacoes/catalogo/", q, true)
}
