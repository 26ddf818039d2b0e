package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/events"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// ListOptions filters the solicitation list.
type ListOptions struct {
	Status       workflow.Status
	Departamento string
	Prioridade   string
	Search       string
	// Page selects a single page. Ignored when All is set.
	Page int
	// All follows pagination to the end.
	All bool
}

func (o ListOptions) query() url.Values {
	q := url.Values{}
	if o.Status != "" {
		q.Set("status", string(o.Status))
	}
	if o.Departamento != "" {
		q.Set("departamento", o.Departamento)
	}
	if o.Prioridade != "" {
		q.Set("prioridade", o.Prioridade)
	}
	if o.Search != "" {
		q.Set("search", o.Search)
	}
	if o.Page > 1 && !o.All {
		q.Set("page", strconv.Itoa(o.Page))
	}
	return q
}

func solicitationPath(id int64) string {
	return fmt.Sprintf("/solicitacoes/%d/", id)
}

// ListSolicitations returns the solicitations visible to the current user.
func (c *Client) ListSolicitations(ctx context.Context, opts ListOptions) ([]model.Solicitation, error) {
	return list[model.Solicitation](ctx, c, "/solicitacoes/", opts.query(), opts.All)
}

func (c *Client) GetSolicitation(ctx context.Context, id int64) (*model.Solicitation, error) {
	var sol model.Solicitation
	if err := c.call(ctx, http.MethodGet, solicitationPath(id), nil, nil, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// CreateSolicitation opens a new solicitation. The backend stamps the
// requester, number and initial status.
func (c *Client) CreateSolicitation(ctx context.Context, in model.NewSolicitation) (*model.Solicitation, error) {
	ctx = requestid.Attach(ctx)
	if err := c.require(access.CanCreateSolicitation); err != nil {
		return nil, err
	}

	var sol model.Solicitation
	if err := c.call(ctx, http.MethodPost, "/solicitacoes/", nil, in, &sol); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "solicitation created", logging.Solicitation(sol.ID))
	c.publish(ctx, events.Event{
		Subject:        events.SubjectSolicitationCreated,
		SolicitationID: sol.ID,
		To:             string(sol.Status),
		Detail:         sol.Descricao,
	})
	return &sol, nil
}

func (c *Client) UpdateSolicitation(ctx context.Context, id int64, patch model.SolicitationPatch) (*model.Solicitation, error) {
	var sol model.Solicitation
	if err := c.call(ctx, http.MethodPatch, solicitationPath(id), nil, patch, &sol); err != nil {
		return nil, err
	}
	return &sol, nil
}

// Transitions returns the statuses sol may move to next, empty when the
// user lacks the permission for its current stage.
func (c *Client) Transitions(sol *model.Solicitation) []workflow.Status {
	if profile := c.session.Profile(); profile != nil && !access.CanMove(profile.Permissions, sol.Status) {
		return []workflow.Status{}
	}
	return workflow.AllowedTransitions(string(sol.Status))
}

// MoveSolicitation advances a solicitation to next. The current status is
// fetched first so the move can be checked against the transition table,
// then against the user's permissions, before anything is sent. A backend
// rejection means the solicitation changed in between; refetch and retry.
func (c *Client) MoveSolicitation(ctx context.Context, id int64, next workflow.Status, notes string) (*model.StatusChange, error) {
	ctx = requestid.Attach(ctx)
	sol, err := c.GetSolicitation(ctx, id)
	if err != nil {
		return nil, err
	}
	update, err := workflow.NewStatusUpdate(sol.Status, next, notes)
	if err != nil {
		return nil, err
	}
	if profile := c.session.Profile(); profile != nil {
		if err := access.RequireMove(profile.Permissions, sol.Status); err != nil {
			return nil, err
		}
	}

	var change model.StatusChange
	if err := c.call(ctx, http.MethodPost, solicitationPath(id)+"update-status/", nil, update, &change); err != nil {
		return nil, err
	}
	from := change.StatusAnterior
	if from == "" {
		from = sol.Status
	}

	c.metrics.ObserveTransition(string(from), string(change.NovoStatus))
	c.logger.InfoContext(ctx, "solicitation moved",
		logging.Solicitation(id), logging.WorkflowStatus(string(change.NovoStatus)))
	c.publish(ctx, events.Event{
		Subject:        events.SubjectSolicitationStatusChanged,
		SolicitationID: id,
		From:           string(from),
		To:             string(change.NovoStatus),
		Detail:         notes,
	})
	return &change, nil
}

// DecideApproval records an approval decision on a solicitation awaiting
// approval.
func (c *Client) DecideApproval(ctx context.Context, id int64, action workflow.ApprovalAction, notes string) (*model.StatusChange, error) {
	ctx = requestid.Attach(ctx)
	if err := c.require(access.CanApprove); err != nil {
		return nil, err
	}
	sol, err := c.GetSolicitation(ctx, id)
	if err != nil {
		return nil, err
	}
	approval, err := workflow.NewApproval(sol.Status, action, notes)
	if err != nil {
		return nil, err
	}

	var change model.StatusChange
	if err := c.call(ctx, http.MethodPost, solicitationPath(id)+"approval/", nil, approval, &change); err != nil {
		return nil, err
	}
	to := change.NovoStatus
	if to == "" {
		to = action.Outcome()
	}

	c.metrics.ObserveTransition(string(sol.Status), string(to))
	c.logger.InfoContext(ctx, "approval recorded",
		logging.Solicitation(id), logging.WorkflowStatus(string(to)))
	c.publish(ctx, events.Event{
		Subject:        events.SubjectSolicitationApproval,
		SolicitationID: id,
		From:           string(sol.Status),
		To:             string(to),
		Detail:         string(action),
	})
	return &change, nil
}
