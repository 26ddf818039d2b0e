package client

import (
	"context"
	"fmt"
	"net/http"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/events"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/requestid"
)

func quotationsPath(solicitationID int64) string {
	return fmt.Sprintf("/solicitacoes/%d/cotacoes/", solicitationID)
}

// ListQuotations returns the quotations of a solicitation in the order
// they were added.
func (c *Client) ListQuotations(ctx context.Context, solicitationID int64) ([]model.Quotation, error) {
	return list[model.Quotation](ctx, c, quotationsPath(solicitationID), nil, true)
}

func (c *Client) AddQuotation(ctx context.Context, solicitationID int64, q model.Quotation) (*model.Quotation, error) {
	if err := c.require(access.CanManageProcurement); err != nil {
		return nil, err
	}
	q.ID = 0
	q.SolicitacaoID = 0

	var out model.Quotation
	if err := c.call(ctx, http.MethodPost, quotationsPath(solicitationID), nil, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SelectQuotation marks one quotation as the winner. The backend unselects
// the others; callers should refetch the list to see the result.
func (c *Client) SelectQuotation(ctx context.Context, solicitationID, quotationID int64) (*model.Quotation, error) {
	ctx = requestid.Attach(ctx)
	if err := c.require(access.CanManageProcurement); err != nil {
		return nil, err
	}

	var resp struct {
		Message string          `json:"message"`
		Cotacao model.Quotation `json:"cotacao"`
	}
	path := fmt.Sprintf("%s%d/select/", quotationsPath(solicitationID), quotationID)
	if err := c.call(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "quotation selected", logging.Solicitation(solicitationID), "quotation_id", quotationID)
	c.publish(ctx, events.Event{
		Subject:        events.SubjectQuotationSelected,
		SolicitationID: solicitationID,
		Detail:         resp.Cotacao.Fornecedor,
	})
	return &resp.Cotacao, nil
}
