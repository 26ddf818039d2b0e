package workflow

import (
	"fmt"
	"strings"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
)

// StatusUpdate is the body of POST /solicitacoes/{id}/update-status/.
type StatusUpdate struct {
	NovoStatus  Status `json:"novo_status"`
	Observacoes string `json:"observacoes,omitempty"`
}

// NewStatusUpdate builds the only payload the client sends for moving a
// solicitation from current to next. Moves outside the table are refused.
func NewStatusUpdate(current, next Status, notes string) (*StatusUpdate, error) {
	if !CanTransition(current, next) {
		allowed := AllowedTransitions(string(current))
		return nil, apperr.Validation(
			fmt.Sprintf("transition from %q to %q is not allowed", current, next),
			map[string][]string{"novo_status": {allowedMessage(allowed)}},
		)
	}
	return &StatusUpdate{NovoStatus: next, Observacoes: notes}, nil
}

func allowedMessage(allowed []Status) string {
	if len(allowed) == 0 {
		return "no transitions available"
	}
	names := make([]string, len(allowed))
	for i, s := range allowed {
		names[i] = string(s)
	}
	return "allowed: " + strings.Join(names, ", ")
}

// ApprovalAction is the decision recorded at the approval stage.
type ApprovalAction string

const (
	ActionAprovar  ApprovalAction = "aprovar"
	ActionReprovar ApprovalAction = "reprovar"
)

// Approval is the body of POST /solicitacoes/{id}/approval/.
type Approval struct {
	Acao        ApprovalAction `json:"acao"`
	Observacoes string         `json:"observacoes,omitempty"`
}

// NewApproval builds an approval payload. Decisions are only offered while
// the solicitation is awaiting approval.
func NewApproval(current Status, action ApprovalAction, notes string) (*Approval, error) {
	if current != StatusAguardandoAprovacao {
		return nil, apperr.Validation(
			fmt.Sprintf("solicitation in %q is not awaiting approval", current),
			map[string][]string{"status": {string(current)}},
		)
	}
	if action != ActionAprovar && action != ActionReprovar {
		return nil, apperr.Validation(
			fmt.Sprintf("unknown approval action %q", action),
			map[string][]string{"acao": {`must be "aprovar" or "reprovar"`}},
		)
	}
	return &Approval{Acao: action, Observacoes: notes}, nil
}

// Outcome returns the status an approval action leads to.
func (a ApprovalAction) Outcome() Status {
	if a == ActionAprovar {
		return StatusAprovado
	}
	return StatusReprovado
}
