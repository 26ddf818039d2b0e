// Package workflow models the purchasing pipeline a solicitation moves through.
//
// The transition table is advisory: it decides which actions a command offers
// and which payloads the client is willing to build. The backend re-validates
// every transition and remains the authority.
package workflow

import (
	"fmt"
	"strings"
)

// Status is a stage of the purchasing pipeline.
type Status string

const (
	StatusSolicitacao         Status = "Solicitação"
	StatusRequisicao          Status = "Requisição"
	StatusSuprimentos         Status = "Suprimentos"
	StatusEmCotacao           Status = "Em Cotação"
	StatusPedidoCompras       Status = "Pedido de Compras"
	StatusAguardandoAprovacao Status = "Aguardando Aprovação"
	StatusAprovado            Status = "Aprovado"
	StatusReprovado           Status = "Reprovado"
	StatusCompraFeita         Status = "Compra feita"
	StatusAguardandoEntrega   Status = "Aguardando Entrega"
	StatusPedidoFinalizado    Status = "Pedido Finalizado"
)

// pipeline is the canonical order of every known status.
var pipeline = []Status{
	StatusSolicitacao,
	StatusRequisicao,
	StatusSuprimentos,
	StatusEmCotacao,
	StatusPedidoCompras,
	StatusAguardandoAprovacao,
	StatusAprovado,
	StatusReprovado,
	StatusCompraFeita,
	StatusAguardandoEntrega,
	StatusPedidoFinalizado,
}

// transitions is the single source of legal moves. A status without an entry
// is terminal.
var transitions = map[Status][]Status{
	StatusSolicitacao:         {StatusRequisicao},
	StatusRequisicao:          {StatusSuprimentos},
	StatusSuprimentos:         {StatusEmCotacao},
	StatusEmCotacao:           {StatusPedidoCompras},
	StatusPedidoCompras:       {StatusAguardandoAprovacao},
	StatusAguardandoAprovacao: {StatusAprovado, StatusReprovado},
	StatusAprovado:            {StatusCompraFeita},
	StatusCompraFeita:         {StatusAguardandoEntrega},
	StatusAguardandoEntrega:   {StatusPedidoFinalizado},
}

// Statuses returns every known status in pipeline order.
func Statuses() []Status {
	out := make([]Status, len(pipeline))
	copy(out, pipeline)
	return out
}

// ParseStatus converts a raw status label into a Status.
// Matching is exact apart from surrounding whitespace.
func ParseStatus(raw string) (Status, error) {
	s := Status(strings.TrimSpace(raw))
	if !s.Valid() {
		return "", fmt.Errorf("unknown status %q", raw)
	}
	return s, nil
}

// Valid reports whether s is part of the pipeline.
func (s Status) Valid() bool {
	for _, p := range pipeline {
		if p == s {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is offered from s.
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

func (s Status) String() string {
	return string(s)
}

// AllowedTransitions returns the statuses reachable from status, in table
// order. Unknown or terminal statuses yield an empty slice.
func AllowedTransitions(status string) []Status {
	next := transitions[Status(status)]
	out := make([]Status, len(next))
	copy(out, next)
	return out
}

// CanTransition reports whether the table allows moving from one status to
// another.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}
