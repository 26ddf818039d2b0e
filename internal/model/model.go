// Package model holds the wire types exchanged with the purchasing API.
// Every entity here is owned by the backend; the client only keeps
// re-fetchable copies.
package model

import (
	"time"

	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// Item is one line of a solicitation.
type Item struct {
	Codigo     string  `json:"codigo,omitempty"`
	Nome       string  `json:"nome"`
	Unidade    string  `json:"unidade,omitempty"`
	Quantidade float64 `json:"quantidade"`
}

// Quotation is a supplier offer attached to a solicitation. At most one per
// solicitation is selected; the backend enforces it.
type Quotation struct {
	ID                 int64      `json:"id,omitempty"`
	SolicitacaoID      int64      `json:"solicitacao_id,omitempty"`
	Fornecedor         string     `json:"fornecedor"`
	ValorUnitario      Money      `json:"valor_unitario"`
	ValorTotal         Money      `json:"valor_total"`
	PrazoEntrega       int        `json:"prazo_entrega"`
	CondicoesPagamento string     `json:"condicoes_pagamento"`
	Observacoes        string     `json:"observacoes,omitempty"`
	Selecionada        bool       `json:"selecionada"`
	DataCotacao        *time.Time `json:"data_cotacao,omitempty"`
}

// ApprovalRecord is one entry of a solicitation's approval history.
type ApprovalRecord struct {
	Acao        string `json:"acao"`
	Por         string `json:"por"`
	Data        string `json:"data"`
	Observacoes string `json:"observacoes,omitempty"`
}

// Solicitation is a purchase request moving through the pipeline.
type Solicitation struct {
	ID                  int64            `json:"id"`
	Numero              int64            `json:"numero_solicitacao_estoque"`
	Solicitante         string           `json:"solicitante"`
	Departamento        string           `json:"departamento"`
	Prioridade          string           `json:"prioridade"`
	Status              workflow.Status  `json:"status"`
	Descricao           string           `json:"descricao"`
	LocalAplicacao      string           `json:"local_aplicacao,omitempty"`
	Observacoes         string           `json:"observacoes,omitempty"`
	ValorEstimado       *Money           `json:"valor_estimado,omitempty"`
	ValorFinal          *Money           `json:"valor_final,omitempty"`
	NumeroRequisicao    *int64           `json:"numero_requisicao,omitempty"`
	NumeroPedidoCompras *int64           `json:"numero_pedido_compras,omitempty"`
	FornecedorFinal     string           `json:"fornecedor_final,omitempty"`
	Itens               []Item           `json:"itens,omitempty"`
	Cotacoes            []Quotation      `json:"cotacoes,omitempty"`
	Aprovacoes          []ApprovalRecord `json:"aprovacoes,omitempty"`
	ProximaAcao         string           `json:"proxima_acao,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
}

// NewSolicitation is the create payload.
type NewSolicitation struct {
	Departamento   string `json:"departamento"`
	Prioridade     string `json:"prioridade"`
	Descricao      string `json:"descricao"`
	LocalAplicacao string `json:"local_aplicacao,omitempty"`
	Observacoes    string `json:"observacoes,omitempty"`
	ValorEstimado  *Money `json:"valor_estimado,omitempty"`
	Itens          []Item `json:"itens,omitempty"`
}

// SolicitationPatch is a partial update. Nil fields are left alone.
type SolicitationPatch struct {
	Descricao       *string `json:"descricao,omitempty"`
	LocalAplicacao  *string `json:"local_aplicacao,omitempty"`
	Observacoes     *string `json:"observacoes,omitempty"`
	Prioridade      *string `json:"prioridade,omitempty"`
	ValorEstimado   *Money  `json:"valor_estimado,omitempty"`
	ValorFinal      *Money  `json:"valor_final,omitempty"`
	FornecedorFinal *string `json:"fornecedor_final,omitempty"`
	Itens           []Item  `json:"itens,omitempty"`
}

// StatusChange is the backend's answer to a status update or approval.
type StatusChange struct {
	Message        string          `json:"message"`
	StatusAnterior workflow.Status `json:"status_anterior,omitempty"`
	NovoStatus     workflow.Status `json:"novo_status"`
}

// User is an account as seen by the admin endpoints.
type User struct {
	ID           int64  `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	Nome         string `json:"nome"`
	Perfil       string `json:"perfil"`
	Departamento string `json:"departamento"`
	IsActive     bool   `json:"is_active"`
}

// NewUser is the create payload for an account.
type NewUser struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	Email        string `json:"email,omitempty"`
	Nome         string `json:"nome"`
	Perfil       string `json:"perfil"`
	Departamento string `json:"departamento"`
}

// UserPatch is a partial account update.
type UserPatch struct {
	Email        *string `json:"email,omitempty"`
	Nome         *string `json:"nome,omitempty"`
	Perfil       *string `json:"perfil,omitempty"`
	Departamento *string `json:"departamento,omitempty"`
	IsActive     *bool   `json:"is_active,omitempty"`
}

// AdminLogEntry is an audit record of an administrative action.
type AdminLogEntry struct {
	ID            int64     `json:"id"`
	Usuario       string    `json:"usuario"`
	Acao          string    `json:"acao"`
	Modulo        string    `json:"modulo"`
	Detalhes      string    `json:"detalhes"`
	SolicitacaoID *int64    `json:"solicitacao_id,omitempty"`
	IPAddress     string    `json:"ip_address,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// LoginLogEntry is one login attempt.
type LoginLogEntry struct {
	ID                int64     `json:"id"`
	UsuarioNome       string    `json:"usuario_nome,omitempty"`
	UsernameTentativa string    `json:"username_tentativa"`
	Status            string    `json:"status"`
	IPAddress         string    `json:"ip_address,omitempty"`
	UserAgent         string    `json:"user_agent,omitempty"`
	MotivoFalha       string    `json:"motivo_falha,omitempty"`
	Timestamp         time.Time `json:"timestamp"`
}

// Setting is a general key/value configuration entry.
type Setting struct {
	ID        int64  `json:"id"`
	Chave     string `json:"chave"`
	Valor     string `json:"valor"`
	Tipo      string `json:"tipo,omitempty"`
	Descricao string `json:"descricao,omitempty"`
}

// SLASetting holds per-department SLA days by priority.
type SLASetting struct {
	ID           int64  `json:"id"`
	Departamento string `json:"departamento"`
	SLAUrgente   int    `json:"sla_urgente"`
	SLAAlta      int    `json:"sla_alta"`
	SLANormal    int    `json:"sla_normal"`
	SLABaixa     int    `json:"sla_baixa"`
	Ativo        bool   `json:"ativo"`
}

// ApprovalLimit maps a value range to the approver in charge.
type ApprovalLimit struct {
	ID          int64  `json:"id"`
	Nome        string `json:"nome"`
	ValorMinimo Money  `json:"valor_minimo"`
	ValorMaximo Money  `json:"valor_maximo"`
	Aprovador   string `json:"aprovador"`
	Ativo       bool   `json:"ativo"`
}

// CatalogItem is a product that line items can reference.
type CatalogItem struct {
	ID        int64  `json:"id"`
	Codigo    string `json:"codigo"`
	Nome      string `json:"nome"`
	Categoria string `json:"categoria,omitempty"`
	Unidade   string `json:"unidade"`
	Ativo     bool   `json:"ativo"`
}
