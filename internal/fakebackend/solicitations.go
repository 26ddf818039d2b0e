package fakebackend

import (
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/GenivalfSilva/Sistema-Compras/internal/access"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

// visibleTo mirrors the per-role list filter of the production backend.
func visibleTo(u *account, sol *model.Solicitation) bool {
	p := u.permissions
	switch {
	case access.Has(p, access.IsAdmin):
		return true
	case access.Has(p, access.CanCreateSolicitation):
		return sol.Solicitante == u.Nome
	case access.Has(p, access.CanManageStock):
		return sol.Status == workflow.StatusSolicitacao || sol.Status == workflow.StatusRequisicao
	case access.Has(p, access.CanManageProcurement):
		switch sol.Status {
		case workflow.StatusSuprimentos, workflow.StatusEmCotacao, workflow.StatusPedidoCompras,
			workflow.StatusAprovado, workflow.StatusCompraFeita, workflow.StatusAguardandoEntrega:
			return true
		}
		return false
	case access.Has(p, access.CanApprove):
		return sol.Status == workflow.StatusAguardandoAprovacao
	default:
		return false
	}
}

func cloneSolicitation(sol *model.Solicitation) model.Solicitation {
	c := *sol
	c.Itens = slices.Clone(sol.Itens)
	c.Cotacoes = slices.Clone(sol.Cotacoes)
	c.Aprovacoes = slices.Clone(sol.Aprovacoes)
	return c
}

func (s *Server) handleListSolicitations(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	q := r.URL.Query()
	status := q.Get("status")
	dept := q.Get("departamento")
	prio := q.Get("prioridade")
	search := strings.ToLower(q.Get("search"))

	s.mu.Lock()
	out := make([]model.Solicitation, 0, len(s.solicitations))
	for _, sol := range s.solicitations {
		if !visibleTo(u, sol) {
			continue
		}
		if status != "" && string(sol.Status) != status {
			continue
		}
		if dept != "" && sol.Departamento != dept {
			continue
		}
		if prio != "" && sol.Prioridade != prio {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(sol.Descricao), search) &&
			!strings.Contains(strings.ToLower(sol.Solicitante), search) &&
			!strings.Contains(fmt.Sprint(sol.Numero), search) {
			continue
		}
		c := cloneSolicitation(sol)
		c.Cotacoes = nil
		c.Aprovacoes = nil
		out = append(out, c)
	}
	s.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	writeList(s, w, r, out)
}

func (s *Server) handleCreateSolicitation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if !access.Has(u.permissions, access.CanCreateSolicitation) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}

	var body model.NewSolicitation
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if body.Prioridade == "" {
		body.Prioridade = string(workflow.PriorityNormal)
	}

	fields := map[string][]string{}
	if _, err := workflow.ParseDepartment(body.Departamento); err != nil {
		fields["departamento"] = []string{fmt.Sprintf("%q não é um escolha válido.", body.Departamento)}
	}
	if _, err := workflow.ParsePriority(body.Prioridade); err != nil {
		fields["prioridade"] = []string{fmt.Sprintf("%q não é um escolha válido.", body.Prioridade)}
	}
	if strings.TrimSpace(body.Descricao) == "" {
		fields["descricao"] = []string{"Este campo não pode ser em branco."}
	}
	if body.ValorEstimado != nil && *body.ValorEstimado < 0 {
		fields["valor_estimado"] = []string{"Certifique-se de que este valor seja maior ou igual a 0."}
	}
	for i, it := range body.Itens {
		if strings.TrimSpace(it.Nome) == "" || it.Quantidade <= 0 {
			fields["itens"] = append(fields["itens"], fmt.Sprintf("Item %d: nome e quantidade são obrigatórios.", i+1))
		}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	s.nextSolID++
	s.nextNumero++
	sol := &model.Solicitation{
		ID:             s.nextSolID,
		Numero:         s.nextNumero,
		Solicitante:    u.Nome,
		Departamento:   body.Departamento,
		Prioridade:     body.Prioridade,
		Status:         workflow.StatusSolicitacao,
		Descricao:      body.Descricao,
		LocalAplicacao: body.LocalAplicacao,
		Observacoes:    body.Observacoes,
		ValorEstimado:  body.ValorEstimado,
		Itens:          slices.Clone(body.Itens),
		CreatedAt:      time.Now().UTC(),
	}
	sol.ProximaAcao = nextAction(sol.Status)
	s.solicitations[sol.ID] = sol
	out := cloneSolicitation(sol)
	s.mu.Unlock()

	s.audit(r, "CREATE", "solicitacoes", fmt.Sprintf("Solicitação criada - #%d", out.Numero), &out.ID)
	writeJSON(w, http.StatusCreated, out)
}

// lookupLocked fetches a solicitation by path id, writing 404 when absent. The
// caller must hold s.mu.
func (s *Server) lookupLocked(w http.ResponseWriter, r *http.Request) *model.Solicitation {
	id, ok := pathID(r, "id")
	if !ok {
		writeDetail(w, http.StatusNotFound, "Não encontrado.")
		return nil
	}
	sol := s.solicitations[id]
	if sol == nil {
		writeDetail(w, http.StatusNotFound, "Não encontrado.")
		return nil
	}
	return sol
}

func (s *Server) handleGetSolicitation(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	out := cloneSolicitation(sol)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateSolicitation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	var patch model.SolicitationPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	if patch.Prioridade != nil {
		if _, err := workflow.ParsePriority(*patch.Prioridade); err != nil {
			writeFieldErrors(w, map[string][]string{"prioridade": {fmt.Sprintf("%q não é um escolha válido.", *patch.Prioridade)}})
			return
		}
	}

	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	if !access.Has(u.permissions, access.IsAdmin) && sol.Solicitante != u.Nome &&
		!access.CanMove(u.permissions, sol.Status) {
		s.mu.Unlock()
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}

	if patch.Descricao != nil {
		sol.Descricao = *patch.Descricao
	}
	if patch.LocalAplicacao != nil {
		sol.LocalAplicacao = *patch.LocalAplicacao
	}
	if patch.Observacoes != nil {
		sol.Observacoes = *patch.Observacoes
	}
	if patch.Prioridade != nil {
		sol.Prioridade = *patch.Prioridade
	}
	if patch.ValorEstimado != nil {
		v := *patch.ValorEstimado
		sol.ValorEstimado = &v
	}
	if patch.ValorFinal != nil {
		v := *patch.ValorFinal
		sol.ValorFinal = &v
	}
	if patch.FornecedorFinal != nil {
		sol.FornecedorFinal = *patch.FornecedorFinal
	}
	if patch.Itens != nil {
		sol.Itens = slices.Clone(patch.Itens)
	}
	out := cloneSolicitation(sol)
	s.mu.Unlock()

	s.audit(r, "UPDATE", "solicitacoes", fmt.Sprintf("Solicitação atualizada - #%d", out.Numero), &out.ID)
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())

	var body struct {
		NovoStatus  string `json:"novo_status"`
		Observacoes string `json:"observacoes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	if !access.CanMove(u.permissions, sol.Status) {
		s.mu.Unlock()
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "Sem permissão para alterar status desta solicitação"})
		return
	}

	next, err := workflow.ParseStatus(body.NovoStatus)
	if err != nil {
		s.mu.Unlock()
		writeFieldErrors(w, map[string][]string{"novo_status": {fmt.Sprintf("%q não é um escolha válido.", body.NovoStatus)}})
		return
	}
	current := sol.Status
	if !workflow.CanTransition(current, next) {
		allowed := workflow.AllowedTransitions(string(current))
		names := make([]string, len(allowed))
		for i, a := range allowed {
			names[i] = string(a)
		}
		s.mu.Unlock()
		writeFieldErrors(w, map[string][]string{"novo_status": {fmt.Sprintf(
			"Transição de '%s' para '%s' não é permitida. Status permitidos: %s",
			current, next, strings.Join(names, ", "))}})
		return
	}

	sol.Status = next
	sol.ProximaAcao = nextAction(next)
	if body.Observacoes != "" {
		sol.Observacoes = body.Observacoes
	}
	id, numero := sol.ID, sol.Numero
	s.mu.Unlock()

	s.audit(r, "MOVE", "solicitacoes", fmt.Sprintf("Status alterado de %s para %s - #%d", current, next, numero), &id)
	writeJSON(w, http.StatusOK, model.StatusChange{
		Message:        "Status atualizado com sucesso",
		StatusAnterior: current,
		NovoStatus:     next,
	})
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if !access.Has(u.permissions, access.CanApprove) && !access.Has(u.permissions, access.IsAdmin) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}

	var body struct {
		Acao        string `json:"acao"`
		Observacoes string `json:"observacoes"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}

	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	if sol.Status != workflow.StatusAguardandoAprovacao {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Solicitação não está aguardando aprovação"})
		return
	}
	action := workflow.ApprovalAction(body.Acao)
	if action != workflow.ActionAprovar && action != workflow.ActionReprovar {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": `Ação deve ser "aprovar" ou "reprovar"`})
		return
	}

	previous := sol.Status
	next := workflow.StatusAprovado
	if action == workflow.ActionReprovar {
		next = workflow.StatusReprovado
	}
	sol.Aprovacoes = append(sol.Aprovacoes, model.ApprovalRecord{
		Acao:        body.Acao,
		Por:         u.Nome,
		Data:        time.Now().UTC().Format(time.RFC3339),
		Observacoes: body.Observacoes,
	})
	sol.Status = next
	sol.ProximaAcao = nextAction(next)
	id, numero := sol.ID, sol.Numero
	s.mu.Unlock()

	acao := "APPROVE"
	if action == workflow.ActionReprovar {
		acao = "REJECT"
	}
	s.audit(r, acao, "solicitacoes", fmt.Sprintf("Solicitação %sda - #%d", body.Acao, numero), &id)
	writeJSON(w, http.StatusOK, model.StatusChange{
		Message:        fmt.Sprintf("Solicitação %sda com sucesso", body.Acao),
		StatusAnterior: previous,
		NovoStatus:     next,
	})
}

func (s *Server) handleListQuotations(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	out := slices.Clone(sol.Cotacoes)
	s.mu.Unlock()
	if out == nil {
		out = []model.Quotation{}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAddQuotation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if !access.Has(u.permissions, access.CanManageProcurement) && !access.Has(u.permissions, access.IsAdmin) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}

	var q model.Quotation
	if err := json.NewDecoder(r.Body).Decode(&q); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON inválido")
		return
	}
	fields := map[string][]string{}
	if strings.TrimSpace(q.Fornecedor) == "" {
		fields["fornecedor"] = []string{"Este campo é obrigatório."}
	}
	if q.ValorUnitario < 0 {
		fields["valor_unitario"] = []string{"Certifique-se de que este valor seja maior ou igual a 0."}
	}
	if q.ValorTotal <= 0 {
		fields["valor_total"] = []string{"Certifique-se de que este valor seja maior que 0."}
	}
	if q.PrazoEntrega < 0 {
		fields["prazo_entrega"] = []string{"Certifique-se de que este valor seja maior ou igual a 0."}
	}
	if len(fields) > 0 {
		writeFieldErrors(w, fields)
		return
	}

	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	s.nextQuoteID++
	q.ID = s.nextQuoteID
	q.SolicitacaoID = sol.ID
	now := time.Now().UTC()
	q.DataCotacao = &now
	if q.Selecionada {
		selectQuotationLocked(sol, q.ID, &q)
	}
	sol.Cotacoes = append(sol.Cotacoes, q)
	id, numero := sol.ID, sol.Numero
	s.mu.Unlock()

	s.audit(r, "CREATE", "cotacoes", fmt.Sprintf("Cotação de %s adicionada - #%d", q.Fornecedor, numero), &id)
	writeJSON(w, http.StatusCreated, q)
}

// selectQuotationLocked marks qid as the only selected quotation and
// records its supplier and total as final. pending is a quotation not yet
// appended to sol.
func selectQuotationLocked(sol *model.Solicitation, qid int64, pending *model.Quotation) {
	for i := range sol.Cotacoes {
		sol.Cotacoes[i].Selecionada = sol.Cotacoes[i].ID == qid
		if sol.Cotacoes[i].Selecionada {
			pending = &sol.Cotacoes[i]
		}
	}
	if pending != nil {
		pending.Selecionada = true
		sol.FornecedorFinal = pending.Fornecedor
		v := pending.ValorTotal
		sol.ValorFinal = &v
	}
}

func (s *Server) handleSelectQuotation(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if !access.Has(u.permissions, access.CanManageProcurement) && !access.Has(u.permissions, access.IsAdmin) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}
	qid, ok := pathID(r, "qid")
	if !ok {
		writeDetail(w, http.StatusNotFound, "Cotação não encontrada")
		return
	}

	s.mu.Lock()
	sol := s.lookupLocked(w, r)
	if sol == nil {
		s.mu.Unlock()
		return
	}
	idx := slices.IndexFunc(sol.Cotacoes, func(q model.Quotation) bool { return q.ID == qid })
	if idx < 0 {
		s.mu.Unlock()
		writeDetail(w, http.StatusNotFound, "Cotação não encontrada")
		return
	}
	selectQuotationLocked(sol, qid, nil)
	selected := sol.Cotacoes[idx]
	id, numero := sol.ID, sol.Numero
	s.mu.Unlock()

	s.audit(r, "UPDATE", "cotacoes", fmt.Sprintf("Cotação de %s selecionada - #%d", selected.Fornecedor, numero), &id)
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Cotação selecionada com sucesso",
		"cotacao": selected,
	})
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	u := userFrom(r.Context())
	if !access.Has(u.permissions, access.CanManageProcurement) && !access.Has(u.permissions, access.IsAdmin) {
		writeDetail(w, http.StatusForbidden, "Você não tem permissão para executar essa ação.")
		return
	}
	search := strings.ToLower(r.URL.Query().Get("search"))

	s.mu.Lock()
	out := make([]model.CatalogItem, 0, len(s.catalog))
	for _, it := range s.catalog {
		if !it.Ativo {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(it.Nome), search) &&
			!strings.Contains(strings.ToLower(it.Categoria), search) {
			continue
		}
		out = append(out, it)
	}
	s.mu.Unlock()
	writeList(s, w, r, out)
}

// nextAction describes what the pipeline expects next at status.
func nextAction(status workflow.Status) string {
	switch status {
	case workflow.StatusSolicitacao:
		return "Estoque: gerar requisição"
	case workflow.StatusRequisicao:
		return "Suprimentos: receber requisição"
	case workflow.StatusSuprimentos:
		return "Suprimentos: iniciar cotação"
	case workflow.StatusEmCotacao:
		return "Suprimentos: emitir pedido de compras"
	case workflow.StatusPedidoCompras:
		return "Suprimentos: enviar para aprovação"
	case workflow.StatusAguardandoAprovacao:
		return "Diretoria: aprovar ou reprovar"
	case workflow.StatusAprovado:
		return "Suprimentos: efetuar compra"
	case workflow.StatusCompraFeita:
		return "Suprimentos: aguardar entrega"
	case workflow.StatusAguardandoEntrega:
		return "Estoque: confirmar recebimento"
	default:
		return ""
	}
}
