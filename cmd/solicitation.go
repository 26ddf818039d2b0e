package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/client"
	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var solicitationCmd = &cobra.Command{
	Use:     "solicitation",
	Aliases: []string{"sol", "solicitacao"},
	Short:   "Purchase solicitations",
	Long:    "List, create and move purchase solicitations through the pipeline",
}

var solicitationListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List solicitations",
	Long:    "List the solicitations visible to the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := client.ListOptions{}
		status, _ := cmd.Flags().GetString("status")
		opts.Departamento, _ = cmd.Flags().GetString("departamento")
		opts.Prioridade, _ = cmd.Flags().GetString("prioridade")
		opts.Search, _ = cmd.Flags().GetString("search")
		opts.Page, _ = cmd.Flags().GetInt("page")
		opts.All, _ = cmd.Flags().GetBool("all")

		if status != "" {
			s, err := resolveStatus(status, "")
			if err != nil {
				return err
			}
			opts.Status = s
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sols, err := a.client.ListSolicitations(cmd.Context(), opts)
		if err != nil {
			return fmt.Errorf("failed to list solicitations: %w", err)
		}

		return render(sols, func() {
			if len(sols) == 0 {
				output.Info("No solicitations found")
				return
			}
			table := output.NewTable([]string{"ID", "Número", "Status", "Prioridade", "Departamento", "Solicitante", "Descrição", "Valor"})
			for _, s := range sols {
				table.AddRow([]string{
					strconv.FormatInt(s.ID, 10),
					strconv.FormatInt(s.Numero, 10),
					string(s.Status),
					s.Prioridade,
					s.Departamento,
					s.Solicitante,
					output.Truncate(s.Descricao, 40),
					money(s.ValorEstimado),
				})
			}
			table.Render()
		})
	},
}

var solicitationGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a solicitation",
	Long:  "Show a solicitation with its items, quotations, approval history and next steps",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sol, err := a.client.GetSolicitation(cmd.Context(), id)
		if err != nil {
			return fmt.Errorf("failed to get solicitation: %w", err)
		}

		return render(sol, func() {
			output.Field("ID", sol.ID)
			output.Field("Número", sol.Numero)
			output.Field("Status", sol.Status)
			output.Field("Prioridade", sol.Prioridade)
			output.Field("Departamento", sol.Departamento)
			output.Field("Solicitante", sol.Solicitante)
			output.Field("Descrição", sol.Descricao)
			output.Field("Local", orDash(sol.LocalAplicacao))
			output.Field("Valor estimado", money(sol.ValorEstimado))
			output.Field("Valor final", money(sol.ValorFinal))
			output.Field("Requisição", optionalInt(sol.NumeroRequisicao))
			output.Field("Pedido", optionalInt(sol.NumeroPedidoCompras))
			output.Field("Fornecedor", orDash(sol.FornecedorFinal))
			output.Field("Criada em", date(sol.CreatedAt))
			if sol.Observacoes != "" {
				output.Field("Observações", sol.Observacoes)
			}

			if len(sol.Itens) > 0 {
				fmt.Fprintln(output.Out)
				table := output.NewTable([]string{"Código", "Item", "Qtd", "Unidade"})
				for _, it := range sol.Itens {
					table.AddRow([]string{orDash(it.Codigo), it.Nome, strconv.FormatFloat(it.Quantidade, 'f', -1, 64), orDash(it.Unidade)})
				}
				table.Render()
			}
			if len(sol.Aprovacoes) > 0 {
				fmt.Fprintln(output.Out)
				for _, ap := range sol.Aprovacoes {
					output.Info("%s  %s por %s  %s", ap.Data, ap.Acao, ap.Por, ap.Observacoes)
				}
			}

			fmt.Fprintln(output.Out)
			if next := a.client.Transitions(sol); len(next) > 0 {
				output.Info("Next: %s", joinStatuses(next))
			} else if sol.Status.IsTerminal() {
				output.Info("Final status")
			}
		})
	},
}

var solicitationCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a solicitation",
	Long: `Create a purchase solicitation.

Items are given as name:quantity[:unit[:code]] and may be repeated:

  compras solicitation create --departamento TI --prioridade Alta \
    --descricao "Notebooks para a equipe" \
    --item "Notebook 14:3:UN" --item "Mouse sem fio:3:UN"`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := model.NewSolicitation{}
		in.Departamento, _ = cmd.Flags().GetString("departamento")
		in.Prioridade, _ = cmd.Flags().GetString("prioridade")
		in.Descricao, _ = cmd.Flags().GetString("descricao")
		in.LocalAplicacao, _ = cmd.Flags().GetString("local")
		in.Observacoes, _ = cmd.Flags().GetString("observacoes")

		if d, err := workflow.ParseDepartment(in.Departamento); err == nil {
			in.Departamento = string(d)
		}
		if p, err := workflow.ParsePriority(in.Prioridade); err == nil {
			in.Prioridade = string(p)
		}
		if raw, _ := cmd.Flags().GetString("valor"); raw != "" {
			v, err := model.ParseMoney(raw)
			if err != nil {
				return err
			}
			in.ValorEstimado = &v
		}
		rawItems, _ := cmd.Flags().GetStringArray("item")
		for _, raw := range rawItems {
			it, err := parseItem(raw)
			if err != nil {
				return err
			}
			in.Itens = append(in.Itens, it)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sol, err := a.client.CreateSolicitation(cmd.Context(), in)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, sol); done || err != nil {
			return err
		}
		output.Success("Created solicitation %d (número %d) in %s", sol.ID, sol.Numero, sol.Status)
		return nil
	},
}

var solicitationUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a solicitation",
	Long:  "Change descriptive fields of a solicitation. Only the flags given are sent.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}

		var patch model.SolicitationPatch
		changed := 0
		str := func(flag string, dst **string) {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
				changed++
			}
		}
		str("descricao", &patch.Descricao)
		str("local", &patch.LocalAplicacao)
		str("observacoes", &patch.Observacoes)
		str("prioridade", &patch.Prioridade)
		str("fornecedor", &patch.FornecedorFinal)
		for flag, dst := range map[string]**model.Money{"valor": &patch.ValorEstimado, "valor-final": &patch.ValorFinal} {
			if !cmd.Flags().Changed(flag) {
				continue
			}
			raw, _ := cmd.Flags().GetString(flag)
			v, err := model.ParseMoney(raw)
			if err != nil {
				return err
			}
			*dst = &v
			changed++
		}
		if patch.Prioridade != nil {
			if p, err := workflow.ParsePriority(*patch.Prioridade); err == nil {
				s := string(p)
				patch.Prioridade = &s
			}
		}
		if changed == 0 {
			return fmt.Errorf("nothing to update")
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sol, err := a.client.UpdateSolicitation(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, sol); done || err != nil {
			return err
		}
		output.Success("Updated solicitation %d", sol.ID)
		return nil
	},
}

var solicitationTransitionsCmd = &cobra.Command{
	Use:   "transitions [id]",
	Short: "Show the statuses a solicitation can move to",
	Long:  "List the next statuses the current user may move the solicitation to",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sol, err := a.client.GetSolicitation(cmd.Context(), id)
		if err != nil {
			return err
		}
		next := a.client.Transitions(sol)

		result := struct {
			ID          int64             `json:"id"`
			Status      workflow.Status   `json:"status"`
			Transitions []workflow.Status `json:"transitions"`
		}{sol.ID, sol.Status, next}
		return render(result, func() {
			output.Field("Status", sol.Status)
			switch {
			case len(next) > 0:
				for _, s := range next {
					output.Info("  → %s", s)
				}
			case sol.Status.IsTerminal():
				output.Info("Final status, no further moves")
			default:
				output.Info("No moves available to you at this stage")
			}
		})
	},
}

var solicitationMoveCmd = &cobra.Command{
	Use:   "move [id] [status|next]",
	Short: "Move a solicitation to its next status",
	Long: `Move a solicitation forward in the pipeline.

The status may be given exactly, in any case, or as "next" when only one
status follows the current one. Approval decisions use 'approve'.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}
		notes, _ := cmd.Flags().GetString("notes")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		current := workflow.Status("")
		if strings.EqualFold(strings.TrimSpace(args[1]), "next") {
			sol, err := a.client.GetSolicitation(cmd.Context(), id)
			if err != nil {
				return err
			}
			current = sol.Status
		}
		next, err := resolveStatus(args[1], current)
		if err != nil {
			return err
		}

		change, err := a.client.MoveSolicitation(cmd.Context(), id, next, notes)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, change); done || err != nil {
			return err
		}
		output.Success("%s → %s", change.StatusAnterior, change.NovoStatus)
		return nil
	},
}

var solicitationApproveCmd = &cobra.Command{
	Use:   "approve [id]",
	Short: "Approve or reject a solicitation",
	Long:  "Record the approval decision of a solicitation awaiting approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}
		reject, _ := cmd.Flags().GetBool("reject")
		notes, _ := cmd.Flags().GetString("notes")
		action := workflow.ActionAprovar
		if reject {
			action = workflow.ActionReprovar
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		change, err := a.client.DecideApproval(cmd.Context(), id, action, notes)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, change); done || err != nil {
			return err
		}
		output.Success("Solicitation %d: %s", id, change.NovoStatus)
		return nil
	},
}

// parseItem reads name:quantity[:unit[:code]].
func parseItem(raw string) (model.Item, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 4 || strings.TrimSpace(parts[0]) == "" {
		return model.Item{}, fmt.Errorf("invalid item %q, want name:quantity[:unit[:code]]", raw)
	}
	qty, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(parts[1]), ",", "."), 64)
	if err != nil || qty <= 0 {
		return model.Item{}, fmt.Errorf("invalid quantity in item %q", raw)
	}
	it := model.Item{Nome: strings.TrimSpace(parts[0]), Quantidade: qty}
	if len(parts) > 2 {
		it.Unidade = strings.TrimSpace(parts[2])
	}
	if len(parts) > 3 {
		it.Codigo = strings.TrimSpace(parts[3])
	}
	return it, nil
}

func init() {
	rootCmd.AddCommand(solicitationCmd)
	solicitationCmd.AddCommand(solicitationListCmd)
	solicitationCmd.AddCommand(solicitationGetCmd)
	solicitationCmd.AddCommand(solicitationCreateCmd)
	solicitationCmd.AddCommand(solicitationUpdateCmd)
	solicitationCmd.AddCommand(solicitationTransitionsCmd)
	solicitationCmd.AddCommand(solicitationMoveCmd)
	solicitationCmd.AddCommand(solicitationApproveCmd)

	solicitationListCmd.Flags().String("status", "", "Filter by status")
	solicitationListCmd.Flags().String("departamento", "", "Filter by department")
	solicitationListCmd.Flags().String("prioridade", "", "Filter by priority")
	solicitationListCmd.Flags().String("search", "", "Free-text search")
	solicitationListCmd.Flags().Int("page", 0, "Page number")
	solicitationListCmd.Flags().Bool("all", false, "Follow every page")

	solicitationCreateCmd.Flags().String("departamento", "", "Requesting department")
	solicitationCreateCmd.Flags().String("prioridade", string(workflow.PriorityNormal), "Priority")
	solicitationCreateCmd.Flags().String("descricao", "", "What is being bought and why")
	solicitationCreateCmd.Flags().String("local", "", "Where the items will be used")
	solicitationCreateCmd.Flags().String("observacoes", "", "Notes")
	solicitationCreateCmd.Flags().String("valor", "", "Estimated value")
	solicitationCreateCmd.Flags().StringArray("item", nil, "Item as name:quantity[:unit[:code]], repeatable")
	solicitationCreateCmd.MarkFlagRequired("departamento")
	solicitationCreateCmd.MarkFlagRequired("descricao")

	solicitationUpdateCmd.Flags().String("descricao", "", "Description")
	solicitationUpdateCmd.Flags().String("local", "", "Where the items will be used")
	solicitationUpdateCmd.Flags().String("observacoes", "", "Notes")
	solicitationUpdateCmd.Flags().String("prioridade", "", "Priority")
	solicitationUpdateCmd.Flags().String("valor", "", "Estimated value")
	solicitationUpdateCmd.Flags().String("valor-final", "", "Final value")
	solicitationUpdateCmd.Flags().String("fornecedor", "", "Chosen supplier")

	solicitationMoveCmd.Flags().String("notes", "", "Notes recorded with the move")

	solicitationApproveCmd.Flags().Bool("reject", false, "Reject instead of approve")
	solicitationApproveCmd.Flags().String("notes", "", "Notes recorded with the decision")
}
