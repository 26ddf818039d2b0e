package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var quotationCmd = &cobra.Command{
	Use:     "quotation",
	Aliases: []string{"cotacao"},
	Short:   "Supplier quotations",
	Long:    "List, record and select supplier quotations of a solicitation",
}

var quotationListCmd = &cobra.Command{
	Use:     "list [solicitation-id]",
	Aliases: []string{"ls"},
	Short:   "List quotations of a solicitation",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		solID, err := parseID(args[0], "solicitation")
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

		quotes, err := a.client.ListQuotations(cmd.Context(), solID)
		if err != nil {
			return fmt.Errorf("failed to list quotations: %w", err)
		}

		return render(quotes, func() {
			if len(quotes) == 0 {
				output.Info("No quotations for solicitation %d", solID)
				return
			}
			table := output.NewTable([]string{"ID", "Fornecedor", "Unitário", "Total", "Prazo (dias)", "Pagamento", "Selecionada"})
			for _, q := range quotes {
				table.AddRow([]string{
					strconv.FormatInt(q.ID, 10),
					q.Fornecedor,
					q.ValorUnitario.String(),
					q.ValorTotal.String(),
					strconv.Itoa(q.PrazoEntrega),
					q.CondicoesPagamento,
					yesNo(q.Selecionada),
				})
			}
			table.Render()
		})
	},
}

var quotationAddCmd = &cobra.Command{
	Use:   "add [solicitation-id]",
	Short: "Record a supplier quotation",
	Long:  "Record a supplier offer for a solicitation. The total defaults to unit price times the first item's quantity.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		solID, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}

		q := model.Quotation{}
		q.Fornecedor, _ = cmd.Flags().GetString("fornecedor")
		q.PrazoEntrega, _ = cmd.Flags().GetInt("prazo")
		q.CondicoesPagamento, _ = cmd.Flags().GetString("pagamento")
		q.Observacoes, _ = cmd.Flags().GetString("observacoes")

		rawUnit, _ := cmd.Flags().GetString("unitario")
		unit, err := model.ParseMoney(rawUnit)
		if err != nil {
			return err
		}
		q.ValorUnitario = unit
		rawTotal, _ := cmd.Flags().GetString("total")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		if rawTotal != "" {
			if q.ValorTotal, err = model.ParseMoney(rawTotal); err != nil {
				return err
			}
		} else {
			sol, err := a.client.GetSolicitation(cmd.Context(), solID)
			if err != nil {
				return err
			}
			qty := 1.0
			if len(sol.Itens) > 0 {
				qty = sol.Itens[0].Quantidade
			}
			q.ValorTotal = model.Money(float64(unit) * qty)
		}

		created, err := a.client.AddQuotation(cmd.Context(), solID, q)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, created); done || err != nil {
			return err
		}
		output.Success("Recorded quotation %d from %s (%s)", created.ID, created.Fornecedor, created.ValorTotal)
		return nil
	},
}

var quotationSelectCmd = &cobra.Command{
	Use:   "select [solicitation-id] [quotation-id]",
	Short: "Select the winning quotation",
	Long:  "Mark one quotation as selected; the server unselects the others",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		solID, err := parseID(args[0], "solicitation")
		if err != nil {
			return err
		}
		quoteID, err := parseID(args[1], "quotation")
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

		selected, err := a.client.SelectQuotation(cmd.Context(), solID, quoteID)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, selected); done || err != nil {
			return err
		}
		output.Success("Selected %s for solicitation %d", selected.Fornecedor, solID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(quotationCmd)
	quotationCmd.AddCommand(quotationListCmd)
	quotationCmd.AddCommand(quotationAddCmd)
	quotationCmd.AddCommand(quotationSelectCmd)

	quotationAddCmd.Flags().String("fornecedor", "", "Supplier name")
	quotationAddCmd.Flags().String("unitario", "", "Unit price")
	quotationAddCmd.Flags().String("total", "", "Total price")
	quotationAddCmd.Flags().Int("prazo", 0, "Delivery lead time in days")
	quotationAddCmd.Flags().String("pagamento", "", "Payment terms")
	quotationAddCmd.Flags().String("observacoes", "", "Notes")
	quotationAddCmd.MarkFlagRequired("fornecedor")
	quotationAddCmd.MarkFlagRequired("unitario")
}
