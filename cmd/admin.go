package cmd

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/client"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var auditCmd = &cobra.Command{
	Use:     "audit",
	Aliases: []string{"auditoria"},
	Short:   "Audit logs",
	Long:    "Browse administrative actions and login attempts (admin only)",
}

var auditAdminCmd = &cobra.Command{
	Use:   "admin",
	Short: "List administrative actions",
	RunE: func(cmd *cobra.Command, args []string) error {
		var f client.AdminLogFilter
		f.Acao, _ = cmd.Flags().GetString("acao")
		f.Usuario, _ = cmd.Flags().GetString("usuario")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		entries, err := a.client.AdminLog(cmd.Context(), f)
		if err != nil {
			return err
		}
		return render(entries, func() {
			table := output.NewTable([]string{"Quando", "Usuário", "Ação", "Módulo", "Detalhes"})
			for _, e := range entries {
				table.AddRow([]string{date(e.Timestamp), e.Usuario, e.Acao, e.Modulo, output.Truncate(e.Detalhes, 60)})
			}
			table.Render()
		})
	},
}

var auditLoginsCmd = &cobra.Command{
	Use:   "logins",
	Short: "List login attempts",
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		entries, err := a.client.LoginLog(cmd.Context(), status)
		if err != nil {
			return err
		}
		return render(entries, func() {
			table := output.NewTable([]string{"Quando", "Username", "Status", "IP", "Motivo"})
			for _, e := range entries {
				table.AddRow([]string{date(e.Timestamp), e.UsernameTentativa, e.Status, orDash(e.IPAddress), orDash(e.MotivoFalha)})
			}
			table.Render()
		})
	},
}

var settingsCmd = &cobra.Command{
	Use:     "settings",
	Aliases: []string{"configuracoes"},
	Short:   "System settings",
	Long:    "Show general settings, SLA per department and approval limits (admin only)",
}

var settingsListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List general settings",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		settings, err := a.client.Settings(cmd.Context())
		if err != nil {
			return err
		}
		return render(settings, func() {
			table := output.NewTable([]string{"Chave", "Valor", "Descrição"})
			for _, s := range settings {
				table.AddRow([]string{s.Chave, s.Valor, orDash(s.Descricao)})
			}
			table.Render()
		})
	},
}

var settingsSLACmd = &cobra.Command{
	Use:   "sla",
	Short: "List SLA days per department",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		slas, err := a.client.SLASettings(cmd.Context())
		if err != nil {
			return err
		}
		return render(slas, func() {
			table := output.NewTable([]string{"Departamento", "Urgente", "Alta", "Normal", "Baixa", "Ativo"})
			for _, s := range slas {
				table.AddRow([]string{
					s.Departamento,
					strconv.Itoa(s.SLAUrgente),
					strconv.Itoa(s.SLAAlta),
					strconv.Itoa(s.SLANormal),
					strconv.Itoa(s.SLABaixa),
					yesNo(s.Ativo),
				})
			}
			table.Render()
		})
	},
}

var settingsLimitsCmd = &cobra.Command{
	Use:   "limits",
	Short: "List approval limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		limits, err := a.client.ApprovalLimits(cmd.Context())
		if err != nil {
			return err
		}
		return render(limits, func() {
			table := output.NewTable([]string{"Nome", "Mínimo", "Máximo", "Aprovador", "Ativo"})
			for _, l := range limits {
				table.AddRow([]string{l.Nome, l.ValorMinimo.String(), l.ValorMaximo.String(), l.Aprovador, yesNo(l.Ativo)})
			}
			table.Render()
		})
	},
}

var catalogCmd = &cobra.Command{
	Use:     "catalog",
	Aliases: []string{"catalogo"},
	Short:   "Product catalog",
}

var catalogListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List catalog products",
	RunE: func(cmd *cobra.Command, args []string) error {
		search, _ := cmd.Flags().GetString("search")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		items, err := a.client.Catalog(cmd.Context(), search)
		if err != nil {
			return err
		}
		return render(items, func() {
			table := output.NewTable([]string{"Código", "Nome", "Categoria", "Unidade"})
			for _, it := range items {
				table.AddRow([]string{it.Codigo, it.Nome, orDash(it.Categoria), it.Unidade})
			}
			table.Render()
		})
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditAdminCmd)
	auditCmd.AddCommand(auditLoginsCmd)
	auditAdminCmd.Flags().String("acao", "", "Filter by action")
	auditAdminCmd.Flags().String("usuario", "", "Filter by user")
	auditLoginsCmd.Flags().String("status", "", "Filter by status: Sucesso or Falha")

	rootCmd.AddCommand(settingsCmd)
	settingsCmd.AddCommand(settingsListCmd)
	settingsCmd.AddCommand(settingsSLACmd)
	settingsCmd.AddCommand(settingsLimitsCmd)

	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogListCmd)
	catalogListCmd.Flags().String("search", "", "Match code or name")
}
