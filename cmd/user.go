package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var userCmd = &cobra.Command{
	Use:     "user",
	Aliases: []string{"usuario"},
	Short:   "User management",
	Long:    "Manage user accounts (admin only)",
}

var userListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List users",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		users, err := a.client.ListUsers(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list users: %w", err)
		}

		return render(users, func() {
			table := output.NewTable([]string{"ID", "Username", "Nome", "Perfil", "Departamento", "Ativo"})
			for _, u := range users {
				table.AddRow(userRow(u))
			}
			table.Render()
		})
	},
}

var userGetCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Show a user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "user")
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

		u, err := a.client.GetUser(cmd.Context(), id)
		if err != nil {
			return err
		}
		return render(u, func() {
			output.Field("ID", u.ID)
			output.Field("Username", u.Username)
			output.Field("Nome", u.Nome)
			output.Field("Email", orDash(u.Email))
			output.Field("Perfil", u.Perfil)
			output.Field("Departamento", u.Departamento)
			output.Field("Ativo", yesNo(u.IsActive))
		})
	},
}

var userCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a user",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := model.NewUser{}
		in.Username, _ = cmd.Flags().GetString("username")
		in.Password, _ = cmd.Flags().GetString("password")
		in.Nome, _ = cmd.Flags().GetString("nome")
		in.Email, _ = cmd.Flags().GetString("email")
		in.Perfil, _ = cmd.Flags().GetString("perfil")
		in.Departamento, _ = cmd.Flags().GetString("departamento")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		u, err := a.client.CreateUser(cmd.Context(), in)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, u); done || err != nil {
			return err
		}
		output.Success("Created user %s (id %d)", u.Username, u.ID)
		return nil
	},
}

var userUpdateCmd = &cobra.Command{
	Use:   "update [id]",
	Short: "Update a user",
	Long:  "Change profile fields of a user. Only the flags given are sent.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0], "user")
		if err != nil {
			return err
		}

		var patch model.UserPatch
		changed := 0
		for flag, dst := range map[string]**string{
			"nome":         &patch.Nome,
			"email":        &patch.Email,
			"perfil":       &patch.Perfil,
			"departamento": &patch.Departamento,
		} {
			if cmd.Flags().Changed(flag) {
				v, _ := cmd.Flags().GetString(flag)
				*dst = &v
				changed++
			}
		}
		if cmd.Flags().Changed("active") {
			v, _ := cmd.Flags().GetBool("active")
			patch.IsActive = &v
			changed++
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

		u, err := a.client.UpdateUser(cmd.Context(), id, patch)
		if err != nil {
			return err
		}
		if done, err := output.Structured(outputFormat, u); done || err != nil {
			return err
		}
		output.Success("Updated user %s", u.Username)
		return nil
	},
}

func userRow(u model.User) []string {
	return []string{strconv.FormatInt(u.ID, 10), u.Username, u.Nome, u.Perfil, u.Departamento, yesNo(u.IsActive)}
}

func init() {
	rootCmd.AddCommand(userCmd)
	userCmd.AddCommand(userListCmd)
	userCmd.AddCommand(userGetCmd)
	userCmd.AddCommand(userCreateCmd)
	userCmd.AddCommand(userUpdateCmd)

	userCreateCmd.Flags().String("username", "", "Username")
	userCreateCmd.Flags().String("password", "", "Initial password")
	userCreateCmd.Flags().String("nome", "", "Full name")
	userCreateCmd.Flags().String("email", "", "Email")
	userCreateCmd.Flags().String("perfil", "", "Role: Solicitante, Estoque, Suprimentos, Gerência&Diretoria, Admin")
	userCreateCmd.Flags().String("departamento", "", "Department")
	userCreateCmd.MarkFlagRequired("username")
	userCreateCmd.MarkFlagRequired("password")
	userCreateCmd.MarkFlagRequired("perfil")

	userUpdateCmd.Flags().String("nome", "", "Full name")
	userUpdateCmd.Flags().String("email", "", "Email")
	userUpdateCmd.Flags().String("perfil", "", "Role")
	userUpdateCmd.Flags().String("departamento", "", "Department")
	userUpdateCmd.Flags().Bool("active", true, "Whether the account may log in")
}
