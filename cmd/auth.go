package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/session"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in to Sistema de Compras",
	Long:  "Authenticate with the purchasing API and store the session for the selected profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		username, _ := cmd.Flags().GetString("username")
		password, _ := cmd.Flags().GetString("password")
		fromStdin, _ := cmd.Flags().GetBool("password-stdin")
		apiURL, _ := cmd.Flags().GetString("api-url")

		if fromStdin {
			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read password from stdin: %w", err)
			}
			password = strings.TrimRight(line, "\r\n")
		}
		if username == "" {
			return fmt.Errorf("username is required")
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}

		if apiURL != "" {
			if err := cfg.SetProfile(cfg.ProfileName(profileName), apiURL); err != nil {
				return fmt.Errorf("failed to save profile: %w", err)
			}
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sess, err := a.session.Login(cmd.Context(), username, password)
		if err != nil && !errors.Is(err, session.ErrProfileUnavailable) {
			return err
		}

		if done, ferr := output.Structured(outputFormat, sess.Profile); done || ferr != nil {
			return ferr
		}
		if sess.Degraded() {
			output.Warn("Logged in as %s, but the profile could not be loaded", username)
			output.Info("Permission checks are left to the server until 'compras whoami --remote' succeeds")
			return nil
		}
		output.Success("Logged in as %s (%s)", sess.Profile.DisplayName(), orDash(sess.Profile.Perfil))
		output.Info("Profile '%s' at %s", a.profile, a.session.BaseURL())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out",
	Long:  "Revoke the refresh token on the server and remove the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.session.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("failed to clear stored session: %w", err)
		}
		output.Success("Logged out from profile '%s'", a.profile)
		return nil
	},
}

// whoami is what the whoami command prints.
type whoami struct {
	Profile       string               `json:"profile"`
	APIURL        string               `json:"api_url"`
	User          *session.UserProfile `json:"user,omitempty"`
	Degraded      bool                 `json:"degraded"`
	AccessExpires *time.Time           `json:"access_expires,omitempty"`
	CanRefresh    bool                 `json:"can_refresh"`
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Display current user information",
	Long:  "Show the user, role and permissions of the stored session",
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		if remote {
			if _, err := a.session.FetchProfile(cmd.Context()); err != nil {
				return err
			}
		}

		sess := a.session.Session()
		if sess == nil {
			return errNotLoggedIn
		}
		info := whoami{
			Profile:    a.profile,
			APIURL:     a.session.BaseURL(),
			User:       sess.Profile,
			Degraded:   sess.Degraded(),
			CanRefresh: sess.Tokens.Refresh != "",
		}
		if tok, err := session.InspectToken(sess.Tokens.Access); err == nil && !tok.ExpiresAt.IsZero() {
			info.AccessExpires = &tok.ExpiresAt
		}

		return render(info, func() {
			output.Field("Profile", info.Profile)
			output.Field("API", info.APIURL)
			if info.User == nil {
				output.Warn("Profile not loaded; run 'compras whoami --remote'")
			} else {
				output.Field("User", info.User.Username)
				output.Field("Name", orDash(info.User.Nome))
				output.Field("Role", orDash(info.User.Perfil))
				output.Field("Department", orDash(info.User.Departamento))
				output.Field("Permissions", permissionList(info.User.Permissions))
			}
			if info.AccessExpires != nil {
				output.Field("Access expires", date(*info.AccessExpires))
			}
			output.Field("Refreshable", yesNo(info.CanRefresh))
		})
	},
}

var refreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the access token",
	Long:  "Exchange the stored refresh token for a new access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()
		if err := a.requireSession(); err != nil {
			return err
		}

		sess, err := a.session.Refresh(cmd.Context())
		if err != nil {
			return err
		}
		if tok, err := session.InspectToken(sess.Tokens.Access); err == nil && !tok.ExpiresAt.IsZero() {
			output.Success("Access token refreshed, valid until %s", date(tok.ExpiresAt))
			return nil
		}
		output.Success("Access token refreshed")
		return nil
	},
}

func permissionList(perms map[string]bool) string {
	var granted []string
	for _, p := range sortedKeys(perms) {
		if perms[p] {
			granted = append(granted, p)
		}
	}
	if len(granted) == 0 {
		return "-"
	}
	return strings.Join(granted, ", ")
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(whoamiCmd)
	rootCmd.AddCommand(refreshCmd)

	loginCmd.Flags().StringP("username", "u", "", "Username")
	loginCmd.Flags().StringP("password", "p", "", "Password")
	loginCmd.Flags().Bool("password-stdin", false, "Read the password from stdin")
	loginCmd.Flags().String("api-url", "", "API base URL to store in the profile")
	loginCmd.MarkFlagRequired("username")

	whoamiCmd.Flags().Bool("remote", false, "Reload the profile from the server")
}
