// Package cmd implements the compras command-line interface.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/apperr"
	"github.com/GenivalfSilva/Sistema-Compras/internal/config"
	"github.com/GenivalfSilva/Sistema-Compras/internal/logging"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var (
	cfgFile      string
	profileName  string
	outputFormat string
	logLevel     string
	noColor      bool

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "compras",
	Short: "Sistema de Compras CLI",
	Long: `compras is the command-line client of Sistema de Compras.

Log in, follow purchase solicitations through the pipeline, record
quotations and approvals, and administer users and settings from your
terminal.`,
	Version:           "0.1.0",
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: initConfig,
}

// Execute runs the command tree until completion or an interrupt.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if err != nil {
		output.Error("%s", describe(err))
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.compras/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to use (default: current profile)")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", output.FormatTable, "output format: table, json, yaml")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

func initConfig(cmd *cobra.Command, _ []string) error {
	if !output.ValidFormat(outputFormat) {
		return fmt.Errorf("unknown output format %q", outputFormat)
	}
	if noColor {
		output.DisableColor()
	}

	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not load config: %v\n", err)
		cfg = config.Default()
	}

	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	logger = logging.NewWithWriter(cmd.ErrOrStderr(), logging.ParseLevel(level), cfg.Logging.Format)
	return nil
}

// describe turns an error into the line shown to the user, with a hint
// for the failures a user can act on.
func describe(err error) string {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		return err.Error()
	}
	switch ae.Kind {
	case apperr.KindInvalidCredentials:
		return "Usuário ou senha inválidos"
	case apperr.KindSessionExpired:
		// The navigator has already printed the login hint.
		return "Sessão expirada."
	case apperr.KindNetwork:
		return fmt.Sprintf("Não foi possível conectar ao servidor: %v", err)
	case apperr.KindForbidden:
		if ae.Permission != "" {
			return fmt.Sprintf("Você não tem permissão para executar essa ação (requer %s)", ae.Permission)
		}
		if ae.Message != "" {
			return ae.Message
		}
		return "Você não tem permissão para executar essa ação."
	case apperr.KindValidation:
		var b strings.Builder
		b.WriteString(orDash(ae.Message))
		fields := make([]string, 0, len(ae.Fields))
		for f := range ae.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(&b, "\n  %s: %s", f, strings.Join(ae.Fields[f], "; "))
		}
		return b.String()
	}
	return err.Error()
}
