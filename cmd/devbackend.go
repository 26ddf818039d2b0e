package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/GenivalfSilva/Sistema-Compras/internal/fakebackend"
	"github.com/GenivalfSilva/Sistema-Compras/pkg/output"
)

var devBackendCmd = &cobra.Command{
	Use:   "dev-backend",
	Short: "Run an in-memory purchasing API for development",
	Long: `Serve an in-memory implementation of the purchasing API, with one demo
account per role. Data is lost when the process stops.

  compras dev-backend --addr 127.0.0.1:8000 --access-ttl 1m`,
	RunE: func(cmd *cobra.Command, args []string) error {
		addr, _ := cmd.Flags().GetString("addr")
		accessTTL, _ := cmd.Flags().GetDuration("access-ttl")
		pageSize, _ := cmd.Flags().GetInt("page-size")
		demo, _ := cmd.Flags().GetBool("demo-users")

		srv := fakebackend.New(fakebackend.Options{
			AccessTTL: accessTTL,
			PageSize:  pageSize,
			Logger:    logger,
		})
		if demo {
			if err := srv.SeedDemoUsers(); err != nil {
				return err
			}
		}

		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("failed to listen on %s: %w", addr, err)
		}
		httpSrv := &http.Server{
			Handler:      srv.Handler(),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}

		output.Success("API listening on http://%s%s", ln.Addr(), fakebackend.Prefix)
		if demo {
			table := output.NewTable([]string{"Username", "Password", "Perfil"})
			for _, u := range fakebackend.DemoUsers {
				table.AddRow([]string{u.Username, u.Password, u.Perfil})
			}
			table.Render()
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- httpSrv.Serve(ln)
		}()

		select {
		case err := <-errCh:
			if !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-cmd.Context().Done():
		}

		logger.Info("shutting down dev backend")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(ctx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(devBackendCmd)

	devBackendCmd.Flags().String("addr", "127.0.0.1:8000", "Listen address")
	devBackendCmd.Flags().Duration("access-ttl", 5*time.Minute, "Access token lifetime")
	devBackendCmd.Flags().Int("page-size", 0, "Paginate lists with this page size (0 returns plain arrays)")
	devBackendCmd.Flags().Bool("demo-users", true, "Create one account per role")
}
