package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/asaidimu/go-plane/api"
	"github.com/asaidimu/go-plane/core/issues"
	"github.com/asaidimu/go-plane/seed"
)

func newServeCommand(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				a.cfg.Server.Address = addr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, db, _, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer db.Close()

			api.Audit(p, a.logger.Named("audit"))
			server := api.New(p, api.Options{
				Issues: issues.Options{
					Pages:       a.cfg.PageSettings(),
					CountFilter: a.cfg.CountFilter(),
				},
				Mode: a.cfg.Server.Mode,
			})
			return server.Run(ctx, a.cfg.Server.Address)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.address)")
	return cmd
}

func newMigrateCommand(a *app) *cobra.Command {
	var reset bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create missing tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, db, applied, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			if reset {
				if err := p.Reset(cmd.Context()); err != nil {
					return err
				}
				if applied, err = p.Migrate(cmd.Context()); err != nil {
					return err
				}
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date.")
				return nil
			}
			for _, rec := range applied {
				fmt.Fprintf(out, "applied %s %s\n", rec.Name, rec.Version)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop every table and its data before migrating")
	return cmd
}

func newSeedCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create a demo workspace",
		Long:  "Creates a demo user owning a workspace with one project, issues and views, then prints the user's API token.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, db, _, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer db.Close()

			demo, err := seed.Demo(cmd.Context(), p)
			if err != nil {
				return err
			}
			a.logger.Info("Demo workspace created",
				zap.String("workspace_id", demo.WorkspaceID),
				zap.String("project_id", demo.ProjectID),
			)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "workspace: %s\n", demo.Slug)
			fmt.Fprintf(out, "project:   %s\n", demo.ProjectID)
			fmt.Fprintf(out, "token:     %s\n", demo.Token)
			fmt.Fprintf(out, "password:  %s\n", seed.DemoPassword)
			return nil
		},
	}
}
