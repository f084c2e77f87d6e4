package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/ASHISH26940/headlines/internal/config"
	"github.com/ASHISH26940/headlines/internal/store/filestore"
	"github.com/spf13/cobra"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Rewrite the file backend's document in the current schema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.cfg.Store.Backend != config.BackendFile {
				return fmt.Errorf("migrate only applies to the %s backend, configured backend is %s",
					config.BackendFile, a.cfg.Store.Backend)
			}
			fs := filestore.New(a.cfg.Store.Path, filestore.Options{Logger: a.logger})
			migrated, err := fs.Migrate(cmd.Context())
			if err != nil {
				return err
			}
			if migrated {
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s to version %d\n", fs.Path(), filestore.CurrentVersion)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is already current\n", fs.Path())
			}
			return nil
		},
	}
}

func newGetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "get <country>",
		Short: "Print the current headline for a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			return printJSON(cmd.OutOrStdout(), svc.Get(cmd.Context(), args[0]))
		},
	}
}

func newSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <country> <headline>",
		Short: "Set the headline for a country",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			entry, err := svc.Set(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}
}

func newRecentCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "recent <country>",
		Short: "Print the most recent headlines for a country",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, st, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()
			return printJSON(cmd.OutOrStdout(), map[string]any{"recent": svc.Recent(cmd.Context(), args[0], limit)})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 0, "Number of entries (defaults to recent_limit)")
	return cmd
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
