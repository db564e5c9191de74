package cli

import (
	"github.com/spf13/cobra"

	"github.com/victornm/quizshare/internal/store/postgres/migrations"
)

func newMigrateCmd(o *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the Postgres schema",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.loadConfig()
			if err != nil {
				return err
			}
			return migrations.Up(cmd.Context(), c.Postgres.DSN)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration group",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := o.loadConfig()
			if err != nil {
				return err
			}
			return migrations.Down(cmd.Context(), c.Postgres.DSN)
		},
	})

	return cmd
}
