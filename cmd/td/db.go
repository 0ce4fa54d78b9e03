package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/config"
	"github.com/zulandar/taskdesk/internal/db"
	"github.com/zulandar/taskdesk/internal/models"
	"github.com/zulandar/taskdesk/internal/user"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBInitCmd())
	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBInitCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create the schema and seed bootstrap users",
		Long:  "Creates missing tables, applies pending column upgrades (after a backup) and creates the bootstrap users from the config file. Fails if no admin exists afterwards.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDBInit(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runDBInit(cmd *cobra.Command, configPath string) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	out := cmd.OutOrStdout()
	printMigration(cmd, a.migration)

	created, err := a.users.Seed(cmd.Context(), seedInputs(a.cfg.BootstrapUsers))
	for _, u := range created {
		fmt.Fprintf(out, "Created user %s (%s)\n", u.Username, u.Role)
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(out, "Database ready.")
	return nil
}

func seedInputs(seeds []config.UserSeed) []user.CreateInput {
	inputs := make([]user.CreateInput, len(seeds))
	for i, s := range seeds {
		inputs[i] = user.CreateInput{
			Username: s.Username,
			Password: s.Secret(),
			Role:     models.Role(s.Role),
			Name:     s.Name,
			Email:    s.Email,
		}
	}
	return inputs
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the schema up to date",
		Long:  "Applies additive schema changes. The store is backed up first; nothing is done when the schema is current.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()
			printMigration(cmd, a.migration)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func printMigration(cmd *cobra.Command, res db.MigrationResult) {
	out := cmd.OutOrStdout()
	if len(res.Applied) == 0 {
		fmt.Fprintln(out, "Schema is up to date.")
		return
	}
	fmt.Fprintf(out, "Backup: %s\n", res.BackupPath)
	for _, s := range res.Applied {
		fmt.Fprintf(out, "Applied: %s\n", s)
	}
}
