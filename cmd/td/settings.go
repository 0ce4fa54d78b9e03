package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/auth"
)

func newSettingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Stored settings commands",
	}

	cmd.AddCommand(newSettingsGetCmd())
	cmd.AddCommand(newSettingsSetCmd())
	cmd.AddCommand(newSettingsListCmd())
	cmd.AddCommand(newSettingsPolicyCmd())
	return cmd
}

func newSettingsGetCmd() *cobra.Command {
	var (
		configPath string
		def        string
	)

	cmd := &cobra.Command{
		Use:   "get <key>",
		Short: "Print a setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			v, err := a.settings.Get(cmd.Context(), args[0], def)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), v)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&def, "default", "", "value printed when the key is not set")
	return cmd
}

func newSettingsSetCmd() *cobra.Command {
	var (
		configPath string
		as         string
	)

	cmd := &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a setting (admin only)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.loginAdmin(cmd, newPrompter(cmd), as); err != nil {
				return err
			}
			if err := a.settings.Set(cmd.Context(), args[0], args[1]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", args[0], args[1])
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "admin username to act as (required)")
	return cmd
}

func newSettingsListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "Print all stored settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			all, err := a.settings.All(cmd.Context())
			if err != nil {
				return err
			}
			keys := make([]string, 0, len(all))
			for k := range all {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s = %s\n", k, all[k])
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newSettingsPolicyCmd() *cobra.Command {
	var (
		configPath    string
		as            string
		minLength     int
		requireDigit  bool
		requireLetter bool
	)

	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Show or change the password policy",
		Long:  "Without flags prints the password policy. With any flag, changes it (admin only); unspecified rules keep their current value.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			p, err := a.settings.PasswordPolicy(cmd.Context())
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("min-length") || flags.Changed("require-digit") || flags.Changed("require-letter") {
				if _, err := a.loginAdmin(cmd, newPrompter(cmd), as); err != nil {
					return err
				}
				if flags.Changed("min-length") {
					p.MinLength = minLength
				}
				if flags.Changed("require-digit") {
					p.RequireDigit = requireDigit
				}
				if flags.Changed("require-letter") {
					p.RequireLetter = requireLetter
				}
				if err := a.settings.SetPasswordPolicy(cmd.Context(), p); err != nil {
					return err
				}
			}
			printPolicy(cmd, p)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "admin username to act as (required when changing)")
	cmd.Flags().IntVar(&minLength, "min-length", 0, "minimum password length")
	cmd.Flags().BoolVar(&requireDigit, "require-digit", false, "require at least one digit")
	cmd.Flags().BoolVar(&requireLetter, "require-letter", false, "require at least one letter")
	return cmd
}

func printPolicy(cmd *cobra.Command, p auth.Policy) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Minimum length:  %d\n", p.MinLength)
	fmt.Fprintf(out, "Require digit:   %t\n", p.RequireDigit)
	fmt.Fprintf(out, "Require letter:  %t\n", p.RequireLetter)
}
