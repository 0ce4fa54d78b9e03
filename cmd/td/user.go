package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/models"
	"github.com/zulandar/taskdesk/internal/user"
)

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "User directory commands",
	}

	cmd.AddCommand(newUserAddCmd())
	cmd.AddCommand(newUserListCmd())
	cmd.AddCommand(newUserEmailsCmd())
	cmd.AddCommand(newUserDeleteCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		configPath string
		as         string
		in         user.CreateInput
		role       string
	)

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user (admin only)",
		Long:  "Creates a user. The new password is read from TD_NEW_PASSWORD or prompted for, and must satisfy the stored password policy.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in.Username = args[0]
			in.Role = models.Role(role)
			return runUserAdd(cmd, configPath, as, in)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "admin username to act as (required)")
	cmd.Flags().StringVar(&in.Name, "name", "", "display name (defaults to username)")
	cmd.Flags().StringVar(&in.Email, "email", "", "e-mail address")
	cmd.Flags().StringVar(&role, "role", string(models.RoleWorker), "role (admin, worker)")
	return cmd
}

func runUserAdd(cmd *cobra.Command, configPath, as string, in user.CreateInput) error {
	a, err := openApp(cmd, configPath)
	if err != nil {
		return err
	}
	defer a.close()

	p := newPrompter(cmd)
	if _, err := a.loginAdmin(cmd, p, as); err != nil {
		return err
	}
	in.Password, err = p.secret(envNewPassword, fmt.Sprintf("New password for %s: ", in.Username))
	if err != nil {
		return err
	}
	policy, err := a.settings.PasswordPolicy(cmd.Context())
	if err != nil {
		return err
	}
	if err := policy.Check(in.Password); err != nil {
		return err
	}
	u, err := a.users.Create(cmd.Context(), in)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created user %s (%s, id %d)\n", u.Username, u.Role, u.ID)
	return nil
}

func newUserListCmd() *cobra.Command {
	var (
		configPath string
		assignable bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var users []models.User
			if assignable {
				users, err = a.users.ListAssignable(cmd.Context())
			} else {
				users, err = a.users.List(cmd.Context())
			}
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No users found.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tUSERNAME\tNAME\tROLE\tEMAIL")
			for _, u := range users {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", u.ID, u.Username, u.Name, u.Role, dash(u.EmailAddress()))
			}
			w.Flush()
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().BoolVar(&assignable, "assignable", false, "order by display name for assignment pickers")
	return cmd
}

func newUserEmailsCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "emails",
		Short: "Print the distinct e-mail addresses of all users",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			emails, err := a.users.AllEmails(cmd.Context())
			if err != nil {
				return err
			}
			admin, err := a.users.AdminEmail(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, e := range emails {
				if e == admin {
					fmt.Fprintf(out, "%s (admin)\n", e)
					continue
				}
				fmt.Fprintln(out, e)
			}
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func newUserDeleteCmd() *cobra.Command {
	var (
		configPath string
		as         string
	)

	cmd := &cobra.Command{
		Use:   "delete <username>",
		Short: "Delete a user (admin only)",
		Long:  "Deletes a user. The last remaining admin cannot be deleted.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, configPath)
			if err != nil {
				return err
			}
			defer a.close()

			if _, err := a.loginAdmin(cmd, newPrompter(cmd), as); err != nil {
				return err
			}
			u, err := a.users.ByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := a.users.Delete(cmd.Context(), u.ID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted user %s\n", u.Username)
			return nil
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&as, "as", "", "admin username to act as (required)")
	return cmd
}
