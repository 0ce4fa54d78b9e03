package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/taskdesk/internal/models"
	"golang.org/x/term"
)

// Environment variables consulted before prompting.
const (
	envPassword    = "TD_PASSWORD"
	envNewPassword = "TD_NEW_PASSWORD"
)

// prompter reads secrets from the environment, the terminal or piped stdin.
type prompter struct {
	cmd *cobra.Command
	in  *bufio.Reader
}

func newPrompter(cmd *cobra.Command) *prompter {
	return &prompter{cmd: cmd}
}

func (p *prompter) secret(env, prompt string) (string, error) {
	if v := os.Getenv(env); v != "" {
		return v, nil
	}
	stdin := p.cmd.InOrStdin()
	if f, ok := stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(p.cmd.ErrOrStderr(), prompt)
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(p.cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
	if p.in == nil {
		p.in = bufio.NewReader(stdin)
	}
	line, err := p.in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	line = strings.TrimRight(line, "\r\n")
	if line == "" {
		return "", fmt.Errorf("no password given (set %s or type it)", env)
	}
	return line, nil
}

// login verifies username and returns the account.
func (a *app) login(cmd *cobra.Command, p *prompter, username string) (*models.User, error) {
	if username == "" {
		return nil, errors.New("--as is required for this command")
	}
	password, err := p.secret(envPassword, fmt.Sprintf("Password for %s: ", username))
	if err != nil {
		return nil, err
	}
	u, err := a.users.Verify(cmd.Context(), username, password)
	if err != nil {
		return nil, err
	}
	a.log.Debug("authenticated", "user", u.Username, "role", u.Role)
	return u, nil
}

// loginAdmin is login restricted to admins.
func (a *app) loginAdmin(cmd *cobra.Command, p *prompter, username string) (*models.User, error) {
	u, err := a.login(cmd, p, username)
	if err != nil {
		return nil, err
	}
	if !u.IsAdmin() {
		return nil, fmt.Errorf("%s is not an admin", u.Username)
	}
	return u, nil
}
