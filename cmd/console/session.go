package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pitabwire/crmconsole/internal/tokenstore"
	"github.com/pitabwire/crmconsole/model"
)

var (
	emailFlag    string
	passwordFlag string
	nameFlag     string
	phoneFlag    string
	pathFlag     string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in and store the credential",
	Long: `Log in with email and password. The password is read from
CRMCONSOLE_PASSWORD or prompted for when --password is not given.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cliApp()
		if err != nil {
			return err
		}
		resp, err := a.services.Auth.Login(cmd.Context(), model.LoginPayload{
			Email:    emailFlag,
			Password: password(cmd),
		})
		if err != nil {
			return err
		}
		a.logger.Info("logged in", zap.String("user_id", resp.User.ID))
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.FullName, resp.User.Role)
		return nil
	},
}

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and store its credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cliApp()
		if err != nil {
			return err
		}
		resp, err := a.services.Auth.Signup(cmd.Context(), model.SignupPayload{
			FullName: nameFlag,
			Email:    emailFlag,
			Password: password(cmd),
			Phone:    phoneFlag,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Account created for %s\n", resp.User.Email)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored credential",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cliApp()
		if err != nil {
			return err
		}
		if err := a.services.Auth.Logout(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user and role",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cliApp()
		if err != nil {
			return err
		}
		ctx, user, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		label := a.access.RoleLabel(ctx, user.Role)
		if outputFlag == "json" {
			return writeJSON(cmd.OutOrStdout(), map[string]any{"user": user, "roleLabel": label})
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s <%s>\n", user.FullName, user.Email)
		fmt.Fprintf(out, "Role: %s\n", label)
		token, _ := a.tokens.Get(ctx)
		if exp, ok := tokenstore.ExpiresAt(token); ok {
			fmt.Fprintf(out, "Credential expires: %s\n", exp.Local().Format(time.RFC1123))
		}
		return nil
	},
}

var navCmd = &cobra.Command{
	Use:   "nav",
	Short: "List the console modules visible to the current user",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := cliApp()
		if err != nil {
			return err
		}
		ctx, user, err := a.session(cmd.Context())
		if err != nil {
			return err
		}
		if pathFlag != "" {
			d := a.access.Guard(user, pathFlag)
			if !d.Allowed && d.Redirect != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "%s is not available to %s; redirecting to %s\n", pathFlag, user.Role, d.Redirect)
			}
		}
		nav := a.access.Navigation(ctx, user, pathFlag)
		if outputFlag == "json" {
			return writeJSON(cmd.OutOrStdout(), nav)
		}
		for _, item := range nav.Items {
			marker := " "
			if item.Active {
				marker = "*"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %-22s %s\n", marker, item.Label, item.Path)
		}
		return nil
	},
}

func init() {
	for _, c := range []*cobra.Command{loginCmd, signupCmd} {
		c.Flags().StringVar(&emailFlag, "email", "", "account email")
		c.Flags().StringVar(&passwordFlag, "password", "", "account password")
	}
	signupCmd.Flags().StringVar(&nameFlag, "name", "", "full name")
	signupCmd.Flags().StringVar(&phoneFlag, "phone", "", "phone number")
	navCmd.Flags().StringVar(&pathFlag, "path", "", "console path to mark as current")
}

// password returns the password flag, CRMCONSOLE_PASSWORD, or a line read
// from stdin.
func password(cmd *cobra.Command) string {
	if passwordFlag != "" {
		return passwordFlag
	}
	if p := os.Getenv("CRMCONSOLE_PASSWORD"); p != "" {
		return p
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}
