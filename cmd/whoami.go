// cmd/whoami.go
package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/markb/authlite/internal/creds"
	"github.com/markb/authlite/internal/portal"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the signed-in account",
	Long: `Shows the account from the stored session token. With --remote the portal
backend is asked instead, which also verifies the session is still valid.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		token, ok, err := creds.NewStore(database).Load(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("not signed in. Run 'authlite login' first")
		}

		remote, _ := cmd.Flags().GetBool("remote")
		if remote {
			portalURL := stringFlagOrEnv(cmd, "portal", "AUTHLITE_PORTAL_URL")
			if portalURL == "" {
				return fmt.Errorf("--portal (or AUTHLITE_PORTAL_URL) is required with --remote")
			}
			user, err := portal.NewClient(portalURL).Me(cmd.Context(), token)
			if err != nil {
				return fmt.Errorf("session check failed: %w", err)
			}
			printAccount(user.Username, user.Email, user.GithubID)
			return nil
		}

		claims, err := creds.ParseClaims(token)
		if err != nil {
			return fmt.Errorf("stored session is unreadable, sign in again: %w", err)
		}
		printAccount(claims.Username, claims.Email, claims.GithubID)
		return nil
	},
}

func printAccount(username, email, githubID string) {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "USERNAME\tEMAIL\tGITHUB ID\n")
	fmt.Fprintf(w, "%s\t%s\t%s\n", username, email, githubID)
	w.Flush()
}

func init() {
	rootCmd.AddCommand(whoamiCmd)

	whoamiCmd.Flags().Bool("remote", false, "ask the portal backend instead of reading the local token")
	whoamiCmd.Flags().String("portal", "", "portal backend base URL (env: AUTHLITE_PORTAL_URL)")
}
