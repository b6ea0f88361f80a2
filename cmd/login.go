// cmd/login.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/markb/authlite/internal/callback"
	"github.com/markb/authlite/internal/creds"
	"github.com/markb/authlite/internal/keystore"
	"github.com/markb/authlite/internal/login"
	"github.com/markb/authlite/internal/portal"
	"github.com/markb/authlite/internal/server"
	"github.com/markb/authlite/internal/state"
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the portal via the identity provider",
	Long: `Starts the Authorization Code + PKCE flow: opens your browser on the
provider's sign-in page, catches the redirect on a loopback server, and
exchanges the authorization code with the portal backend.

Examples:
  # Sign in with configuration from the environment
  AUTHLITE_CLIENT_ID=abc AUTHLITE_PORTAL_URL=https://portal.example.com authlite login

  # Everything on the command line
  authlite login --client-id abc --portal https://portal.example.com`,
	RunE: func(cmd *cobra.Command, args []string) error {
		clientID := stringFlagOrEnv(cmd, "client-id", "AUTHLITE_CLIENT_ID")
		portalURL := stringFlagOrEnv(cmd, "portal", "AUTHLITE_PORTAL_URL")
		listenAddr, _ := cmd.Flags().GetString("listen")
		redirectURL, _ := cmd.Flags().GetString("redirect-url")
		timeout, _ := cmd.Flags().GetDuration("timeout")

		if clientID == "" {
			return fmt.Errorf("--client-id (or AUTHLITE_CLIENT_ID) is required")
		}
		if portalURL == "" {
			return fmt.Errorf("--portal (or AUTHLITE_PORTAL_URL) is required")
		}

		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		// Composition root: everything below is injected, nothing is global.
		keys := keystore.NewManager(keystore.NewSQLiteStore(database))
		sealer := state.NewSealer(keys)
		credStore := creds.NewStore(database)
		backend := portal.NewClient(portalURL)
		handler := callback.NewHandler(sealer, backend, credStore)

		srv := server.New(handler)
		if err := srv.Start(listenAddr); err != nil {
			return err
		}
		defer srv.Shutdown(context.Background())

		if redirectURL == "" {
			redirectURL = "http://" + srv.Addr() + server.CallbackPath
		}

		nav := &login.Browser{Interactive: term.IsTerminal(int(os.Stdout.Fd()))}
		initiator := login.NewInitiator(login.Config{
			ClientID:    clientID,
			RedirectURL: redirectURL,
		}, sealer, nav)

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		if _, err := initiator.Start(ctx); err != nil {
			return fmt.Errorf("could not start sign-in (safe to retry): %w", err)
		}

		select {
		case res := <-srv.Results():
			if res.Failed() {
				return fmt.Errorf("%s", res.Message)
			}
			fmt.Println("Signed in successfully.")
			if claims, err := creds.ParseClaims(res.Token); err == nil && claims.Username != "" {
				fmt.Printf("Welcome, %s!\n", claims.Username)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("timed out after %s waiting for the provider redirect", timeout)
		}
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)

	loginCmd.Flags().String("client-id", "", "OAuth client ID (env: AUTHLITE_CLIENT_ID)")
	loginCmd.Flags().String("portal", "", "portal backend base URL (env: AUTHLITE_PORTAL_URL)")
	loginCmd.Flags().String("listen", "127.0.0.1:8976", "loopback address for the callback server")
	loginCmd.Flags().String("redirect-url", "", "redirect URI registered with the provider (default derived from --listen)")
	loginCmd.Flags().Duration("timeout", 10*time.Minute, "how long to wait for the provider redirect")
}
