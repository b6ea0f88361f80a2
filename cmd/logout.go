// cmd/logout.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/markb/authlite/internal/creds"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored portal session",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		store := creds.NewStore(database)
		_, ok, err := store.Load(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Not signed in.")
			return nil
		}

		if err := store.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Signed out.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logoutCmd)
}
