// cmd/key.go
package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/markb/authlite/internal/keystore"
)

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Manage the state-sealing key",
	Long:  `Commands for inspecting and resetting the durable key that seals login state.`,
}

var keyStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether a sealing key exists",
	RunE: func(cmd *cobra.Command, args []string) error {
		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		store := keystore.NewSQLiteStore(database)
		createdAt, ok, err := store.CreatedAt(cmd.Context(), keystore.RootSecretName)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No sealing key yet. One will be created on the next login.")
			return nil
		}
		fmt.Printf("Sealing key present (created %s UTC).\n", createdAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

var keyResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete the sealing key",
	Long: `Deletes the sealing key. Any sign-in currently waiting on a provider
redirect becomes invalid and has to be restarted; a fresh key is created on
the next login.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		force, _ := cmd.Flags().GetBool("force")
		if !force {
			fmt.Print("This invalidates any sign-in currently in flight. Continue? [y/N] ")
			answer, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if a := strings.ToLower(strings.TrimSpace(answer)); a != "y" && a != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		database, err := openDatabase(cmd)
		if err != nil {
			return err
		}
		defer database.Close()

		manager := keystore.NewManager(keystore.NewSQLiteStore(database))
		if err := manager.Reset(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Sealing key deleted. A fresh key will be created on the next login.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keyCmd)
	keyCmd.AddCommand(keyStatusCmd)
	keyCmd.AddCommand(keyResetCmd)

	keyResetCmd.Flags().Bool("force", false, "skip the confirmation prompt")
}
