// cmd/root.go
package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/markb/authlite/internal/db"
	"github.com/markb/authlite/internal/log"
)

// Version information set via ldflags at build time
var (
	Version   = "dev"
	BuildTime = ""
	GitCommit = ""
)

var rootCmd = &cobra.Command{
	Use:   "authlite",
	Short: "Sign in to the portal from the command line",
	Long: `authlite runs the portal's OAuth 2.0 Authorization Code + PKCE flow from a
terminal. The PKCE code verifier crosses the provider redirect sealed inside
an encrypted state parameter, bound to a durable key on this machine.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := log.DefaultConfig()
		if level, _ := cmd.Flags().GetString("log-level"); level != "" {
			cfg.Level = level
		}
		if file, _ := cmd.Flags().GetString("log-file"); file != "" {
			cfg.FilePath = file
		}
		return log.Init(cfg)
	},
}

func init() {
	rootCmd.SetVersionTemplate("authlite version {{.Version}}\n")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-file", "", "write logs to this file instead of stderr")
	rootCmd.PersistentFlags().String("home", "", "authlite home directory (default $AUTHLITE_HOME or ~/.authlite)")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// homeDir resolves the authlite home directory.
// Priority: CLI flag > environment variable > ~/.authlite
func homeDir(cmd *cobra.Command) (string, error) {
	if v, _ := cmd.Flags().GetString("home"); v != "" {
		return v, nil
	}
	if v := os.Getenv("AUTHLITE_HOME"); v != "" {
		return v, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".authlite"), nil
}

// openDatabase opens (creating if needed) the authlite database under the
// home directory.
func openDatabase(cmd *cobra.Command) (*db.DB, error) {
	dir, err := homeDir(cmd)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create authlite home %s: %w", dir, err)
	}

	database, err := db.Open(filepath.Join(dir, "authlite.db"))
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(); err != nil {
		database.Close()
		return nil, err
	}
	return database, nil
}

// stringFlagOrEnv reads a flag, falling back to an environment variable.
func stringFlagOrEnv(cmd *cobra.Command, flag, env string) string {
	if v, _ := cmd.Flags().GetString(flag); v != "" {
		return v
	}
	return os.Getenv(env)
}
