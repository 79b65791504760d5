package cli

import (
	"fmt"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "reposyncd",
		Short: "Keep a pacman repository database in sync with a package directory",
		Long: `Reposyncd watches a directory where package builds are dropped.
Every package payload (NAME-[EPOCH:]VER-REL-ARCH.pkg.tar.xz) and its
detached signature (.sig) are tracked, and when a DONE file is written
the packages that have both are committed to the repository database.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Setup logging
			verbose, _ := cmd.Flags().GetBool("verbose")
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			} else {
				logrus.SetLevel(logrus.InfoLevel)
			}

			format, _ := cmd.Flags().GetString("log-format")
			return setupLogFormat(format)
		},
	}

	// Global flags
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to a YAML configuration file")

	// Add subcommands
	rootCmd.AddCommand(NewWatchCmd())
	rootCmd.AddCommand(NewSyncCmd())
	rootCmd.AddCommand(NewParseCmd())

	return rootCmd
}

func setupLogFormat(format string) error {
	switch format {
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		return &models.Error{
			Type: models.ErrInvalidConfig,
			Err:  fmt.Errorf("unknown log format %q", format),
		}
	}
	return nil
}
