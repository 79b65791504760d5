package cli

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewSyncCmd creates the sync command
func NewSyncCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Commit the packages currently in the directory and exit",
		Long: `Scans the directory once, as if the sentinel file had just been
written, and commits every package whose payload and signature are both
present.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load(cmd)
			if err != nil {
				return err
			}

			s, err := newSyncer(cfg)
			if err != nil {
				return err
			}

			if err := s.Rescan(cmd.Context()); err != nil {
				return err
			}
			if err := s.Commit(cmd.Context()); err != nil {
				return err
			}

			logrus.Info("Sync completed successfully!")
			return nil
		},
	}

	opts.addFlags(cmd.Flags())
	return cmd
}
