package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/watcher"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewWatchCmd creates the watch command
func NewWatchCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Watch a directory and commit packages on every DONE",
		Long: `Watches the directory for package payloads and signatures. When the
sentinel file is written, every package with both artifacts present is
committed to the repository database. Runs until interrupted.`,
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

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// Subscribe before the startup rescan so no change is missed
			src, err := watcher.New(cfg.Watch.Backend, cfg.Watch.Dir)
			if err != nil {
				return &models.Error{
					Type:    models.ErrWatch,
					Package: cfg.Watch.Dir,
					Err:     fmt.Errorf("failed to watch directory: %w", err),
				}
			}
			defer src.Close()

			logrus.Infof("Using %s backend", cfg.Watch.Backend)
			if err := s.Run(ctx, src); err != nil {
				return err
			}

			logrus.Info("Stopped")
			return nil
		},
	}

	opts.addFlags(cmd.Flags())
	return cmd
}
