package cli

import (
	"fmt"
	"path/filepath"

	"github.com/ralt/reposyncd/internal/models"
	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewParseCmd creates the parse command
func NewParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse FILE...",
		Short: "Print the package identity encoded in artifact filenames",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			failed := 0

			for _, arg := range args {
				ref, err := pkgref.Parse(filepath.Base(arg))
				if err != nil {
					logrus.Error(err)
					failed++
					continue
				}

				artifact := "binary"
				if ref.Signed {
					artifact = "signature"
				}
				fmt.Fprintf(out, "%s\tname=%s epoch=%d version=%s rel=%d arch=%s artifact=%s\n",
					arg, ref.Name, ref.Epoch, ref.Version, ref.Rel, ref.Arch, artifact)
			}

			if failed > 0 {
				return &models.Error{
					Type: models.ErrPackageParse,
					Err:  fmt.Errorf("%d of %d filenames could not be parsed", failed, len(args)),
				}
			}
			return nil
		},
	}
}
