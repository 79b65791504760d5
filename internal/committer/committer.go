// Package committer hands batches of ready packages over to the
// repository database.
package committer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ralt/reposyncd/internal/pkgref"
	"github.com/ralt/reposyncd/internal/state"
	"github.com/sirupsen/logrus"
)

// Committer publishes a batch into the repository
type Committer interface {
	// Commit adds the ready packages of the batch to the repository and
	// removes its dropped identities. The batch is not retained.
	Commit(ctx context.Context, batch state.Batch) error
}

// RejectedError reports ready packages a committer could not publish. The
// rest of the batch was committed.
type RejectedError struct {
	Refs []pkgref.Ref
	Errs []error
}

// Error implements the error interface
func (e *RejectedError) Error() string {
	return fmt.Sprintf("%d packages rejected: %v", len(e.Refs), errors.Join(e.Errs...))
}

// Unwrap returns the error of each rejected package
func (e *RejectedError) Unwrap() []error {
	return e.Errs
}

// Func adapts a function to the Committer interface
type Func func(ctx context.Context, batch state.Batch) error

// Commit calls f
func (f Func) Commit(ctx context.Context, batch state.Batch) error {
	return f(ctx, batch)
}

// Log is a Committer that only reports what would be published
type Log struct{}

// Commit logs the batch
func (Log) Commit(ctx context.Context, batch state.Batch) error {
	logrus.Info("The following packages will be added/updated:")
	for _, ref := range batch.Ready {
		logrus.Infof("  %s", ref.Identity())
	}
	logrus.Info("The following packages will be removed:")
	for _, id := range batch.Dropped {
		logrus.Infof("  %s", id)
	}
	logrus.Info("The following packages will NOT be added/updated:")
	for _, ref := range batch.Pending {
		logrus.Infof("  %s (binary: %t, signed: %t)", ref.Identity(), ref.Binary, ref.Signed)
	}
	return nil
}
