package models

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorFormatting(t *testing.T) {
	err := &Error{Type: ErrCommit, Package: "lnav", Err: fmt.Errorf("boom")}
	if got := err.Error(); got != "[Commit] lnav: boom" {
		t.Errorf("Error() = %q", got)
	}

	err = &Error{Type: ErrWatch, Err: fmt.Errorf("no such directory")}
	if got := err.Error(); got != "[Watch] no such directory" {
		t.Errorf("Error() = %q", got)
	}
}

func TestErrorIs(t *testing.T) {
	inner := errors.New("inner")
	err := fmt.Errorf("wrapped: %w", &Error{Type: ErrUnhandledEvent, Err: inner})

	if !errors.Is(err, &Error{Type: ErrUnhandledEvent}) {
		t.Error("errors.Is should match on the error type")
	}
	if errors.Is(err, &Error{Type: ErrCommit}) {
		t.Error("errors.Is should not match another error type")
	}
	if !errors.Is(err, inner) {
		t.Error("errors.Is should see the wrapped error")
	}
}
