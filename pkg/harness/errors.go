package harness

import (
	"errors"
	"fmt"
)

var (
	ErrTestFailed = errors.New("test failed")
	// ErrAborted is recorded when the test body exits without returning,
	// as t.FailNow does.
	ErrAborted = errors.New("test body aborted")
	ErrPanic   = errors.New("test body panicked")
	// ErrConsoleErrors fails tests that logged browser console errors when
	// fail_on_console_error is set.
	ErrConsoleErrors = errors.New("console errors detected")
)

// ArtifactCaptureError reports a screenshot that could not be taken or
// saved. It is logged and never replaces the test's own error.
type ArtifactCaptureError struct {
	Path string
	Err  error
}

func (e *ArtifactCaptureError) Error() string {
	return fmt.Sprintf("capturing artifact %s: %v", e.Path, e.Err)
}

func (e *ArtifactCaptureError) Unwrap() error { return e.Err }
