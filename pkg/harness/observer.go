package harness

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/storage"
)

// ScreenshotStampFormat is appended to screenshot names.
const ScreenshotStampFormat = "20060102_150405"

// Observer is called once per test, after the body finished and before the
// session is terminated. s is nil when no session could be started.
type Observer interface {
	AfterTest(ctx context.Context, out *Outcome, s browser.Session) error
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, out *Outcome, s browser.Session) error

func (f ObserverFunc) AfterTest(ctx context.Context, out *Outcome, s browser.Session) error {
	return f(ctx, out, s)
}

// ScreenshotObserver saves a screenshot of every failed test.
type ScreenshotObserver struct {
	Dir       string
	Persister storage.FilePersister
	Now       func() time.Time
	Log       *logrus.Logger
}

func (o *ScreenshotObserver) AfterTest(ctx context.Context, out *Outcome, s browser.Session) error {
	if out.Status != StatusFail || s == nil {
		return nil
	}

	path := filepath.Join(o.Dir, ScreenshotName(out.Name, o.Now()))
	data, err := s.Screenshot(ctx)
	if err != nil {
		return &ArtifactCaptureError{Path: path, Err: err}
	}
	if err := o.Persister.Persist(ctx, path, bytes.NewReader(data)); err != nil {
		return &ArtifactCaptureError{Path: path, Err: err}
	}

	out.Artifact = path
	o.Log.Errorf("Test failed. Screenshot saved: %s", path)
	return nil
}

// ScreenshotName builds "<test>_<YYYYMMDD_HHMMSS>.png" with path separators
// and spaces in the test name replaced.
func ScreenshotName(testName string, at time.Time) string {
	safe := strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(testName)
	return fmt.Sprintf("%s_%s.png", safe, at.Format(ScreenshotStampFormat))
}

// ConsoleObserver logs console errors seen by sessions that record them.
// With Fail set, a passing test that logged console errors is failed.
type ConsoleObserver struct {
	Log  *logrus.Logger
	Fail bool
}

func (o *ConsoleObserver) AfterTest(_ context.Context, out *Outcome, s browser.Session) error {
	r, ok := s.(browser.ConsoleReporter)
	if !ok {
		return nil
	}
	errs := r.ConsoleErrors()
	for _, e := range errs {
		o.Log.WithField("url", e.URL).Warnf("Console error during %s: %s", out.Name, e.Message)
	}
	if o.Fail && len(errs) > 0 && out.Status == StatusPass {
		out.Status, out.State = StatusFail, Failed
		out.Err = fmt.Errorf("%w: %d errors", ErrConsoleErrors, len(errs))
	}
	return nil
}
