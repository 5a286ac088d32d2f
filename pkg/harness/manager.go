// Package harness owns the browser session of each test: it launches the
// browser, hands it to the test body, captures artifacts when the test fails
// and always terminates the browser before returning.
package harness

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/config"
	"github.com/kidandcat/feauto/pkg/storage"
)

// State is the lifecycle position of a single test.
type State int

const (
	Uninitialized State = iota
	Launching
	Ready
	Running
	Completed
	Failed
	Terminated
)

var stateNames = [...]string{"uninitialized", "launching", "ready", "running", "completed", "failed", "terminated"}

func (s State) String() string {
	if int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Status string

const (
	StatusPass  Status = "pass"
	StatusFail  Status = "fail"
	StatusError Status = "error"
)

// Outcome is the result of one test.
type Outcome struct {
	Name      string
	Browser   string
	Status    Status
	State     State
	Err       error
	Artifact  string
	Timestamp time.Time
	Duration  time.Duration
}

// Passed reports whether the test body completed without error.
func (o Outcome) Passed() bool {
	return o.Status == StatusPass
}

// TestFunc is a test body. Returning an error fails the test.
type TestFunc func(ctx context.Context, s browser.Session) error

// Stats counts sessions across every test run by a Manager.
type Stats struct {
	Launched   int64
	Terminated int64
}

const captureTimeout = 30 * time.Second

type Manager struct {
	settings  Settings
	log       *logrus.Logger
	launch    browser.Launcher
	persister storage.FilePersister
	now       func() time.Time

	screenshots bool
	observers   []Observer

	launched   atomic.Int64
	terminated atomic.Int64
}

type Option func(*Manager)

// WithLauncher replaces browser.Launch.
func WithLauncher(l browser.Launcher) Option {
	return func(m *Manager) { m.launch = l }
}

// WithPersister replaces the local disk as screenshot destination.
func WithPersister(p storage.FilePersister) Option {
	return func(m *Manager) { m.persister = p }
}

// WithClock sets the clock used for timestamps and artifact names.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithoutScreenshots disables failure screenshots.
func WithoutScreenshots() Option {
	return func(m *Manager) { m.screenshots = false }
}

// WithObserver registers o after the built-in observers.
func WithObserver(o Observer) Option {
	return func(m *Manager) { m.observers = append(m.observers, o) }
}

// New resolves the run settings and returns a Manager. Configuration errors
// are returned here, before any browser is started.
func New(cfg *config.Config, opts Options, log *logrus.Logger, mopts ...Option) (*Manager, error) {
	settings, err := ResolveSettings(cfg, opts)
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	m := &Manager{
		settings:    settings,
		log:         log,
		launch:      browser.Launch,
		persister:   &storage.LocalFilePersister{},
		now:         time.Now,
		screenshots: true,
	}
	for _, opt := range mopts {
		opt(m)
	}
	extra := m.observers

	// The console check may still fail the test, so it goes before capture.
	m.observers = []Observer{&ConsoleObserver{Log: log, Fail: settings.FailOnConsoleError}}
	if m.screenshots {
		m.observers = append(m.observers, &ScreenshotObserver{
			Dir:       settings.ScreenshotDir,
			Persister: m.persister,
			Now:       m.now,
			Log:       log,
		})
	}
	m.observers = append(m.observers, extra...)
	return m, nil
}

// Settings returns the resolved run settings.
func (m *Manager) Settings() Settings {
	return m.settings
}

// Observe registers o to run after every test.
func (m *Manager) Observe(o Observer) {
	m.observers = append(m.observers, o)
}

// Stats returns how many sessions were launched and terminated so far.
func (m *Manager) Stats() Stats {
	return Stats{Launched: m.launched.Load(), Terminated: m.terminated.Load()}
}

// Run executes body against a fresh browser session. The session is
// terminated before Run returns, or before the goroutine exits when body
// calls runtime.Goexit.
func (m *Manager) Run(ctx context.Context, name string, body TestFunc) Outcome {
	out := &Outcome{
		Name:      name,
		Browser:   m.settings.Browser,
		State:     Uninitialized,
		Timestamp: m.now(),
	}
	m.run(ctx, out, body)
	return *out
}

func (m *Manager) run(ctx context.Context, out *Outcome, body TestFunc) {
	start := time.Now()
	defer func() {
		out.Duration = time.Since(start)
		m.report(out)
	}()

	out.State = Launching
	kind, sess, err := m.startSession(ctx)
	if err != nil {
		out.Status, out.Err, out.State = StatusError, err, Failed
		m.notify(ctx, out, nil)
		out.State = Terminated
		return
	}
	defer m.teardown(out, sess)

	if err := m.prepare(ctx, kind, sess); err != nil {
		out.Status, out.Err, out.State = StatusError, err, Failed
		m.notify(ctx, out, sess)
		return
	}
	out.State = Ready
	m.log.Debugf("Session for %s is ready", out.Name)

	out.State = Running
	returned := false
	defer func() {
		if returned {
			return
		}
		out.Status, out.State = StatusFail, Failed
		if r := recover(); r != nil {
			out.Err = fmt.Errorf("%w: %v", ErrPanic, r)
		} else {
			out.Err = ErrAborted
		}
		m.notify(ctx, out, sess)
	}()
	err = body(ctx, sess)
	returned = true

	if err != nil {
		out.Status, out.Err, out.State = StatusFail, err, Failed
	} else {
		out.Status, out.State = StatusPass, Completed
	}
	m.notify(ctx, out, sess)
}

func (m *Manager) startSession(ctx context.Context) (browser.Kind, browser.Session, error) {
	kind, err := browser.ParseKind(m.settings.Browser)
	if err != nil {
		return 0, nil, err
	}

	sess, err := m.launch(ctx, browser.LaunchOptions{
		Kind:            kind,
		Headless:        m.settings.Headless,
		DriverPath:      m.settings.DriverPaths[kind],
		RemoteURL:       m.settings.RemoteURL,
		Managed:         m.settings.Managed,
		PageLoadTimeout: m.settings.PageLoadTimeout,
		Logger:          m.log,
	})
	if err != nil {
		return 0, nil, err
	}
	m.launched.Add(1)
	return kind, sess, nil
}

func (m *Manager) prepare(ctx context.Context, kind browser.Kind, sess browser.Session) error {
	if err := sess.SetImplicitWait(m.settings.ImplicitWait); err != nil {
		return fmt.Errorf("setting implicit wait: %w", err)
	}
	m.log.Infof("Initializing %s WebDriver", strings.ToUpper(kind.String()))

	m.log.Infof("Navigating to %s", m.settings.BaseURL)
	if err := sess.Navigate(ctx, m.settings.BaseURL); err != nil {
		return fmt.Errorf("navigating to %s: %w", m.settings.BaseURL, err)
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, out *Outcome, sess browser.Session) {
	// Capture has to work after the test's own context is cancelled.
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), captureTimeout)
	defer cancel()

	for _, o := range m.observers {
		if err := o.AfterTest(cctx, out, sess); err != nil {
			m.log.Warnf("Post-test hook for %s failed: %v", out.Name, err)
		}
	}
}

func (m *Manager) teardown(out *Outcome, sess browser.Session) {
	if err := sess.Quit(); err != nil {
		m.log.Warnf("Closing %s browser: %v", m.settings.Browser, err)
	}
	m.terminated.Add(1)
	out.State = Terminated
	m.log.Info("WebDriver closed")
}

func (m *Manager) report(out *Outcome) {
	switch out.Status {
	case StatusPass:
		m.log.Infof("Test %s passed in %s", out.Name, out.Duration.Round(time.Millisecond))
	case StatusFail:
		m.log.Errorf("Test %s failed: %v", out.Name, out.Err)
	default:
		m.log.Errorf("Test %s errored: %v", out.Name, out.Err)
	}
}

// Test runs body as a go test. t.Error and t.FailNow inside body fail the
// outcome and still trigger screenshot capture and teardown.
func (m *Manager) Test(t *testing.T, body func(t *testing.T, s browser.Session)) Outcome {
	t.Helper()
	out := m.Run(t.Context(), t.Name(), func(_ context.Context, s browser.Session) error {
		body(t, s)
		if t.Failed() {
			return ErrTestFailed
		}
		return nil
	})

	switch {
	case out.Status == StatusError:
		t.Fatalf("setting up %s session: %v", out.Browser, out.Err)
	case out.Status == StatusFail && !t.Failed():
		t.Errorf("%v", out.Err)
	}
	return out
}
