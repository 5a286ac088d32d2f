// Package browser provides browser sessions for chrome and firefox behind a
// single Session interface.
package browser

//go:generate mockgen -destination=browsermock/session.go -package=browsermock . Session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Kind is the closed set of supported browsers.
type Kind int

const (
	Chrome Kind = iota + 1
	Firefox
)

func (k Kind) String() string {
	switch k {
	case Chrome:
		return "chrome"
	case Firefox:
		return "firefox"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Kinds lists every supported browser.
func Kinds() []Kind {
	return []Kind{Chrome, Firefox}
}

// ParseKind maps a browser name to its Kind.
func ParseKind(name string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "chrome":
		return Chrome, nil
	case "firefox":
		return Firefox, nil
	}
	return 0, &UnsupportedBrowserError{Name: name}
}

// Session is a live handle to one browser instance.
type Session interface {
	Kind() Kind
	// SetImplicitWait bounds every following element lookup.
	SetImplicitWait(d time.Duration) error
	Navigate(ctx context.Context, url string) error
	SendKeys(ctx context.Context, loc Locator, text string) error
	Click(ctx context.Context, loc Locator) error
	// Present waits for loc to resolve.
	Present(ctx context.Context, loc Locator) error
	// Text returns the rendered text of the visible element at loc.
	Text(ctx context.Context, loc Locator) (string, error)
	// Attribute reports the value of the named attribute and whether the
	// element carries it at all.
	Attribute(ctx context.Context, loc Locator, name string) (string, bool, error)
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	// Screenshot returns a PNG of the current page.
	Screenshot(ctx context.Context) ([]byte, error)
	// Quit terminates the browser process. It is safe to call more than once.
	Quit() error
}

// ConsoleError is a console.error call observed in the page.
type ConsoleError struct {
	Message   string
	Timestamp time.Time
	URL       string
}

// ConsoleReporter is implemented by sessions that can observe the page
// console.
type ConsoleReporter interface {
	ConsoleErrors() []ConsoleError
}

const (
	DefaultImplicitWait    = 10 * time.Second
	DefaultPageLoadTimeout = 30 * time.Second
)

// LaunchOptions describe how to start a browser.
type LaunchOptions struct {
	Kind     Kind
	Headless bool
	// DriverPath is the chrome executable or the geckodriver binary.
	DriverPath string
	// RemoteURL points firefox sessions at a running WebDriver server.
	RemoteURL string
	// Managed allows downloading a chromium build when none is installed.
	Managed         bool
	PageLoadTimeout time.Duration
	Logger          *logrus.Logger
}

// Launcher starts a session. Launch is the default implementation.
type Launcher func(ctx context.Context, opts LaunchOptions) (Session, error)

func (o LaunchOptions) withDefaults() LaunchOptions {
	if o.PageLoadTimeout <= 0 {
		o.PageLoadTimeout = DefaultPageLoadTimeout
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	return o
}

// Launch starts the browser named by opts.Kind.
func Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	var (
		s   Session
		err error
	)
	switch opts.Kind {
	case Chrome:
		s, err = NewChrome(ctx, opts)
	case Firefox:
		s, err = NewFirefox(ctx, opts)
	default:
		return nil, &UnsupportedBrowserError{Name: opts.Kind.String()}
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}
