package scenario

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/pages"
	"github.com/kidandcat/feauto/pkg/storage"
)

type Options struct {
	// BaseURL resolves relative navigate targets.
	BaseURL       string
	ScreenshotDir string
	// Timeout bounds wait_for_text and wait_for_url. Defaults to
	// browser.DefaultImplicitWait.
	Timeout   time.Duration
	Persister storage.FilePersister
	Log       *logrus.Logger
}

const pollInterval = 100 * time.Millisecond

// Execute runs every step of test in order and stops at the first failure.
func Execute(ctx context.Context, s browser.Session, test Test, opts Options) error {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Persister == nil {
		opts.Persister = &storage.LocalFilePersister{}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = browser.DefaultImplicitWait
	}
	e := &executor{session: s, test: test, opts: opts}

	for _, step := range test.Steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		opts.Log.Debugf("%s: line %d: %s %s %s", test.Name, step.Line, step.Action, step.Target, step.Value)
		if err := e.step(ctx, step); err != nil {
			return &StepError{Step: step, Err: err}
		}
	}
	return nil
}

type executor struct {
	session browser.Session
	test    Test
	opts    Options
	shots   int
}

func (e *executor) step(ctx context.Context, step Step) error {
	page := pages.NewBasePage(e.session, e.opts.Log)

	switch step.Action {
	case ActionNavigate:
		target, err := e.resolve(step.Target)
		if err != nil {
			return err
		}
		return e.session.Navigate(ctx, target)

	case ActionType:
		return page.SendKeys(ctx, browser.ParseLocator(step.Target), step.Value)

	case ActionClick:
		return page.Click(ctx, browser.ParseLocator(step.Target))

	case ActionSearch:
		return pages.NewHomePage(e.session, e.opts.Log).SearchProduct(ctx, step.Value)

	case ActionWait:
		return e.session.Present(ctx, browser.ParseLocator(step.Target))

	case ActionAssertTitle, ActionAssertTitleContains:
		title, err := page.Title(ctx)
		if err != nil {
			return err
		}
		if step.Action == ActionAssertTitle && title != step.Value {
			return &AssertionError{Expected: step.Value, Actual: title, Message: "title mismatch"}
		}
		if step.Action == ActionAssertTitleContains && !strings.Contains(title, step.Value) {
			return &AssertionError{Expected: step.Value, Actual: title, Message: "title does not contain"}
		}
		return nil

	case ActionAssertURL:
		want, err := e.resolve(step.Target)
		if err != nil {
			return err
		}
		got, err := e.session.URL(ctx)
		if err != nil {
			return err
		}
		if got != want {
			return &AssertionError{Expected: want, Actual: got, Message: "url mismatch"}
		}
		return nil

	case ActionScreenshot:
		return e.screenshot(ctx, step.Target)

	case ActionAssertElementExists:
		return e.session.Present(ctx, browser.ParseLocator(step.Target))

	case ActionAssertText, ActionAssertTextContains:
		text, err := e.session.Text(ctx, browser.ParseLocator(step.Target))
		if err != nil {
			return err
		}
		if step.Action == ActionAssertText && text != step.Value {
			return &AssertionError{Expected: step.Value, Actual: text, Message: "text mismatch"}
		}
		if step.Action == ActionAssertTextContains && !strings.Contains(text, step.Value) {
			return &AssertionError{Expected: step.Value, Actual: text, Message: "text does not contain"}
		}
		return nil

	case ActionAssertAttribute:
		value, ok, err := e.session.Attribute(ctx, browser.ParseLocator(step.Target), step.Attribute)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("attribute %q not found on %s", step.Attribute, step.Target)
		}
		if value != step.Value {
			return &AssertionError{Expected: step.Value, Actual: value, Message: step.Attribute + " mismatch"}
		}
		return nil

	case ActionWaitForText:
		loc := browser.ParseLocator(step.Target)
		return e.poll(ctx, step.Value, "text did not appear", func(ctx context.Context) (string, error) {
			return e.session.Text(ctx, loc)
		})

	case ActionWaitForURL:
		return e.poll(ctx, step.Target, "url did not match", e.session.URL)
	}
	return fmt.Errorf("unknown action: %s", step.Action)
}

// poll reads a value until it contains want or the timeout runs out. Read
// errors count as a miss; the last one is reported on timeout.
func (e *executor) poll(parent context.Context, want, message string, read func(context.Context) (string, error)) error {
	ctx, cancel := context.WithTimeout(parent, e.opts.Timeout)
	defer cancel()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var (
		last    string
		lastErr error
	)
	for {
		last, lastErr = read(ctx)
		if lastErr == nil && strings.Contains(last, want) {
			return nil
		}
		select {
		case <-ctx.Done():
			if err := parent.Err(); err != nil {
				return err
			}
			if lastErr != nil {
				return fmt.Errorf("%s within %s: %w", message, e.opts.Timeout, lastErr)
			}
			return &AssertionError{Expected: want, Actual: last, Message: message}
		case <-ticker.C:
		}
	}
}

// resolve makes target absolute against the base URL.
func (e *executor) resolve(target string) (string, error) {
	ref, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("parsing url %q: %w", target, err)
	}
	if ref.IsAbs() || e.opts.BaseURL == "" {
		return target, nil
	}
	base, err := url.Parse(e.opts.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base url %q: %w", e.opts.BaseURL, err)
	}
	return base.ResolveReference(ref).String(), nil
}

func (e *executor) screenshot(ctx context.Context, filename string) error {
	if filename == "" {
		e.shots++
		safe := strings.NewReplacer(" ", "_", "/", "_", "\\", "_").Replace(e.test.Name)
		if e.shots == 1 {
			filename = safe + ".png"
		} else {
			filename = fmt.Sprintf("%s_%d.png", safe, e.shots)
		}
	}

	data, err := e.session.Screenshot(ctx)
	if err != nil {
		return fmt.Errorf("taking screenshot: %w", err)
	}
	path := filepath.Join(e.opts.ScreenshotDir, filename)
	if err := e.opts.Persister.Persist(ctx, path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("saving screenshot: %w", err)
	}
	e.opts.Log.Infof("Screenshot saved: %s", path)
	return nil
}
