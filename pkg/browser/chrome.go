package browser

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/chromedp"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/sirupsen/logrus"
)

// ChromeSession drives chrome over the DevTools protocol.
type ChromeSession struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc

	wait     time.Duration
	pageLoad time.Duration
	log      *logrus.Logger

	mu            sync.Mutex
	lastURL       string
	consoleErrors []ConsoleError

	quitOnce sync.Once
	quitErr  error
}

var _ ConsoleReporter = (*ChromeSession)(nil)

// NewChrome resolves a chrome executable and starts it. The browser outlives
// ctx; it is only stopped by Quit.
func NewChrome(ctx context.Context, opts LaunchOptions) (*ChromeSession, error) {
	opts = opts.withDefaults()
	path, err := resolveChrome(opts)
	if err != nil {
		return nil, &DriverLaunchError{Kind: Chrome, Path: opts.DriverPath, Err: err}
	}

	opts.Logger.Debugf("launching chrome from %s", path)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.WithoutCancel(ctx), chromeOptions(path, opts.Headless)...)
	tabCtx, cancel := chromedp.NewContext(allocCtx, chromedp.WithErrorf(opts.Logger.Errorf))

	s := &ChromeSession{
		ctx:         tabCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		wait:        DefaultImplicitWait,
		pageLoad:    opts.PageLoadTimeout,
		log:         opts.Logger,
	}
	chromedp.ListenTarget(tabCtx, s.onEvent)

	// The first Run allocates the browser.
	if err := chromedp.Run(tabCtx); err != nil {
		cancel()
		allocCancel()
		return nil, &DriverLaunchError{Kind: Chrome, Path: path, Err: err}
	}
	return s, nil
}

func chromeOptions(path string, headless bool) []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.ExecPath(path),
		chromedp.Flag("headless", headless),
		chromedp.Flag("disable-gpu", headless),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("start-maximized", true),
		chromedp.Flag("disable-extensions", true),
	)
	if headless {
		// start-maximized has no effect without a window.
		opts = append(opts, chromedp.WindowSize(1920, 1080))
	}
	return opts
}

func resolveChrome(opts LaunchOptions) (string, error) {
	if opts.DriverPath != "" {
		if _, err := os.Stat(opts.DriverPath); err != nil {
			return "", err
		}
		return opts.DriverPath, nil
	}
	if path, ok := launcher.LookPath(); ok {
		return path, nil
	}
	if opts.Managed {
		return launcher.NewBrowser().Get()
	}
	return "", errors.New("no chrome executable found, set DRIVERS/chrome_path or enable managed downloads")
}

func (s *ChromeSession) onEvent(ev interface{}) {
	e, ok := ev.(*runtime.EventConsoleAPICalled)
	if !ok || e.Type != runtime.APITypeError {
		return
	}
	var message string
	if len(e.Args) > 0 && e.Args[0].Value != nil {
		message = string(e.Args[0].Value)
	}

	s.log.Debugf("console error: %s", message)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.consoleErrors = append(s.consoleErrors, ConsoleError{
		Message:   message,
		Timestamp: time.Now(),
		URL:       s.lastURL,
	})
}

// ConsoleErrors returns the console errors seen so far.
func (s *ChromeSession) ConsoleErrors() []ConsoleError {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ConsoleError(nil), s.consoleErrors...)
}

func (s *ChromeSession) Kind() Kind { return Chrome }

func (s *ChromeSession) SetImplicitWait(d time.Duration) error {
	if d <= 0 {
		return errors.New("implicit wait must be positive")
	}
	s.wait = d
	return nil
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (s *ChromeSession) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

func (s *ChromeSession) element(ctx context.Context, loc Locator, action chromedp.Action) error {
	err := s.run(ctx, s.wait, action)
	if errors.Is(err, context.DeadlineExceeded) {
		return &ElementNotFoundError{Locator: loc, Err: err}
	}
	return err
}

func queryOptions(loc Locator, visible bool) []chromedp.QueryOption {
	opts := []chromedp.QueryOption{chromedp.ByQuery}
	if loc.By == ByXPath {
		opts[0] = chromedp.BySearch
	}
	if visible {
		opts = append(opts, chromedp.NodeVisible)
	}
	return opts
}

func (s *ChromeSession) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.lastURL = url
	s.mu.Unlock()
	return s.run(ctx, s.pageLoad, chromedp.Navigate(url))
}

func (s *ChromeSession) SendKeys(ctx context.Context, loc Locator, text string) error {
	return s.element(ctx, loc, chromedp.SendKeys(loc.Value, text, queryOptions(loc, true)...))
}

func (s *ChromeSession) Click(ctx context.Context, loc Locator) error {
	return s.element(ctx, loc, chromedp.Click(loc.Value, queryOptions(loc, true)...))
}

func (s *ChromeSession) Present(ctx context.Context, loc Locator) error {
	return s.element(ctx, loc, chromedp.WaitReady(loc.Value, queryOptions(loc, false)...))
}

func (s *ChromeSession) Text(ctx context.Context, loc Locator) (string, error) {
	var text string
	err := s.element(ctx, loc, chromedp.Text(loc.Value, &text, queryOptions(loc, true)...))
	return text, err
}

func (s *ChromeSession) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	var (
		value string
		ok    bool
	)
	err := s.element(ctx, loc, chromedp.AttributeValue(loc.Value, name, &value, &ok, queryOptions(loc, false)...))
	return value, ok, err
}

func (s *ChromeSession) Title(ctx context.Context) (string, error) {
	var title string
	err := s.run(ctx, s.pageLoad, chromedp.Title(&title))
	return title, err
}

func (s *ChromeSession) URL(ctx context.Context) (string, error) {
	var url string
	err := s.run(ctx, s.pageLoad, chromedp.Location(&url))
	return url, err
}

func (s *ChromeSession) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	// Quality 100 keeps the capture in PNG.
	if err := s.run(ctx, s.pageLoad, chromedp.FullScreenshot(&buf, 100)); err != nil {
		return nil, err
	}
	return buf, nil
}

func (s *ChromeSession) Quit() error {
	s.quitOnce.Do(func() {
		s.quitErr = chromedp.Cancel(s.ctx)
		s.cancel()
		s.allocCancel()
	})
	return s.quitErr
}
