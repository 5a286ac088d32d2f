package browser

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/firefox"
)

// FirefoxSession drives firefox through geckodriver.
type FirefoxSession struct {
	wd      selenium.WebDriver
	service *selenium.Service
	output  io.Closer

	quitOnce sync.Once
	quitErr  error
}

// NewFirefox starts geckodriver (or uses opts.RemoteURL) and opens a
// firefox session on it.
func NewFirefox(ctx context.Context, opts LaunchOptions) (*FirefoxSession, error) {
	opts = opts.withDefaults()
	if err := ctx.Err(); err != nil {
		return nil, &DriverLaunchError{Kind: Firefox, Err: err}
	}

	s := &FirefoxSession{}
	addr := opts.RemoteURL
	if addr == "" {
		path, err := resolveGeckodriver(opts.DriverPath)
		if err != nil {
			return nil, &DriverLaunchError{Kind: Firefox, Path: opts.DriverPath, Err: err}
		}
		port, err := freePort()
		if err != nil {
			return nil, &DriverLaunchError{Kind: Firefox, Path: path, Err: err}
		}

		out := opts.Logger.WriterLevel(logrus.DebugLevel)
		opts.Logger.Debugf("starting geckodriver %s on port %d", path, port)
		svc, err := selenium.NewGeckoDriverService(path, port, selenium.Output(out))
		if err != nil {
			out.Close()
			return nil, &DriverLaunchError{Kind: Firefox, Path: path, Err: err}
		}
		s.service, s.output = svc, out
		addr = fmt.Sprintf("http://127.0.0.1:%d", port)
	}

	wd, err := selenium.NewRemote(firefoxCapabilities(opts.Headless), addr)
	if err != nil {
		s.stopService()
		return nil, &DriverLaunchError{Kind: Firefox, Path: addr, Err: err}
	}
	s.wd = wd

	if err := wd.MaximizeWindow(""); err != nil {
		opts.Logger.Debugf("maximizing firefox window: %v", err)
	}
	if err := wd.SetPageLoadTimeout(opts.PageLoadTimeout); err != nil {
		opts.Logger.Debugf("setting firefox page load timeout: %v", err)
	}
	return s, nil
}

func firefoxCapabilities(headless bool) selenium.Capabilities {
	args := []string{"-start-maximized"}
	if headless {
		args = append(args, "-headless")
	}
	caps := selenium.Capabilities{"browserName": "firefox"}
	caps.AddFirefox(firefox.Capabilities{Args: args})
	return caps
}

func resolveGeckodriver(path string) (string, error) {
	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return path, nil
	}
	found, err := exec.LookPath("geckodriver")
	if err != nil {
		return "", fmt.Errorf("geckodriver not found, set DRIVERS/geckodriver_path or DRIVERS/remote_url: %w", err)
	}
	return found, nil
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

func seleniumBy(loc Locator) string {
	if loc.By == ByXPath {
		return selenium.ByXPATH
	}
	return selenium.ByCSSSelector
}

func (s *FirefoxSession) find(ctx context.Context, loc Locator) (selenium.WebElement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	el, err := s.wd.FindElement(seleniumBy(loc), loc.Value)
	if err != nil {
		var serr *selenium.Error
		if errors.As(err, &serr) && serr.Err == "no such element" {
			return nil, &ElementNotFoundError{Locator: loc, Err: err}
		}
		return nil, fmt.Errorf("finding %s: %w", loc, err)
	}
	return el, nil
}

func (s *FirefoxSession) Kind() Kind { return Firefox }

func (s *FirefoxSession) SetImplicitWait(d time.Duration) error {
	return s.wd.SetImplicitWaitTimeout(d)
}

func (s *FirefoxSession) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.wd.Get(url)
}

func (s *FirefoxSession) SendKeys(ctx context.Context, loc Locator, text string) error {
	el, err := s.find(ctx, loc)
	if err != nil {
		return err
	}
	return el.SendKeys(text)
}

func (s *FirefoxSession) Click(ctx context.Context, loc Locator) error {
	el, err := s.find(ctx, loc)
	if err != nil {
		return err
	}
	return el.Click()
}

func (s *FirefoxSession) Present(ctx context.Context, loc Locator) error {
	_, err := s.find(ctx, loc)
	return err
}

func (s *FirefoxSession) Text(ctx context.Context, loc Locator) (string, error) {
	el, err := s.find(ctx, loc)
	if err != nil {
		return "", err
	}
	return el.Text()
}

// errNilValue is how the driver reports a null attribute.
const errNilValue = "nil return value"

func (s *FirefoxSession) Attribute(ctx context.Context, loc Locator, name string) (string, bool, error) {
	el, err := s.find(ctx, loc)
	if err != nil {
		return "", false, err
	}
	value, err := el.GetAttribute(name)
	if err != nil {
		if err.Error() == errNilValue {
			return "", false, nil
		}
		return "", false, err
	}
	return value, true, nil
}

func (s *FirefoxSession) Title(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.wd.Title()
}

func (s *FirefoxSession) URL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.wd.CurrentURL()
}

func (s *FirefoxSession) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return s.wd.Screenshot()
}

func (s *FirefoxSession) stopService() error {
	var errs []error
	if s.service != nil {
		errs = append(errs, s.service.Stop())
		s.service = nil
	}
	if s.output != nil {
		errs = append(errs, s.output.Close())
		s.output = nil
	}
	return errors.Join(errs...)
}

func (s *FirefoxSession) Quit() error {
	s.quitOnce.Do(func() {
		s.quitErr = errors.Join(s.wd.Quit(), s.stopService())
	})
	return s.quitErr
}
