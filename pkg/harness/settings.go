package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/config"
)

const DefaultEnv = "prod"

// Options are run-time overrides, usually from the command line. Zero values
// defer to the configuration file.
type Options struct {
	Browser       string
	Env           string
	Headless      *bool
	ScreenshotDir string
}

// Settings is the resolved per-run configuration shared by every test.
type Settings struct {
	Browser       string
	Env           string
	BaseURL       string
	ImplicitWait  time.Duration
	ScreenshotDir string

	FailOnConsoleError bool

	Headless        bool
	DriverPaths     map[browser.Kind]string
	RemoteURL       string
	Managed         bool
	PageLoadTimeout time.Duration
}

// ResolveSettings merges opts over cfg. Command line values win over the
// file, the file wins over built-in defaults. The browser name is not
// validated here; an unknown browser fails each test at launch.
func ResolveSettings(cfg *config.Config, opts Options) (Settings, error) {
	if cfg == nil {
		cfg = config.Default()
	}

	s := Settings{
		Browser:       strings.ToLower(strings.TrimSpace(opts.Browser)),
		Env:           strings.ToLower(strings.TrimSpace(opts.Env)),
		ScreenshotDir: opts.ScreenshotDir,
	}
	if s.Browser == "" {
		s.Browser = strings.ToLower(cfg.Get(config.DefaultSection, "browser", browser.Chrome.String()))
	}
	if s.Env == "" {
		s.Env = DefaultEnv
	}
	if s.ScreenshotDir == "" {
		s.ScreenshotDir = cfg.Get(config.DefaultSection, "screenshot_path", "./screenshots")
	}

	baseURL, err := cfg.EnvironmentURL(s.Env)
	if err != nil {
		return Settings{}, fmt.Errorf("resolving base url: %w", err)
	}
	s.BaseURL = baseURL

	s.ImplicitWait = cfg.GetSeconds(config.DefaultSection, "timeout", browser.DefaultImplicitWait)
	if s.ImplicitWait <= 0 {
		s.ImplicitWait = browser.DefaultImplicitWait
	}

	s.FailOnConsoleError = cfg.GetBool(config.DefaultSection, "fail_on_console_error", false)

	s.Headless = cfg.GetBool(config.DriversSection, "headless", false)
	if opts.Headless != nil {
		s.Headless = *opts.Headless
	}
	s.DriverPaths = map[browser.Kind]string{
		browser.Chrome:  cfg.Get(config.DriversSection, "chrome_path", ""),
		browser.Firefox: cfg.Get(config.DriversSection, "geckodriver_path", ""),
	}
	s.RemoteURL = cfg.Get(config.DriversSection, "remote_url", "")
	s.Managed = cfg.GetBool(config.DriversSection, "managed", false)
	s.PageLoadTimeout = cfg.GetSeconds(config.DriversSection, "page_load_timeout", browser.DefaultPageLoadTimeout)

	return s, nil
}
