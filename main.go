package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/config"
	"github.com/kidandcat/feauto/pkg/harness"
	"github.com/kidandcat/feauto/pkg/logger"
	"github.com/kidandcat/feauto/pkg/scenario"
)

var errTestsFailed = errors.New("one or more tests failed")

type app struct {
	browser       string
	env           string
	configFile    string
	headless      bool
	screenshotDir string
	pattern       string
	logLevel      string
	logDir        string

	// extra manager options, used by tests to swap the launcher
	managerOpts []harness.Option
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(&app{}).ExecuteContext(ctx); err != nil {
		if !errors.Is(err, errTestsFailed) {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "feauto [files or directories...]",
		Short: "Run browser test scenarios against the storefront",
		Long: `Run .test scenario files in a real browser, one fresh browser per test.

Failed tests leave a screenshot in the screenshot directory. Settings come
from --config, ~/.fe_automation_config.ini or ./config.ini, in that order;
flags override the file.

	Examples:
	  feauto
	  feauto --browser firefox --env staging e2e/testdata
	  feauto search iPhone`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			files, err := scenario.FindFiles(a.pattern, args)
			if err != nil {
				return fmt.Errorf("finding test files: %w", err)
			}
			if len(files) == 0 {
				return fmt.Errorf("no test files found")
			}

			p := scenario.New()
			var tests []scenario.Test
			for _, file := range files {
				parsed, err := p.ParseFile(file)
				if err != nil {
					return err
				}
				tests = append(tests, parsed...)
			}

			fmt.Fprintln(cmd.OutOrStdout(), color.YellowString("Running %d tests from %d files...", len(tests), len(files)))
			return a.run(cmd, tests)
		},
	}

	f := root.PersistentFlags()
	f.StringVar(&a.browser, "browser", "", "browser to run: chrome or firefox (default from config, else chrome)")
	f.StringVar(&a.env, "env", harness.DefaultEnv, "environment key under ENVIRONMENTS, e.g. prod or staging")
	f.StringVar(&a.configFile, "config", "", "config file path")
	f.BoolVar(&a.headless, "headless", false, "run the browser without a window")
	f.StringVar(&a.screenshotDir, "screenshot-dir", "", "directory for failure screenshots")
	f.StringVar(&a.logLevel, "log-level", "", "DEBUG, INFO, WARNING, ERROR or CRITICAL (default from config)")
	f.StringVar(&a.logDir, "log-dir", logger.DefaultDir, "directory for log files")
	root.Flags().StringVar(&a.pattern, "pattern", "*"+scenario.FileExt, "file pattern for test files")

	root.AddCommand(newSearchCmd(a))
	return root
}

func newSearchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the storefront and check the result page title",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			test := scenario.Test{
				Name: "search " + query,
				Steps: []scenario.Step{
					{Action: scenario.ActionSearch, Value: query, Line: 1},
					{Action: scenario.ActionAssertTitleContains, Value: query, Line: 2},
				},
			}
			return a.run(cmd, []scenario.Test{test})
		},
	}
}

// options turns the flags the user actually set into harness overrides.
func (a *app) options(cmd *cobra.Command) harness.Options {
	opts := harness.Options{
		Browser:       a.browser,
		Env:           a.env,
		ScreenshotDir: a.screenshotDir,
	}
	if cmd.Flags().Changed("headless") {
		opts.Headless = &a.headless
	}
	return opts
}

func (a *app) newLogger(cmd *cobra.Command, cfg *config.Config) (*logrus.Logger, func()) {
	level := a.logLevel
	if level == "" {
		level = cfg.Get(config.DefaultSection, "log_level", "INFO")
	}

	registry := logger.NewRegistry(logger.WithDir(a.logDir), logger.WithConsole(cmd.ErrOrStderr()))
	log, err := registry.Get(logger.DefaultName, logger.ParseLevel(level), true, true)
	if err != nil {
		log.Warnf("Logging to console only: %v", err)
	}
	return log, func() { registry.Close() }
}

func (a *app) run(cmd *cobra.Command, tests []scenario.Test) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	cfg, err := config.Resolve(a.configFile)
	if err != nil {
		return err
	}
	log, closeLogs := a.newLogger(cmd, cfg)
	defer closeLogs()
	if src := cfg.Source(); src != "" {
		log.Debugf("Loaded config from %s", src)
	}

	manager, err := harness.New(cfg, a.options(cmd), log, a.managerOpts...)
	if err != nil {
		return err
	}
	settings := manager.Settings()

	s := spinner.New(spinner.CharSets[9], 100*time.Millisecond, spinner.WithWriter(out))
	s.Start()
	defer s.Stop()

	failed := 0
	for i, test := range tests {
		if ctx.Err() != nil {
			s.Stop()
			fmt.Fprintln(out, color.YellowString("Interrupted, %d tests not run", len(tests)-i))
			return ctx.Err()
		}

		result := manager.Run(ctx, test.Name, func(ctx context.Context, sess browser.Session) error {
			return scenario.Execute(ctx, sess, test, scenario.Options{
				BaseURL:       settings.BaseURL,
				ScreenshotDir: settings.ScreenshotDir,
				Timeout:       settings.ImplicitWait,
				Log:           log,
			})
		})

		s.Stop()
		printResult(out, result)
		s.Start()
		if !result.Passed() {
			failed++
		}
	}
	s.Stop()

	stats := manager.Stats()
	log.Debugf("Sessions launched %d, terminated %d", stats.Launched, stats.Terminated)
	if failed > 0 {
		fmt.Fprintln(out, color.RedString("%d of %d tests failed", failed, len(tests)))
		return errTestsFailed
	}
	fmt.Fprintln(out, color.GreenString("All %d tests passed", len(tests)))
	return nil
}

func printResult(w io.Writer, r harness.Outcome) {
	d := r.Duration.Round(time.Millisecond)
	switch r.Status {
	case harness.StatusPass:
		fmt.Fprintf(w, "%s %s (%s)\n", color.GreenString("✓ PASS"), r.Name, d)
		return
	case harness.StatusFail:
		fmt.Fprintf(w, "%s %s (%s)\n", color.RedString("✗ FAIL"), r.Name, d)
	default:
		fmt.Fprintf(w, "%s %s (%s)\n", color.RedString("✗ ERROR"), r.Name, d)
	}
	if r.Err != nil {
		fmt.Fprintf(w, "  %s\n", color.RedString("Error: %v", r.Err))
	}
	if r.Artifact != "" {
		fmt.Fprintf(w, "  Screenshot: %s\n", r.Artifact)
	}
}
