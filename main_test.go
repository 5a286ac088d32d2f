package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/browser/browsermock"
	"github.com/kidandcat/feauto/pkg/config"
	"github.com/kidandcat/feauto/pkg/harness"
	"github.com/kidandcat/feauto/pkg/pages"
)

const prodURL = "https://24h.pchome.com.tw/"

type cliRun struct {
	session  *browsermock.MockSession
	launches []browser.LaunchOptions
	dir      string
	stdout   bytes.Buffer
	stderr   bytes.Buffer
}

func newCLIRun(t *testing.T) *cliRun {
	t.Helper()
	color.NoColor = true

	dir := t.TempDir()
	t.Setenv("HOME", dir)
	t.Chdir(dir)

	return &cliRun{
		session: browsermock.NewMockSession(gomock.NewController(t)),
		dir:     dir,
	}
}

func (r *cliRun) execute(t *testing.T, args ...string) error {
	t.Helper()
	a := &app{managerOpts: []harness.Option{
		harness.WithLauncher(func(_ context.Context, lo browser.LaunchOptions) (browser.Session, error) {
			r.launches = append(r.launches, lo)
			return r.session, nil
		}),
	}}
	cmd := newRootCmd(a)
	cmd.SetOut(&r.stdout)
	cmd.SetErr(&r.stderr)
	cmd.SetArgs(append(args, "--log-dir", filepath.Join(r.dir, "logs")))
	return cmd.ExecuteContext(t.Context())
}

func (r *cliRun) write(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(r.dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestRunScenarioFiles(t *testing.T) {
	r := newCLIRun(t)
	r.write(t, "search.test", `test "passes"
  assert_title_contains iPhone

test "fails"
  assert_title_contains iPad
`)

	r.session.EXPECT().SetImplicitWait(10 * time.Second).Return(nil).Times(2)
	r.session.EXPECT().Navigate(gomock.Any(), prodURL).Return(nil).Times(2)
	r.session.EXPECT().Title(gomock.Any()).Return("iPhone - PChome 24h", nil).Times(2)
	r.session.EXPECT().Screenshot(gomock.Any()).Return([]byte("png"), nil).Times(1)
	r.session.EXPECT().Quit().Return(nil).Times(2)

	err := r.execute(t, "--screenshot-dir", "shots")
	require.ErrorIs(t, err, errTestsFailed)

	out := r.stdout.String()
	assert.Contains(t, out, "Running 2 tests from 1 files...")
	assert.Contains(t, out, "✓ PASS passes")
	assert.Contains(t, out, "✗ FAIL fails")
	assert.Contains(t, out, "title does not contain: expected 'iPad', got 'iPhone - PChome 24h'")
	assert.Contains(t, out, "1 of 2 tests failed")

	shots, err := filepath.Glob(filepath.Join("shots", "fails_*.png"))
	require.NoError(t, err)
	assert.Len(t, shots, 1)
	assert.Contains(t, out, "Screenshot: "+shots[0])

	assert.Contains(t, r.stderr.String(), "fe_automation - INFO - Navigating to "+prodURL)
	logs, err := filepath.Glob(filepath.Join(r.dir, "logs", "fe_automation_*.log"))
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestBrowserFlagOverridesConfig(t *testing.T) {
	r := newCLIRun(t)
	cfg := r.write(t, "suite.ini", `[DEFAULT]
browser = chrome
timeout = 3

[ENVIRONMENTS]
prod_url = https://prod.example.com/
staging_url = https://staging.example.com/
`)

	r.session.EXPECT().SetImplicitWait(3 * time.Second).Return(nil)
	r.session.EXPECT().Navigate(gomock.Any(), "https://staging.example.com/").Return(nil)
	r.session.EXPECT().SendKeys(gomock.Any(), pages.SearchInput, "iPhone 15").Return(nil)
	r.session.EXPECT().Click(gomock.Any(), pages.SearchButton).Return(nil)
	r.session.EXPECT().Title(gomock.Any()).Return("iPhone 15 - PChome 24h", nil)
	r.session.EXPECT().Quit().Return(nil)

	err := r.execute(t, "search", "iPhone", "15", "--browser", "firefox", "--env", "staging", "--config", cfg, "--headless")
	require.NoError(t, err)

	require.Len(t, r.launches, 1)
	assert.Equal(t, browser.Firefox, r.launches[0].Kind)
	assert.True(t, r.launches[0].Headless)
	assert.Contains(t, r.stdout.String(), "✓ PASS search iPhone 15")
	assert.Contains(t, r.stdout.String(), "All 1 tests passed")
}

func TestConfigBrowserUsedWithoutFlag(t *testing.T) {
	r := newCLIRun(t)
	r.write(t, config.LocalConfigName, "[DEFAULT]\nbrowser = firefox\n\n[ENVIRONMENTS]\nprod_url = "+prodURL+"\n")

	r.session.EXPECT().SetImplicitWait(gomock.Any()).Return(nil)
	r.session.EXPECT().Navigate(gomock.Any(), prodURL).Return(nil)
	r.session.EXPECT().SendKeys(gomock.Any(), pages.SearchInput, "iPhone").Return(nil)
	r.session.EXPECT().Click(gomock.Any(), pages.SearchButton).Return(nil)
	r.session.EXPECT().Title(gomock.Any()).Return("iPhone", nil)
	r.session.EXPECT().Quit().Return(nil)

	require.NoError(t, r.execute(t, "search", "iPhone"))
	require.Len(t, r.launches, 1)
	assert.Equal(t, browser.Firefox, r.launches[0].Kind)
	assert.False(t, r.launches[0].Headless)
}

func TestRunErrors(t *testing.T) {
	t.Run("no test files", func(t *testing.T) {
		r := newCLIRun(t)
		assert.EqualError(t, r.execute(t), "no test files found")
	})

	t.Run("unknown environment", func(t *testing.T) {
		r := newCLIRun(t)
		err := r.execute(t, "search", "iPhone", "--env", "qa")
		assert.ErrorIs(t, err, config.ErrUnknownEnvironment)
		assert.Empty(t, r.launches)
	})

	t.Run("parse error", func(t *testing.T) {
		r := newCLIRun(t)
		r.write(t, "bad.test", "test \"x\"\n  hover a\n")
		assert.ErrorContains(t, r.execute(t), "unknown action: hover")
	})

	t.Run("unsupported browser", func(t *testing.T) {
		r := newCLIRun(t)
		err := r.execute(t, "search", "iPhone", "--browser", "safari")
		assert.ErrorIs(t, err, errTestsFailed)
		assert.Contains(t, r.stdout.String(), "✗ ERROR search iPhone")
		assert.Contains(t, r.stdout.String(), "unsupported browser")
		assert.Empty(t, r.launches)
	})
}
