package e2e

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kidandcat/feauto/pkg/browser"
	"github.com/kidandcat/feauto/pkg/harness"
	"github.com/kidandcat/feauto/pkg/pages"
	"github.com/kidandcat/feauto/pkg/scenario"
)

func TestHomepageSearch(t *testing.T) {
	out := manager.Test(t, func(t *testing.T, s browser.Session) {
		home := pages.NewHomePage(s, log)
		require.NoError(t, home.SearchProduct(t.Context(), "iPhone"))

		title, err := home.Title(t.Context())
		require.NoError(t, err)
		assert.Contains(t, title, "iPhone")
	})

	assert.Equal(t, harness.Terminated, out.State)
	if out.Passed() {
		assert.Empty(t, out.Artifact)
	}
}

func TestSearchScenarioFile(t *testing.T) {
	tests, err := scenario.New().ParseFile("testdata/search.test")
	require.NoError(t, err)

	settings := manager.Settings()
	for _, tc := range tests {
		t.Run(tc.Name, func(t *testing.T) {
			manager.Test(t, func(t *testing.T, s browser.Session) {
				err := scenario.Execute(t.Context(), s, tc, scenario.Options{
					BaseURL:       settings.BaseURL,
					ScreenshotDir: settings.ScreenshotDir,
					Timeout:       settings.ImplicitWait,
					Log:           log,
				})
				require.NoError(t, err)
			})
		})
	}
}
