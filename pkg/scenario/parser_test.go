package scenario

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseString(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []Test
		wantErr string
	}{
		{
			name: "search scenario",
			input: `test "Homepage search"
  navigate "https://24h.pchome.com.tw/"
  search iPhone
  assert_title_contains "iPhone"`,
			want: []Test{
				{
					Name: "Homepage search",
					Steps: []Step{
						{Action: ActionNavigate, Target: "https://24h.pchome.com.tw/", Line: 2},
						{Action: ActionSearch, Value: "iPhone", Line: 3},
						{Action: ActionAssertTitleContains, Value: "iPhone", Line: 4},
					},
				},
			},
		},
		{
			name: "multiple tests",
			input: `test "First test"
  navigate /

test "Second test"
  click "#button"`,
			want: []Test{
				{Name: "First test", Steps: []Step{{Action: ActionNavigate, Target: "/", Line: 2}}},
				{Name: "Second test", Steps: []Step{{Action: ActionClick, Target: "#button", Line: 5}}},
			},
		},
		{
			name: "comments and empty lines",
			input: `# This is a comment
test "Test with comments"
  # Navigate to page
  navigate "https://example.com"

  wait "#results"`,
			want: []Test{
				{
					Name: "Test with comments",
					Steps: []Step{
						{Action: ActionNavigate, Target: "https://example.com", Line: 4},
						{Action: ActionWait, Target: "#results", Line: 6},
					},
				},
			},
		},
		{
			name: "screenshot commands",
			input: `test "Screenshot test"
  screenshot
  screenshot custom.png`,
			want: []Test{
				{
					Name: "Screenshot test",
					Steps: []Step{
						{Action: ActionScreenshot, Line: 2},
						{Action: ActionScreenshot, Target: "custom.png", Line: 3},
					},
				},
			},
		},
		{
			name: "unquoted words are joined",
			input: `test Type test
  type "#input" Hello World
  assert_title iPhone - PChome 24h`,
			want: []Test{
				{
					Name: "Type test",
					Steps: []Step{
						{Action: ActionType, Target: "#input", Value: "Hello World", Line: 2},
						{Action: ActionAssertTitle, Value: "iPhone - PChome 24h", Line: 3},
					},
				},
			},
		},
		{
			name: "quoted selectors",
			input: `test "Quoted test"
  click ".btn[data-action='save']"
  type 'input[name="email"]' "test@example.com"
  click '//*[@data-regression="header_search_button"]'`,
			want: []Test{
				{
					Name: "Quoted test",
					Steps: []Step{
						{Action: ActionClick, Target: ".btn[data-action='save']", Line: 2},
						{Action: ActionType, Target: `input[name="email"]`, Value: "test@example.com", Line: 3},
						{Action: ActionClick, Target: `//*[@data-regression="header_search_button"]`, Line: 4},
					},
				},
			},
		},
		{
			name: "element checks",
			input: `test "Element checks"
  assert_element_exists "#q"
  assert_text h1 Welcome to PChome
  assert_text_contains '//h1[@class="title"]' PChome
  assert_attribute '#q' placeholder Search products
  wait_for_text "#results" "12 results"
  wait_for_url /search`,
			want: []Test{
				{
					Name: "Element checks",
					Steps: []Step{
						{Action: ActionAssertElementExists, Target: "#q", Line: 2},
						{Action: ActionAssertText, Target: "h1", Value: "Welcome to PChome", Line: 3},
						{Action: ActionAssertTextContains, Target: `//h1[@class="title"]`, Value: "PChome", Line: 4},
						{Action: ActionAssertAttribute, Target: "#q", Attribute: "placeholder", Value: "Search products", Line: 5},
						{Action: ActionWaitForText, Target: "#results", Value: "12 results", Line: 6},
						{Action: ActionWaitForURL, Target: "/search", Line: 7},
					},
				},
			},
		},
		{
			name: "escaped and closing quotes are not mid-word openings",
			input: `test "Escapes"
  click "a[title=\"x\"]"
  type #q it\'s`,
			want: []Test{
				{
					Name: "Escapes",
					Steps: []Step{
						{Action: ActionClick, Target: `a[title="x"]`, Line: 2},
						{Action: ActionType, Target: "#q", Value: "it's", Line: 3},
					},
				},
			},
		},
		{
			name:    "invalid command",
			input:   "test \"Invalid\"\n  invalid_command \"arg\"",
			wantErr: "line 2: unknown action: invalid_command",
		},
		{
			name:    "missing required argument",
			input:   "test \"Invalid\"\n  click",
			wantErr: "line 2: click requires 1 argument(s), got 0",
		},
		{
			name:    "too many arguments",
			input:   "test \"Invalid\"\n  navigate a b",
			wantErr: "line 2: navigate takes at most 1 argument(s), got 2",
		},
		{
			name:    "step outside test",
			input:   "navigate /",
			wantErr: "line 1: navigate outside of a test block",
		},
		{
			name:    "unterminated quote",
			input:   "test \"Invalid\"\n  click \"#button",
			wantErr: "line 2:",
		},
		{
			name:    "unquoted pipe",
			input:   "test \"Invalid\"\n  click //a | //b",
			wantErr: "line 2: unquoted \"|\"",
		},
		{
			name:    "operator after multibyte text",
			input:   "test x\n  search 手機 ; rm",
			wantErr: `line 2: unquoted ";" at column 11`,
		},
		{
			name:    "quote inside an unquoted xpath",
			input:   "test x\n  click //*[@type=\"search\"]",
			wantErr: "line 2: quote inside an unquoted argument at column 17, wrap the whole argument in single quotes",
		},
		{
			name:    "quote inside an unquoted css selector",
			input:   "test x\n  type input[name='q'] iPhone",
			wantErr: "line 2: quote inside an unquoted argument at column 17",
		},
		{
			name:    "assert_attribute needs a value",
			input:   "test x\n  assert_attribute '#q' placeholder",
			wantErr: "line 2: assert_attribute requires 3 argument(s), got 2",
		},
		{
			name:    "test without name",
			input:   "test",
			wantErr: "line 1: test requires a name",
		},
	}

	parser := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parser.ParseString(tt.input)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "search.test")
	require.NoError(t, os.WriteFile(path, []byte("test \"search\"\n  search iPhone\n"), 0o644))

	got, err := New().ParseFile(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "search", got[0].Name)

	bad := filepath.Join(dir, "bad.test")
	require.NoError(t, os.WriteFile(bad, []byte("test \"x\"\n  hover a\n"), 0o644))
	_, err = New().ParseFile(bad)
	assert.ErrorContains(t, err, bad+": line 2: unknown action: hover")

	_, err = New().ParseFile(filepath.Join(dir, "missing.test"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFindFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.test", "b.test", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), nil, 0o644))
	}

	got, err := FindFiles("*.test", []string{dir, "explicit.test"})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.test"), filepath.Join(dir, "b.test"), "explicit.test"}, got)

	t.Chdir(dir)
	got, err = FindFiles("*.test", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.test", "b.test"}, got)
}
