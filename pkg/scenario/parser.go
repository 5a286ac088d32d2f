// Package scenario reads plain-text test scripts and runs them against a
// browser session.
//
//	# comment
//	test "search finds iPhones"
//	  search "iPhone"
//	  assert_title_contains "iPhone"
//
// Arguments follow shell quoting rules, so selectors containing quotes or
// spaces are written in single quotes. A quote may only open at the start of
// an argument:
//
//	click '//*[@type="search"]'    # ok
//	click //*[@type="search"]      # rejected, the shell would drop the quotes
//
// Element checks read the visible element first:
//
//	assert_text h1 "Welcome"
//	assert_attribute '#q' placeholder "Search"
//	wait_for_text '#results' "iPhone"
package scenario

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"github.com/mattn/go-shellwords"
)

// Step actions.
const (
	ActionNavigate            = "navigate"
	ActionType                = "type"
	ActionClick               = "click"
	ActionSearch              = "search"
	ActionWait                = "wait"
	ActionAssertTitle         = "assert_title"
	ActionAssertTitleContains = "assert_title_contains"
	ActionAssertURL           = "assert_url"
	ActionScreenshot          = "screenshot"

	ActionAssertText          = "assert_text"
	ActionAssertTextContains  = "assert_text_contains"
	ActionAssertElementExists = "assert_element_exists"
	ActionAssertAttribute     = "assert_attribute"
	ActionWaitForText         = "wait_for_text"
	ActionWaitForURL          = "wait_for_url"
)

type Step struct {
	Action string
	Target string
	// Attribute is set by assert_attribute only.
	Attribute string
	Value     string
	Line      int
}

type Test struct {
	Name  string
	Steps []Step
}

// arity is the minimum and maximum argument count per action. A maximum of -1
// joins every trailing argument into the last field.
var arity = map[string][2]int{
	ActionNavigate:            {1, 1},
	ActionType:                {2, -1},
	ActionClick:               {1, 1},
	ActionSearch:              {1, -1},
	ActionWait:                {1, 1},
	ActionAssertTitle:         {1, -1},
	ActionAssertTitleContains: {1, -1},
	ActionAssertURL:           {1, 1},
	ActionScreenshot:          {0, 1},
	ActionAssertText:          {2, -1},
	ActionAssertTextContains:  {2, -1},
	ActionAssertElementExists: {1, 1},
	ActionAssertAttribute:     {3, -1},
	ActionWaitForText:         {2, -1},
	ActionWaitForURL:          {1, 1},
}

type Parser struct{}

func New() *Parser {
	return &Parser{}
}

func (p *Parser) ParseFile(filename string) ([]Test, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	tests, err := p.parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filename, err)
	}
	return tests, nil
}

func (p *Parser) ParseString(content string) ([]Test, error) {
	return p.parse(strings.NewReader(content))
}

func (p *Parser) parse(r io.Reader) ([]Test, error) {
	var tests []Test
	var current *Test
	lineNum := 0

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		words, err := split(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNum, err)
		}

		if words[0] == "test" {
			if current != nil {
				tests = append(tests, *current)
			}
			if len(words) < 2 {
				return nil, fmt.Errorf("line %d: test requires a name", lineNum)
			}
			current = &Test{Name: strings.Join(words[1:], " ")}
			continue
		}
		if current == nil {
			return nil, fmt.Errorf("line %d: %s outside of a test block", lineNum, words[0])
		}

		step, err := parseStep(words, lineNum)
		if err != nil {
			return nil, err
		}
		current.Steps = append(current.Steps, step)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if current != nil {
		tests = append(tests, *current)
	}
	return tests, nil
}

func split(line string) ([]string, error) {
	if err := checkQuotes(line); err != nil {
		return nil, err
	}
	sp := shellwords.NewParser()
	words, err := sp.Parse(line)
	if err != nil {
		return nil, err
	}
	if sp.Position >= 0 {
		// Position counts runes.
		runes := []rune(line)
		if sp.Position < len(runes) {
			return nil, fmt.Errorf("unquoted %q at column %d", string(runes[sp.Position]), sp.Position+1)
		}
		return nil, fmt.Errorf("unquoted operator at column %d", sp.Position+1)
	}
	if len(words) == 0 {
		return nil, fmt.Errorf("empty statement")
	}
	return words, nil
}

// checkQuotes rejects a quote that opens in the middle of an unquoted word.
// The shell joins such pieces and silently drops the quotes, which turns
// //*[@type="search"] into a different selector.
func checkQuotes(line string) error {
	var (
		quote  rune
		escape bool
		prev   = ' '
	)
	for i, r := range []rune(line) {
		switch {
		case escape:
			escape = false
		case quote == '\'':
			if r == '\'' {
				quote = 0
			}
		case quote == '"':
			if r == '\\' {
				escape = true
			} else if r == '"' {
				quote = 0
			}
		case r == '\\':
			escape = true
		case r == '\'' || r == '"':
			if !unicode.IsSpace(prev) {
				return fmt.Errorf("quote inside an unquoted argument at column %d, wrap the whole argument in single quotes", i+1)
			}
			quote = r
		}
		prev = r
	}
	return nil
}

func parseStep(words []string, lineNum int) (Step, error) {
	action, args := words[0], words[1:]
	bounds, ok := arity[action]
	if !ok {
		return Step{}, fmt.Errorf("line %d: unknown action: %s", lineNum, action)
	}
	lo, hi := bounds[0], bounds[1]
	if len(args) < lo {
		return Step{}, fmt.Errorf("line %d: %s requires %d argument(s), got %d", lineNum, action, lo, len(args))
	}
	if hi >= 0 && len(args) > hi {
		return Step{}, fmt.Errorf("line %d: %s takes at most %d argument(s), got %d", lineNum, action, hi, len(args))
	}

	step := Step{Action: action, Line: lineNum}
	switch action {
	case ActionType:
		step.Target = args[0]
		step.Value = strings.Join(args[1:], " ")
	case ActionSearch, ActionAssertTitle, ActionAssertTitleContains:
		step.Value = strings.Join(args, " ")
	case ActionAssertText, ActionAssertTextContains, ActionWaitForText:
		step.Target = args[0]
		step.Value = strings.Join(args[1:], " ")
	case ActionAssertAttribute:
		step.Target = args[0]
		step.Attribute = args[1]
		step.Value = strings.Join(args[2:], " ")
	default:
		if len(args) > 0 {
			step.Target = args[0]
		}
	}
	return step, nil
}
