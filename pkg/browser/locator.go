package browser

import (
	"fmt"
	"strings"
)

// Strategy is how a Locator value is interpreted.
type Strategy int

const (
	ByCSS Strategy = iota
	ByXPath
)

func (s Strategy) String() string {
	if s == ByXPath {
		return "xpath"
	}
	return "css"
}

// Locator is a structural query resolved against the live page on every use.
type Locator struct {
	By    Strategy
	Value string
}

func XPath(v string) Locator { return Locator{By: ByXPath, Value: v} }

func CSS(v string) Locator { return Locator{By: ByCSS, Value: v} }

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.By, l.Value)
}

// ParseLocator reads "xpath=..." and "css=..." forms. Without a prefix,
// values starting with "/" or "(" are XPath and anything else is CSS.
func ParseLocator(s string) Locator {
	s = strings.TrimSpace(s)
	switch {
	case strings.HasPrefix(s, "xpath="):
		return XPath(strings.TrimPrefix(s, "xpath="))
	case strings.HasPrefix(s, "css="):
		return CSS(strings.TrimPrefix(s, "css="))
	case strings.HasPrefix(s, "/"), strings.HasPrefix(s, "("):
		return XPath(s)
	}
	return CSS(s)
}
