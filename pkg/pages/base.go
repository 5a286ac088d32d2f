// Package pages holds page objects for the storefront under test.
package pages

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/browser"
)

// BasePage wraps the element helpers every page shares. Elements are located
// on each call and never cached.
type BasePage struct {
	Session browser.Session
	Log     *logrus.Logger
}

func NewBasePage(s browser.Session, log *logrus.Logger) BasePage {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return BasePage{Session: s, Log: log}
}

// SendKeys types text into the element at loc, waiting for it up to the
// session's implicit wait.
func (p BasePage) SendKeys(ctx context.Context, loc browser.Locator, text string) error {
	p.Log.Debugf("Typing %q into %s", text, loc)
	if err := p.Session.SendKeys(ctx, loc, text); err != nil {
		return fmt.Errorf("send keys to %s: %w", loc, err)
	}
	return nil
}

func (p BasePage) Click(ctx context.Context, loc browser.Locator) error {
	p.Log.Debugf("Clicking %s", loc)
	if err := p.Session.Click(ctx, loc); err != nil {
		return fmt.Errorf("click %s: %w", loc, err)
	}
	return nil
}

func (p BasePage) Title(ctx context.Context) (string, error) {
	return p.Session.Title(ctx)
}
