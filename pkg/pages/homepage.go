package pages

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/kidandcat/feauto/pkg/browser"
)

var (
	SearchInput  = browser.XPath(`//*[@type="search"]`)
	SearchButton = browser.XPath(`//*[@data-regression="header_search_button"]`)
)

// HomePage is the storefront landing page.
type HomePage struct {
	BasePage
}

func NewHomePage(s browser.Session, log *logrus.Logger) *HomePage {
	return &HomePage{BasePage: NewBasePage(s, log)}
}

// SearchProduct types query into the header search box and submits it.
func (p *HomePage) SearchProduct(ctx context.Context, query string) error {
	p.Log.Infof("Searching for %s", query)
	if err := p.SendKeys(ctx, SearchInput, query); err != nil {
		return err
	}
	return p.Click(ctx, SearchButton)
}
