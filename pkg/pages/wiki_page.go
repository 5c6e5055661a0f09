package pages

import (
	"context"
	"fmt"

	"dev/bravebird/ui-harness/pkg/models"
)

// WikiPage drives the Wikipedia portal and article pages
type WikiPage struct {
	BasePage
}

// NewWikiPage wraps base
func NewWikiPage(base BasePage) *WikiPage {
	return &WikiPage{BasePage: base}
}

// Open navigates to the configured Wikipedia URL
func (p *WikiPage) Open(ctx context.Context) error {
	url, err := p.Config.URL("wikipedia")
	if err != nil {
		return err
	}
	if err := p.Driver.Navigate(ctx, url); err != nil {
		return fmt.Errorf("failed to open %s: %w", url, err)
	}
	p.Logger.Debug("Opened page", "url", url)
	return nil
}

// ValidateWikipediaLogo checks that the portal logo block is displayed
func (p *WikiPage) ValidateWikipediaLogo(ctx context.Context) error {
	return p.assertDisplayed(ctx, WikipediaLogo, "Wikipedia logo is not displayed")
}

// SearchInputValue types text into the search box and submits it
func (p *WikiPage) SearchInputValue(ctx context.Context, text string) error {
	box, err := p.Finder.FindClickableElement(ctx, SearchBox)
	if err != nil {
		return err
	}
	if err := box.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear search box: %w", err)
	}
	if err := box.SendKeys(ctx, text); err != nil {
		return fmt.Errorf("failed to type search text: %w", err)
	}
	if err := box.Submit(ctx); err != nil {
		return fmt.Errorf("failed to submit search: %w", err)
	}
	return nil
}

// ClickPartialLink clicks the season link on the search result page
func (p *WikiPage) ClickPartialLink(ctx context.Context) error {
	return p.click(ctx, PartialLink)
}

// ClickPartialLinkText clicks the first link whose text contains text
func (p *WikiPage) ClickPartialLinkText(ctx context.Context, text string) error {
	return p.click(ctx, models.Locator{By: models.ByPartialLinkText, Value: text})
}

// ValidateHeaderText waits for the article to load and checks its header
func (p *WikiPage) ValidateHeaderText(ctx context.Context) error {
	if err := p.Waiter.WaitForPageLoad(ctx); err != nil {
		return err
	}
	return p.assertDisplayed(ctx, HeaderText, TangerSeason+" is not displayed")
}

func (p *WikiPage) click(ctx context.Context, loc models.Locator) error {
	link, err := p.Finder.FindClickableElement(ctx, loc)
	if err != nil {
		return err
	}
	if err := link.Click(ctx); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}
	return nil
}

func (p *WikiPage) assertDisplayed(ctx context.Context, loc models.Locator, msg string) error {
	el, err := p.Finder.FindElement(ctx, loc)
	if err != nil {
		return err
	}
	displayed, err := el.IsDisplayed(ctx)
	if err != nil {
		return fmt.Errorf("failed to check %s: %w", loc, err)
	}
	if !displayed {
		return &AssertionError{Message: msg}
	}
	return nil
}
