// Package steps binds feature file steps to page object actions.
package steps

import (
	"context"

	"dev/bravebird/ui-harness/pkg/pages"
	"dev/bravebird/ui-harness/pkg/scenario"
)

const wikiPageKey = "wiki_page"

// Register adds every step definition of the harness to reg
func Register(reg *scenario.Registry) {
	reg.MustRegister("User navigate to Wikipedia", navigateToWikipedia)
	reg.MustRegister("User validate the wikipedia logo", validateWikipediaLogo)
	reg.MustRegister(`User search for "{search_text}"`, searchFor)
	reg.MustRegister("User click the link", clickTheLink)
	reg.MustRegister(`User click the link "{text}"`, clickTheLinkText)
	reg.MustRegister("User validate the header text", validateHeaderText)
}

// NewRegistry returns a registry with every step definition
func NewRegistry() *scenario.Registry {
	reg := scenario.NewRegistry()
	Register(reg)
	return reg
}

// wikiPage returns the page object of the scenario, creating it on first use
func wikiPage(w *scenario.World) *pages.WikiPage {
	if v, ok := w.Get(wikiPageKey); ok {
		return v.(*pages.WikiPage)
	}
	page := pages.NewWikiPage(pages.NewBasePage(w.Driver, w.Config, w.Logger))
	w.Set(wikiPageKey, page)
	return page
}

func navigateToWikipedia(ctx context.Context, w *scenario.World, _ ...string) error {
	return wikiPage(w).Open(ctx)
}

func validateWikipediaLogo(ctx context.Context, w *scenario.World, _ ...string) error {
	return wikiPage(w).ValidateWikipediaLogo(ctx)
}

func searchFor(ctx context.Context, w *scenario.World, args ...string) error {
	return wikiPage(w).SearchInputValue(ctx, args[0])
}

func clickTheLink(ctx context.Context, w *scenario.World, _ ...string) error {
	return wikiPage(w).ClickPartialLink(ctx)
}

func clickTheLinkText(ctx context.Context, w *scenario.World, args ...string) error {
	return wikiPage(w).ClickPartialLinkText(ctx, args[0])
}

func validateHeaderText(ctx context.Context, w *scenario.World, _ ...string) error {
	return wikiPage(w).ValidateHeaderText(ctx)
}
