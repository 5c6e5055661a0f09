// Package pagestest scripts the Wikipedia pages on top of drivertest so page,
// step and activity tests can walk the search scenario without a browser.
package pagestest

import (
	"time"

	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/driver/drivertest"
	"dev/bravebird/ui-harness/pkg/pages"
)

// SearchTerm is the query that leads to the season link
const SearchTerm = "Khalid Bahaj"

// Wikipedia is a scripted portal, search result and article
type Wikipedia struct {
	*drivertest.Driver

	Logo   *drivertest.Element
	Search *drivertest.Element
	Link   *drivertest.Element
	Header *drivertest.Element
}

// NewWikipedia returns a driver whose document follows the search flow:
// navigating shows the portal, submitting SearchTerm shows the result page,
// clicking the season link loads the article.
func NewWikipedia() *Wikipedia {
	w := &Wikipedia{Driver: drivertest.New()}
	w.OnNavigate(func(string) { w.portal() })
	return w
}

func (w *Wikipedia) portal() {
	w.Rebuild()
	w.ReadyStates("complete")

	w.Logo = drivertest.NewElement("logo")
	w.Search = drivertest.NewElement("search").OnSubmit(func(value string) {
		if value == SearchTerm {
			w.results()
		}
	})
	w.Set(pages.WikipediaLogo, w.Logo)
	w.Set(pages.SearchBox, w.Search)
}

func (w *Wikipedia) results() {
	w.Rebuild()
	w.Link = drivertest.NewElement("season link").WithText(pages.TangerSeason).OnClick(w.article)
	// Search results render a moment after the submit.
	w.AppearAfter(pages.PartialLink, 1, w.Link)
}

func (w *Wikipedia) article() {
	w.Rebuild()
	w.ReadyStates("loading", "interactive", "complete")
	w.Header = drivertest.NewElement("header").WithText(pages.TangerSeason)
	w.AppearAfter(pages.HeaderText, 1, w.Header)
}

// Config returns a configuration with short waits pointing at the portal
func Config() *config.Config {
	cfg := config.Default()
	cfg.Wait.Timeout = 80 * time.Millisecond
	cfg.Wait.PollInterval = 5 * time.Millisecond
	return cfg
}
