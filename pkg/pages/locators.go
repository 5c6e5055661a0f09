package pages

import "dev/bravebird/ui-harness/pkg/models"

// Wikipedia locators
var (
	WikipediaLogo = models.Locator{By: models.ByClassName, Value: "central-featured"}
	SearchBox     = models.Locator{By: models.ByID, Value: "searchInput"}
	PartialLink   = models.Locator{By: models.ByPartialLinkText, Value: TangerSeason}
	HeaderText    = models.Locator{By: models.ByXPath, Value: "//span[text()='" + TangerSeason + "']"}
)

// TangerSeason is the article the search scenario lands on
const TangerSeason = "2022–23 IR Tanger season"
