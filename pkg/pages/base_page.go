// Package pages holds page objects: named locators plus the user-level
// actions performed through the element finder and waiter.
package pages

import (
	"fmt"

	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-harness/pkg/config"
	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/finder"
)

// BasePage carries what every page object needs
type BasePage struct {
	Driver driver.Driver
	Config *config.Config
	Finder *finder.ElementFinder
	Waiter *finder.ElementWaiter
	Logger log.Logger
}

// NewBasePage wires a finder and a waiter sharing the configured wait policy
func NewBasePage(drv driver.Driver, cfg *config.Config, logger log.Logger) BasePage {
	policy := cfg.WaitPolicy()
	return BasePage{
		Driver: drv,
		Config: cfg,
		Finder: finder.NewElementFinder(drv, policy, logger),
		Waiter: finder.NewElementWaiter(drv, policy, logger),
		Logger: logger,
	}
}

// AssertionError is returned when a page check ran but did not hold
type AssertionError struct {
	Message string
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("assertion failed: %s", e.Message)
}

// AssertionFailed marks the error as a failed check rather than a lookup failure
func (e *AssertionError) AssertionFailed() bool { return true }
