package finder

import (
	"context"
	"fmt"

	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/wait"
)

const readyStateScript = `() => document.readyState`

// ElementWaiter waits for conditions that do not resolve to a handle
type ElementWaiter struct {
	driver driver.Driver
	wait   wait.Wait
	logger log.Logger
}

// NewElementWaiter creates a waiter polling drv under the timing policy w
func NewElementWaiter(drv driver.Driver, w wait.Wait, logger log.Logger) *ElementWaiter {
	return &ElementWaiter{
		driver: drv,
		wait:   ignoreMissing(w),
		logger: logger,
	}
}

// WaitForElementToDisappear returns true once no element matching loc is
// displayed. A handle going stale mid-wait is reported as a failure, not as
// disappearance.
func (w *ElementWaiter) WaitForElementToDisappear(ctx context.Context, loc models.Locator) (bool, error) {
	gone, err := wait.Until(ctx, w.wait, func(ctx context.Context) (bool, bool, error) {
		els, err := w.driver.FindElements(ctx, loc)
		if err != nil {
			return false, false, err
		}
		for _, el := range els {
			displayed, err := el.IsDisplayed(ctx)
			if err != nil {
				return false, false, err
			}
			if displayed {
				return false, false, nil
			}
		}
		return true, true, nil
	})
	if err != nil {
		return false, fail(w.logger, loc, ConditionInvisible, ErrElementNotVisible, err)
	}
	return gone, nil
}

// WaitForPageLoad waits until document.readyState is "complete". Script
// errors while the document is being replaced count as "not yet".
func (w *ElementWaiter) WaitForPageLoad(ctx context.Context) error {
	var lastErr error
	_, err := wait.Until(ctx, w.wait, func(ctx context.Context) (bool, bool, error) {
		state, err := w.driver.ExecuteScript(ctx, readyStateScript)
		if err != nil {
			lastErr = err
			return false, false, nil
		}
		return true, state == "complete", nil
	})
	if err != nil {
		w.logger.Error("Page did not load completely", "timeout", w.wait.Timeout, "error", err, "last_script_error", lastErr)
		return fmt.Errorf("%w: %w", ErrPageLoadTimeout, err)
	}
	return nil
}
