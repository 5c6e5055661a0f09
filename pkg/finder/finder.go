// Package finder resolves locators into usable element handles and waits for
// negative conditions, classifying every failure into one domain error kind.
package finder

import (
	"context"
	"errors"

	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/wait"
)

// ElementFinder finds elements under one of three acceptance conditions
type ElementFinder struct {
	driver driver.Driver
	wait   wait.Wait
	logger log.Logger
}

// NewElementFinder creates a finder polling drv under the timing policy w
func NewElementFinder(drv driver.Driver, w wait.Wait, logger log.Logger) *ElementFinder {
	return &ElementFinder{
		driver: drv,
		wait:   ignoreMissing(w),
		logger: logger,
	}
}

// FindElement waits until an element matching loc is attached to the document.
// The element must also be displayed.
func (f *ElementFinder) FindElement(ctx context.Context, loc models.Locator) (driver.Element, error) {
	return f.resolve(ctx, loc, ConditionPresent, ErrElementNotFound, ErrElementNotVisible, f.present(loc))
}

// FindClickableElement waits until an element matching loc is displayed,
// enabled and not covered by another element
func (f *ElementFinder) FindClickableElement(ctx context.Context, loc models.Locator) (driver.Element, error) {
	return f.resolve(ctx, loc, ConditionClickable, ErrElementNotClickable, ErrElementNotClickable, f.clickable(loc))
}

// FindVisibleElement waits until an element matching loc is displayed with a
// non-zero rendered size
func (f *ElementFinder) FindVisibleElement(ctx context.Context, loc models.Locator) (driver.Element, error) {
	return f.resolve(ctx, loc, ConditionVisible, ErrElementNotVisible, ErrElementNotVisible, f.visible(loc))
}

// resolve runs one wait and re-checks visibility of the handle it produced,
// since the condition may have been true only at evaluation time
func (f *ElementFinder) resolve(
	ctx context.Context,
	loc models.Locator,
	cond Condition,
	kind error,
	hiddenKind error,
	poll wait.Condition[driver.Element],
) (driver.Element, error) {
	el, err := wait.Until(ctx, f.wait, poll)
	if err != nil {
		return nil, fail(f.logger, loc, cond, kind, err)
	}

	displayed, err := el.IsDisplayed(ctx)
	if err != nil {
		return nil, fail(f.logger, loc, cond, kind, err)
	}
	if !displayed {
		f.logger.Warn("Element found but not visible", "locator", loc.String(), "condition", string(cond))
		return nil, &ElementError{
			Kind:      hiddenKind,
			Locator:   loc,
			Condition: cond,
			Reason:    ReasonNotDisplayed,
		}
	}
	return el, nil
}

func (f *ElementFinder) present(loc models.Locator) wait.Condition[driver.Element] {
	return func(ctx context.Context) (driver.Element, bool, error) {
		el, err := first(ctx, f.driver, loc)
		if err != nil {
			return nil, false, err
		}
		return el, true, nil
	}
}

func (f *ElementFinder) clickable(loc models.Locator) wait.Condition[driver.Element] {
	return func(ctx context.Context) (driver.Element, bool, error) {
		el, err := first(ctx, f.driver, loc)
		if err != nil {
			return nil, false, err
		}

		displayed, err := el.IsDisplayed(ctx)
		if err != nil || !displayed {
			return nil, false, err
		}
		enabled, err := el.IsEnabled(ctx)
		if err != nil || !enabled {
			return nil, false, err
		}

		if err := el.Interactable(ctx); err != nil {
			if errors.Is(err, driver.ErrClickIntercepted) || errors.Is(err, driver.ErrStaleElement) {
				return nil, false, err
			}
			// Not hit-testable yet, e.g. still animating in.
			return nil, false, nil
		}
		return el, true, nil
	}
}

func (f *ElementFinder) visible(loc models.Locator) wait.Condition[driver.Element] {
	return func(ctx context.Context) (driver.Element, bool, error) {
		el, err := first(ctx, f.driver, loc)
		if err != nil {
			return nil, false, err
		}

		displayed, err := el.IsDisplayed(ctx)
		if err != nil || !displayed {
			return nil, false, err
		}
		size, err := el.Size(ctx)
		if err != nil {
			return nil, false, err
		}
		return el, size.Width > 0 && size.Height > 0, nil
	}
}

// first returns the first element matching loc or driver.ErrNoSuchElement
func first(ctx context.Context, drv driver.Driver, loc models.Locator) (driver.Element, error) {
	els, err := drv.FindElements(ctx, loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, driver.ErrNoSuchElement
	}
	return els[0], nil
}

func ignoreMissing(w wait.Wait) wait.Wait {
	ignored := make([]error, 0, len(w.Ignored)+1)
	ignored = append(ignored, driver.ErrNoSuchElement)
	w.Ignored = append(ignored, w.Ignored...)
	return w
}

func reasonOf(err error) Reason {
	switch {
	case errors.Is(err, wait.ErrTimeout):
		return ReasonTimeout
	case errors.Is(err, driver.ErrStaleElement):
		return ReasonStale
	case errors.Is(err, driver.ErrClickIntercepted):
		return ReasonClickIntercepted
	}
	return ReasonDriver
}

// fail logs a failed lookup and converts err into an *ElementError of kind
func fail(logger log.Logger, loc models.Locator, cond Condition, kind error, err error) error {
	reason := reasonOf(err)

	var msg string
	switch {
	case reason == ReasonStale:
		msg = "Element became stale"
	case reason == ReasonClickIntercepted:
		msg = "Element click intercepted"
	case cond == ConditionInvisible:
		msg = "Element did not disappear"
	case errors.Is(kind, ErrElementNotFound):
		msg = "Element not found"
	case errors.Is(kind, ErrElementNotClickable):
		msg = "Element not clickable"
	default:
		msg = "Element not visible"
	}
	logger.Error(msg,
		"locator", loc.String(),
		"condition", string(cond),
		"reason", string(reason),
		"error", err,
	)

	return &ElementError{
		Kind:      kind,
		Locator:   loc,
		Condition: cond,
		Reason:    reason,
		Err:       err,
	}
}
