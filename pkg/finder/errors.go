package finder

import (
	"context"
	"errors"
	"fmt"

	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/wait"
)

// Domain error kinds. Every failure of the finder and the waiter matches
// exactly one of these through errors.Is.
var (
	ErrElementNotFound     = errors.New("element not found")
	ErrElementNotClickable = errors.New("element not clickable")
	ErrElementNotVisible   = errors.New("element not visible")
	ErrPageLoadTimeout     = errors.New("page did not load completely")
)

// Condition names the acceptance condition of a lookup
type Condition string

const (
	ConditionPresent   Condition = "present"
	ConditionClickable Condition = "clickable"
	ConditionVisible   Condition = "visible"
	ConditionInvisible Condition = "invisible"
)

// Reason is the low-level cause behind a domain error
type Reason string

const (
	ReasonTimeout          Reason = "timeout"
	ReasonStale            Reason = "stale"
	ReasonClickIntercepted Reason = "click intercepted"
	ReasonNotDisplayed     Reason = "not displayed"
	ReasonDriver           Reason = "driver error"
)

// ElementError is returned for element lookups and waits
type ElementError struct {
	Kind      error
	Locator   models.Locator
	Condition Condition
	Reason    Reason
	Err       error
}

func (e *ElementError) Error() string {
	msg := fmt.Sprintf("%v with locator %s (condition %s, %s)", e.Kind, e.Locator, e.Condition, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is matches the error's kind
func (e *ElementError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap exposes only timeouts and cancellation. Driver signals and backend
// errors stay in the message and never match through errors.Is or errors.As.
func (e *ElementError) Unwrap() error {
	switch {
	case e.Err == nil:
		return nil
	case errors.Is(e.Err, context.Canceled):
		return context.Canceled
	case errors.Is(e.Err, context.DeadlineExceeded):
		return context.DeadlineExceeded
	case errors.Is(e.Err, wait.ErrTimeout):
		return wait.ErrTimeout
	}
	return nil
}

// KindName returns a stable identifier for the domain kind of err, or "" if
// err carries none
func KindName(err error) string {
	switch {
	case errors.Is(err, ErrElementNotFound):
		return "ElementNotFound"
	case errors.Is(err, ErrElementNotClickable):
		return "ElementNotClickable"
	case errors.Is(err, ErrElementNotVisible):
		return "ElementNotVisible"
	case errors.Is(err, ErrPageLoadTimeout):
		return "PageLoadTimeout"
	}
	return ""
}
