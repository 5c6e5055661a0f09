package finder

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-harness/pkg/driver/drivertest"
	"dev/bravebird/ui-harness/pkg/logging"
	"dev/bravebird/ui-harness/pkg/models"
	"dev/bravebird/ui-harness/pkg/wait"
)

var spinnerLocator = models.Locator{By: models.ByCSSSelector, Value: ".spinner"}

func newWaiter(drv *drivertest.Driver) (*ElementWaiter, *logging.Recorder) {
	rec := logging.NewRecorder()
	return NewElementWaiter(drv, testWait(), rec), rec
}

func TestWaitForElementToDisappear(t *testing.T) {
	tests := []struct {
		name  string
		setup func(drv *drivertest.Driver)
	}{
		{
			name:  "never present",
			setup: func(drv *drivertest.Driver) {},
		},
		{
			name: "already hidden",
			setup: func(drv *drivertest.Driver) {
				drv.Set(spinnerLocator, drivertest.NewElement("spinner").Hidden())
			},
		},
		{
			name: "hidden after a few polls",
			setup: func(drv *drivertest.Driver) {
				drv.Set(spinnerLocator, drivertest.NewElement("spinner").DisplayedSequence(true, true, false))
			},
		},
		{
			name: "removed mid-wait",
			setup: func(drv *drivertest.Driver) {
				drv.Set(spinnerLocator, drivertest.NewElement("spinner"))
				go func() {
					time.Sleep(10 * time.Millisecond)
					drv.Remove(spinnerLocator)
				}()
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			drv := drivertest.New()
			tt.setup(drv)

			w, rec := newWaiter(drv)
			gone, err := w.WaitForElementToDisappear(context.Background(), spinnerLocator)

			require.NoError(t, err)
			assert.True(t, gone)
			assert.Empty(t, rec.Entries())
		})
	}
}

func TestWaitForElementToDisappearChecksEveryMatch(t *testing.T) {
	drv := drivertest.New()
	drv.Set(spinnerLocator,
		drivertest.NewElement("first").Hidden(),
		drivertest.NewElement("second"),
	)

	w, _ := newWaiter(drv)
	gone, err := w.WaitForElementToDisappear(context.Background(), spinnerLocator)

	assert.False(t, gone)
	assert.ErrorIs(t, err, ErrElementNotVisible)
}

func TestWaitForElementToDisappearTimeout(t *testing.T) {
	drv := drivertest.New()
	drv.Set(spinnerLocator, drivertest.NewElement("spinner"))

	w, rec := newWaiter(drv)
	gone, err := w.WaitForElementToDisappear(context.Background(), spinnerLocator)

	assert.False(t, gone)
	assert.ErrorIs(t, err, ErrElementNotVisible)
	assert.ErrorIs(t, err, wait.ErrTimeout)

	var elemErr *ElementError
	require.ErrorAs(t, err, &elemErr)
	assert.Equal(t, ConditionInvisible, elemErr.Condition)
	assert.Equal(t, spinnerLocator, elemErr.Locator)

	entry, ok := rec.Last("ERROR")
	require.True(t, ok)
	assert.Equal(t, "Element did not disappear", entry.Msg)
	assert.Equal(t, spinnerLocator.String(), entry.Fields["locator"])
}

func TestWaitForElementToDisappearStaleIsFailure(t *testing.T) {
	drv := drivertest.New()
	spinner := drivertest.NewElement("spinner")
	drv.Set(spinnerLocator, spinner)
	spinner.MakeStale()

	w, _ := newWaiter(drv)
	gone, err := w.WaitForElementToDisappear(context.Background(), spinnerLocator)

	assert.False(t, gone)
	assert.ErrorIs(t, err, ErrElementNotVisible)

	var elemErr *ElementError
	require.ErrorAs(t, err, &elemErr)
	assert.Equal(t, ReasonStale, elemErr.Reason)
}

func TestWaitForPageLoad(t *testing.T) {
	drv := drivertest.New()
	drv.ReadyStates("loading", "loading", "interactive", "complete")

	w, rec := newWaiter(drv)
	require.NoError(t, w.WaitForPageLoad(context.Background()))
	assert.Empty(t, rec.Entries())
}

func TestWaitForPageLoadTimeout(t *testing.T) {
	drv := drivertest.New()
	drv.ReadyStates("loading", "interactive")

	w, rec := newWaiter(drv)
	err := w.WaitForPageLoad(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrPageLoadTimeout)
	assert.ErrorIs(t, err, wait.ErrTimeout)
	assert.Equal(t, "PageLoadTimeout", KindName(err))

	// Page-load failures are not element failures.
	var elemErr *ElementError
	assert.False(t, errors.As(err, &elemErr))

	entry, ok := rec.Last("ERROR")
	require.True(t, ok)
	assert.Equal(t, "Page did not load completely", entry.Msg)
}

func TestWaitForPageLoadHonorsCancel(t *testing.T) {
	drv := drivertest.New()
	drv.ReadyStates("loading")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w, _ := newWaiter(drv)
	err := w.WaitForPageLoad(ctx)

	assert.ErrorIs(t, err, ErrPageLoadTimeout)
	assert.ErrorIs(t, err, context.Canceled)
}
