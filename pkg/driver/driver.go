// Package driver defines the browser abstraction the wait engine and page
// objects are written against, plus its go-rod implementation.
package driver

import (
	"context"
	"errors"

	"dev/bravebird/ui-harness/pkg/models"
)

// Low-level signals raised by driver implementations. The finder translates
// every one of them into a domain error; callers above it never see these.
var (
	// ErrNoSuchElement means nothing currently matches a locator.
	ErrNoSuchElement = errors.New("no such element")
	// ErrStaleElement means a handle no longer refers to a node in the live document.
	ErrStaleElement = errors.New("stale element reference")
	// ErrClickIntercepted means another element would receive a click aimed at the target.
	ErrClickIntercepted = errors.New("element click intercepted")
)

// Driver controls a single browser page
type Driver interface {
	// Navigate loads url in the page and returns once navigation is committed
	Navigate(ctx context.Context, url string) error

	// FindElements returns the elements currently matching loc, in document
	// order. An empty result is not an error.
	FindElements(ctx context.Context, loc models.Locator) ([]Element, error)

	// ExecuteScript evaluates a JavaScript function expression such as
	// `() => document.readyState` and returns its JSON value
	ExecuteScript(ctx context.Context, script string) (any, error)

	// Screenshot captures the viewport as PNG
	Screenshot(ctx context.Context) ([]byte, error)

	// ClearBrowsingData drops the HTTP cache and every cookie
	ClearBrowsingData(ctx context.Context) error

	// Close releases the page and its browser
	Close() error
}

// Element is a live reference to a node. Any method may return
// ErrStaleElement once the node has left the document.
type Element interface {
	IsDisplayed(ctx context.Context) (bool, error)
	IsEnabled(ctx context.Context) (bool, error)

	// Interactable returns ErrClickIntercepted when another element covers
	// the target's click point
	Interactable(ctx context.Context) error

	Size(ctx context.Context) (models.Size, error)
	Text(ctx context.Context) (string, error)

	Click(ctx context.Context) error
	Clear(ctx context.Context) error
	SendKeys(ctx context.Context, text string) error

	// Submit presses Enter on the element
	Submit(ctx context.Context) error
}
