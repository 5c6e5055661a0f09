// Package drivertest provides an in-memory driver.Driver whose document is
// scripted by the test: elements can appear late, hide, be covered, or go
// stale when the document is rebuilt.
package drivertest

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"dev/bravebird/ui-harness/pkg/driver"
	"dev/bravebird/ui-harness/pkg/models"
)

// ErrNotInteractable is returned by Click on a hidden element
var ErrNotInteractable = errors.New("element not interactable")

// Element is a scripted element
type Element struct {
	mu sync.Mutex

	name      string
	displayed []bool
	enabled   bool
	covered   bool
	size      models.Size
	text      string
	value     string
	stale     bool
	clicks    int

	onClick  func()
	onSubmit func(value string)
}

var _ driver.Element = (*Element)(nil)

// NewElement returns a displayed, enabled element with a non-zero size
func NewElement(name string) *Element {
	return &Element{
		name:      name,
		displayed: []bool{true},
		enabled:   true,
		size:      models.Size{Width: 120, Height: 24},
	}
}

// Hidden makes IsDisplayed report false
func (e *Element) Hidden() *Element {
	return e.DisplayedSequence(false)
}

// DisplayedSequence scripts successive IsDisplayed answers; the last one repeats
func (e *Element) DisplayedSequence(seq ...bool) *Element {
	if len(seq) == 0 {
		seq = []bool{true}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.displayed = append([]bool(nil), seq...)
	return e
}

// Disabled makes IsEnabled report false
func (e *Element) Disabled() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.enabled = false
	return e
}

// Covered makes Interactable and Click report driver.ErrClickIntercepted
func (e *Element) Covered() *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.covered = true
	return e
}

// WithSize sets the rendered size
func (e *Element) WithSize(width, height float64) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.size = models.Size{Width: width, Height: height}
	return e
}

// WithText sets the text content
func (e *Element) WithText(text string) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.text = text
	return e
}

// OnClick registers a hook run after each successful click
func (e *Element) OnClick(fn func()) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onClick = fn
	return e
}

// OnSubmit registers a hook run with the current value on Submit
func (e *Element) OnSubmit(fn func(value string)) *Element {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onSubmit = fn
	return e
}

// MakeStale detaches the element from the document
func (e *Element) MakeStale() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stale = true
}

// Show changes the element to displayed
func (e *Element) Show() {
	e.DisplayedSequence(true)
}

// Hide changes the element to not displayed
func (e *Element) Hide() {
	e.DisplayedSequence(false)
}

// Name returns the label given at construction
func (e *Element) Name() string { return e.name }

// Clicks returns how many clicks succeeded
func (e *Element) Clicks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.clicks
}

// Value returns the typed value
func (e *Element) Value() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.value
}

func (e *Element) check() error {
	if e.stale {
		return fmt.Errorf("%w: %s", driver.ErrStaleElement, e.name)
	}
	return nil
}

// nextDisplayed pops the scripted answer; callers hold e.mu
func (e *Element) nextDisplayed() bool {
	v := e.displayed[0]
	if len(e.displayed) > 1 {
		e.displayed = e.displayed[1:]
	}
	return v
}

func (e *Element) IsDisplayed(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	return e.nextDisplayed(), nil
}

func (e *Element) IsEnabled(ctx context.Context) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return false, err
	}
	return e.enabled, nil
}

func (e *Element) Interactable(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	if e.covered {
		return fmt.Errorf("%w: %s", driver.ErrClickIntercepted, e.name)
	}
	return nil
}

func (e *Element) Size(ctx context.Context) (models.Size, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return models.Size{}, err
	}
	return e.size, nil
}

func (e *Element) Text(ctx context.Context) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return "", err
	}
	return e.text, nil
}

func (e *Element) Click(ctx context.Context) error {
	e.mu.Lock()
	if err := e.check(); err != nil {
		e.mu.Unlock()
		return err
	}
	if e.covered {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", driver.ErrClickIntercepted, e.name)
	}
	if !e.displayed[0] {
		e.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotInteractable, e.name)
	}
	e.clicks++
	hook := e.onClick
	e.mu.Unlock()

	if hook != nil {
		hook()
	}
	return nil
}

func (e *Element) Clear(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.value = ""
	return nil
}

func (e *Element) SendKeys(ctx context.Context, text string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.check(); err != nil {
		return err
	}
	e.value += text
	return nil
}

func (e *Element) Submit(ctx context.Context) error {
	e.mu.Lock()
	if err := e.check(); err != nil {
		e.mu.Unlock()
		return err
	}
	hook, value := e.onSubmit, e.value
	e.mu.Unlock()

	if hook != nil {
		hook(value)
	}
	return nil
}

type pending struct {
	after    int
	elements []*Element
}

// Driver is an in-memory driver.Driver
type Driver struct {
	mu sync.Mutex

	elements    map[models.Locator][]*Element
	pending     map[models.Locator]pending
	findCalls   map[models.Locator]int
	readyStates []string
	navigations []string
	onNavigate  func(url string)
	findErr     error
	closed      bool
	cleared     int
}

var _ driver.Driver = (*Driver)(nil)

// New returns an empty document whose readyState is "complete"
func New() *Driver {
	return &Driver{
		elements:    make(map[models.Locator][]*Element),
		pending:     make(map[models.Locator]pending),
		findCalls:   make(map[models.Locator]int),
		readyStates: []string{"complete"},
	}
}

// Set makes loc match els
func (d *Driver) Set(loc models.Locator, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.elements[loc] = els
}

// Remove makes loc match nothing without invalidating handles
func (d *Driver) Remove(loc models.Locator) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.elements, loc)
	delete(d.pending, loc)
}

// AppearAfter makes els match loc once FindElements(loc) has been called
// more than n times
func (d *Driver) AppearAfter(loc models.Locator, n int, els ...*Element) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pending[loc] = pending{after: n, elements: els}
}

// Rebuild replaces the whole document: every current element goes stale
func (d *Driver) Rebuild() {
	d.mu.Lock()
	old := d.elements
	d.elements = make(map[models.Locator][]*Element)
	d.pending = make(map[models.Locator]pending)
	d.mu.Unlock()

	for _, els := range old {
		for _, el := range els {
			el.MakeStale()
		}
	}
}

// ReadyStates scripts successive document.readyState values; the last repeats
func (d *Driver) ReadyStates(states ...string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.readyStates = append([]string(nil), states...)
}

// OnNavigate registers a hook run after each Navigate
func (d *Driver) OnNavigate(fn func(url string)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onNavigate = fn
}

// FailFind makes every FindElements call return err
func (d *Driver) FailFind(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findErr = err
}

// FindCalls returns how often FindElements(loc) was called
func (d *Driver) FindCalls(loc models.Locator) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.findCalls[loc]
}

// Navigations returns every URL passed to Navigate
func (d *Driver) Navigations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.navigations...)
}

// Closed reports whether Close was called
func (d *Driver) Closed() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.closed
}

// Cleared returns how often ClearBrowsingData was called
func (d *Driver) Cleared() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.cleared
}

func (d *Driver) Navigate(ctx context.Context, url string) error {
	d.mu.Lock()
	d.navigations = append(d.navigations, url)
	hook := d.onNavigate
	d.mu.Unlock()

	if hook != nil {
		hook(url)
	}
	return nil
}

func (d *Driver) FindElements(ctx context.Context, loc models.Locator) ([]driver.Element, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.findCalls[loc]++
	if d.findErr != nil {
		return nil, d.findErr
	}
	if p, ok := d.pending[loc]; ok && d.findCalls[loc] > p.after {
		d.elements[loc] = p.elements
		delete(d.pending, loc)
	}

	els := d.elements[loc]
	out := make([]driver.Element, len(els))
	for i, el := range els {
		out[i] = el
	}
	return out, nil
}

func (d *Driver) ExecuteScript(ctx context.Context, script string) (any, error) {
	if !strings.Contains(script, "document.readyState") {
		return nil, fmt.Errorf("drivertest: unsupported script %q", script)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	state := d.readyStates[0]
	if len(d.readyStates) > 1 {
		d.readyStates = d.readyStates[1:]
	}
	return state, nil
}

func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return []byte("\x89PNG\r\n\x1a\n"), nil
}

func (d *Driver) ClearBrowsingData(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cleared++
	return nil
}

func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}
