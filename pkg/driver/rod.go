package driver

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/go-rod/rod/lib/input"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dev/bravebird/ui-harness/pkg/models"
)

// BrowserOptions configures LaunchRod
type BrowserOptions struct {
	Headless bool
	// Bin overrides the browser binary (CHROME_BIN in Docker)
	Bin string
}

// RodDriver implements Driver on top of a go-rod page
type RodDriver struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
	page     *rod.Page
}

var _ Driver = (*RodDriver)(nil)

// LaunchRod starts a browser and opens a blank page
func LaunchRod(ctx context.Context, opts BrowserOptions) (*RodDriver, error) {
	l := launcher.New().Context(ctx)

	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	l = l.Headless(opts.Headless)

	// Additional Chrome flags for Docker compatibility
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	url, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(url)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	page, err := browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		browser.Close()
		l.Kill()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	return &RodDriver{browser: browser, launcher: l, page: page}, nil
}

// NewRodDriver wraps an already opened page. Close only closes the page.
func NewRodDriver(page *rod.Page) *RodDriver {
	return &RodDriver{page: page}
}

// Navigate implements Driver
func (d *RodDriver) Navigate(ctx context.Context, url string) error {
	if err := d.page.Context(ctx).Navigate(url); err != nil {
		return fmt.Errorf("navigation failed: %w", err)
	}
	return nil
}

// FindElements implements Driver
func (d *RodDriver) FindElements(ctx context.Context, loc models.Locator) ([]Element, error) {
	p := d.page.Context(ctx)

	var (
		found rod.Elements
		err   error
	)
	switch loc.By {
	case models.ByXPath:
		found, err = p.ElementsX(loc.Value)
	case models.ByLinkText:
		found, err = p.ElementsX("//a[normalize-space(.)=" + xpathLiteral(loc.Value) + "]")
	case models.ByPartialLinkText:
		found, err = p.ElementsX("//a[contains(., " + xpathLiteral(loc.Value) + ")]")
	default:
		sel, selErr := cssSelector(loc)
		if selErr != nil {
			return nil, selErr
		}
		found, err = p.Elements(sel)
	}
	if err != nil {
		return nil, translate(err)
	}

	elements := make([]Element, len(found))
	for i, el := range found {
		elements[i] = &rodElement{el: el, page: d.page}
	}
	return elements, nil
}

// ExecuteScript implements Driver
func (d *RodDriver) ExecuteScript(ctx context.Context, script string) (any, error) {
	res, err := d.page.Context(ctx).Eval(script)
	if err != nil {
		return nil, translate(err)
	}
	return res.Value.Val(), nil
}

// Screenshot implements Driver
func (d *RodDriver) Screenshot(ctx context.Context) ([]byte, error) {
	data, err := d.page.Context(ctx).Screenshot(true, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

// ClearBrowsingData implements Driver
func (d *RodDriver) ClearBrowsingData(ctx context.Context) error {
	p := d.page.Context(ctx)
	if err := (proto.NetworkClearBrowserCache{}).Call(p); err != nil {
		return fmt.Errorf("failed to clear browser cache: %w", err)
	}
	if err := (proto.NetworkClearBrowserCookies{}).Call(p); err != nil {
		return fmt.Errorf("failed to clear browser cookies: %w", err)
	}
	return nil
}

// Close implements Driver
func (d *RodDriver) Close() error {
	if d.browser == nil {
		return d.page.Close()
	}
	err := d.browser.Close()
	if d.launcher != nil {
		d.launcher.Kill()
		d.launcher.Cleanup()
	}
	return err
}

// rodElement implements Element for a rod element
type rodElement struct {
	el   *rod.Element
	page *rod.Page
}

// attached returns a context-bound element, or ErrStaleElement once the node
// has been detached from the document
func (e *rodElement) attached(ctx context.Context) (*rod.Element, error) {
	el := e.el.Context(ctx)
	res, err := el.Eval(`() => this.isConnected`)
	if err != nil {
		return nil, translate(err)
	}
	if !res.Value.Bool() {
		return nil, ErrStaleElement
	}
	return el, nil
}

func (e *rodElement) IsDisplayed(ctx context.Context) (bool, error) {
	el, err := e.attached(ctx)
	if err != nil {
		return false, err
	}
	visible, err := el.Visible()
	if err != nil {
		return false, translate(err)
	}
	return visible, nil
}

func (e *rodElement) IsEnabled(ctx context.Context) (bool, error) {
	el, err := e.attached(ctx)
	if err != nil {
		return false, err
	}
	disabled, err := el.Property("disabled")
	if err != nil {
		return false, translate(err)
	}
	return !disabled.Bool(), nil
}

func (e *rodElement) Interactable(ctx context.Context) error {
	el, err := e.attached(ctx)
	if err != nil {
		return err
	}
	if err := el.ScrollIntoView(); err != nil {
		return translate(err)
	}
	if _, err := el.Interactable(); err != nil {
		return translate(err)
	}
	return nil
}

func (e *rodElement) Size(ctx context.Context) (models.Size, error) {
	el, err := e.attached(ctx)
	if err != nil {
		return models.Size{}, err
	}
	res, err := el.Eval(`() => {
		const r = this.getBoundingClientRect();
		return { width: r.width, height: r.height };
	}`)
	if err != nil {
		return models.Size{}, translate(err)
	}
	return models.Size{
		Width:  res.Value.Get("width").Num(),
		Height: res.Value.Get("height").Num(),
	}, nil
}

func (e *rodElement) Text(ctx context.Context) (string, error) {
	el, err := e.attached(ctx)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", translate(err)
	}
	return text, nil
}

func (e *rodElement) Click(ctx context.Context) error {
	el, err := e.attached(ctx)
	if err != nil {
		return err
	}
	return translate(el.Click(proto.InputMouseButtonLeft, 1))
}

func (e *rodElement) Clear(ctx context.Context) error {
	el, err := e.attached(ctx)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return translate(err)
	}
	return translate(el.Input(""))
}

func (e *rodElement) SendKeys(ctx context.Context, text string) error {
	el, err := e.attached(ctx)
	if err != nil {
		return err
	}
	return translate(el.Input(text))
}

func (e *rodElement) Submit(ctx context.Context) error {
	el, err := e.attached(ctx)
	if err != nil {
		return err
	}
	if err := el.Focus(); err != nil {
		return translate(err)
	}
	return translate(e.page.Keyboard.Press(input.Enter))
}

// staleMessages are CDP error fragments reported for nodes or execution
// contexts that no longer exist
var staleMessages = []string{
	"could not find node",
	"could not find object",
	"cannot find context",
	"context was destroyed",
	"does not belong to the document",
	"no node with given id",
}

// translate maps rod and CDP errors onto the driver signals
func translate(err error) error {
	if err == nil {
		return nil
	}

	// The typed rod errors are matched before formatting: their Error methods
	// dereference the element or remote object they carry.
	var covered *rod.CoveredError
	if errors.As(err, &covered) {
		return fmt.Errorf("%w: element is covered by another element", ErrClickIntercepted)
	}

	// Evaluating on a handle whose document was replaced
	var gone *rod.ObjectNotFoundError
	if errors.As(err, &gone) {
		return fmt.Errorf("%w: remote object no longer exists", ErrStaleElement)
	}

	var cdpErr *cdp.Error
	if errors.As(err, &cdpErr) {
		msg := strings.ToLower(cdpErr.Message)
		for _, fragment := range staleMessages {
			if strings.Contains(msg, fragment) {
				return fmt.Errorf("%w: %v", ErrStaleElement, err)
			}
		}
	}
	return err
}

// cssSelector converts a non-XPath locator to a CSS selector
func cssSelector(loc models.Locator) (string, error) {
	switch loc.By {
	case models.ByID:
		return "[id=" + cssString(loc.Value) + "]", nil
	case models.ByName:
		return "[name=" + cssString(loc.Value) + "]", nil
	case models.ByClassName:
		return "[class~=" + cssString(loc.Value) + "]", nil
	case models.ByCSSSelector, models.ByTagName:
		return loc.Value, nil
	default:
		return "", fmt.Errorf("unsupported locator strategy: %q", loc.By)
	}
}

var cssEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

func cssString(s string) string {
	return `"` + cssEscaper.Replace(s) + `"`
}

// xpathLiteral quotes s as an XPath 1.0 string literal. XPath has no escape
// sequences, so strings holding both quote kinds are built with concat().
func xpathLiteral(s string) string {
	if !strings.Contains(s, "'") {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}

	parts := strings.Split(s, "'")
	args := make([]string, 0, len(parts)*2-1)
	for i, part := range parts {
		if i > 0 {
			args = append(args, `"'"`)
		}
		if part != "" {
			args = append(args, "'"+part+"'")
		}
	}
	return "concat(" + strings.Join(args, ", ") + ")"
}
