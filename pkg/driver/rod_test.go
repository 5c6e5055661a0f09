package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-harness/pkg/models"
)

func TestXPathLiteral(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "2022–23 IR Tanger season", "'2022–23 IR Tanger season'"},
		{"single quote", "Today's featured article", `"Today's featured article"`},
		{"double quote", `say "hi"`, `'say "hi"'`},
		{"both quotes", `it's "here"`, `concat('it', "'", 's "here"')`},
		{"leading single quote", `'x"`, `concat("'", 'x"')`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, xpathLiteral(tt.in))
		})
	}
}

func TestCSSSelector(t *testing.T) {
	tests := []struct {
		loc     models.Locator
		want    string
		wantErr bool
	}{
		{loc: models.Locator{By: models.ByID, Value: "searchInput"}, want: `[id="searchInput"]`},
		{loc: models.Locator{By: models.ByName, Value: "search"}, want: `[name="search"]`},
		{loc: models.Locator{By: models.ByClassName, Value: "central-featured"}, want: `[class~="central-featured"]`},
		{loc: models.Locator{By: models.ByCSSSelector, Value: "div > a.link"}, want: "div > a.link"},
		{loc: models.Locator{By: models.ByTagName, Value: "h1"}, want: "h1"},
		{loc: models.Locator{By: models.ByID, Value: `we"ird\id`}, want: `[id="we\"ird\\id"]`},
		{loc: models.Locator{By: "shadow", Value: "x"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(string(tt.loc.By), func(t *testing.T) {
			got, err := cssSelector(tt.loc)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslate(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"missing node", &cdp.Error{Code: -32000, Message: "Could not find node with given id"}, ErrStaleElement},
		{"destroyed context", fmt.Errorf("eval: %w", &cdp.Error{Code: -32000, Message: "Execution context was destroyed."}), ErrStaleElement},
		{"replaced document", &rod.ObjectNotFoundError{}, ErrStaleElement},
		{"wrapped replaced document", fmt.Errorf("is connected: %w", &rod.ObjectNotFoundError{}), ErrStaleElement},
		{"covered", &rod.CoveredError{}, ErrClickIntercepted},
		{"wrapped covered", fmt.Errorf("interactable: %w", &rod.CoveredError{}), ErrClickIntercepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, translate(tt.err), tt.want)
		})
	}

	other := &cdp.Error{Code: -32601, Message: "method not found"}
	got := translate(other)
	assert.False(t, errors.Is(got, ErrStaleElement))
	assert.False(t, errors.Is(got, ErrClickIntercepted))

	assert.NoError(t, translate(nil))
}

// TestRodDriverAgainstBrowser needs a local Chrome; set UIHARNESS_BROWSER=1 to run it.
func TestRodDriverAgainstBrowser(t *testing.T) {
	if os.Getenv("UIHARNESS_BROWSER") == "" {
		t.Skip("UIHARNESS_BROWSER not set")
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<!DOCTYPE html>
<html>
<body>
	<div class="central-featured logo">Wikipedia</div>
	<input id="searchInput" name="search">
	<button id="disabled" disabled>Nope</button>
	<div id="hidden" style="display:none">hidden</div>
	<a href="#season">2022–23 IR Tanger season</a>
</body>
</html>`)
	}))
	defer server.Close()

	ctx := context.Background()
	d, err := LaunchRod(ctx, BrowserOptions{Headless: true, Bin: os.Getenv("CHROME_BIN")})
	require.NoError(t, err)
	defer d.Close()

	require.NoError(t, d.Navigate(ctx, server.URL))

	state, err := d.ExecuteScript(ctx, `() => document.readyState`)
	require.NoError(t, err)
	assert.NotEmpty(t, state)

	logo, err := d.FindElements(ctx, models.Locator{By: models.ByClassName, Value: "central-featured"})
	require.NoError(t, err)
	require.Len(t, logo, 1)
	displayed, err := logo[0].IsDisplayed(ctx)
	require.NoError(t, err)
	assert.True(t, displayed)

	link, err := d.FindElements(ctx, models.Locator{By: models.ByPartialLinkText, Value: "IR Tanger"})
	require.NoError(t, err)
	require.Len(t, link, 1)
	assert.NoError(t, link[0].Interactable(ctx))

	button, err := d.FindElements(ctx, models.Locator{By: models.ByID, Value: "disabled"})
	require.NoError(t, err)
	require.Len(t, button, 1)
	enabled, err := button[0].IsEnabled(ctx)
	require.NoError(t, err)
	assert.False(t, enabled)

	hidden, err := d.FindElements(ctx, models.Locator{By: models.ByID, Value: "hidden"})
	require.NoError(t, err)
	require.Len(t, hidden, 1)
	displayed, err = hidden[0].IsDisplayed(ctx)
	require.NoError(t, err)
	assert.False(t, displayed)

	_, err = d.ExecuteScript(ctx, `() => { document.body.innerHTML = ''; return true }`)
	require.NoError(t, err)
	_, err = logo[0].IsDisplayed(ctx)
	assert.ErrorIs(t, err, ErrStaleElement)

	none, err := d.FindElements(ctx, models.Locator{By: models.ByLinkText, Value: "missing"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
