package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/scraper"
)

// stubElement answers selector queries from canned maps. Child attribute
// lookups are keyed "selector|name".
type stubElement struct {
	texts      map[string]string
	lists      map[string][]string
	attrs      map[string]string
	childAttrs map[string]string
}

func (e *stubElement) Text(_ context.Context, selector string) (string, bool, error) {
	v, ok := e.texts[selector]
	return v, ok, nil
}

func (e *stubElement) Texts(_ context.Context, selector string) ([]string, error) {
	return e.lists[selector], nil
}

func (e *stubElement) Attr(_ context.Context, name string) (string, bool, error) {
	v, ok := e.attrs[name]
	return v, ok, nil
}

func (e *stubElement) AttrOf(_ context.Context, selector, name string) (string, bool, error) {
	v, ok := e.childAttrs[selector+"|"+name]
	return v, ok, nil
}

// stubBrowser serves canned query results, tracks clicks, and reports a fixed
// current URL.
type stubBrowser struct {
	queries    map[string][]scraper.Element
	currentURL string
	clicked    []string
}

func (b *stubBrowser) Navigate(_ context.Context, rawURL string, _ scraper.WaitCondition, _ time.Duration) (scraper.PageInfo, error) {
	return scraper.PageInfo{StatusCode: 200, FinalURL: rawURL}, nil
}

func (b *stubBrowser) Content(context.Context) (string, error) { return "", nil }

func (b *stubBrowser) Query(_ context.Context, selector string) ([]scraper.Element, error) {
	return b.queries[selector], nil
}

func (b *stubBrowser) Exists(_ context.Context, selector string) (bool, error) {
	return len(b.queries[selector]) > 0, nil
}

func (b *stubBrowser) Click(_ context.Context, selector string) error {
	b.clicked = append(b.clicked, selector)
	return nil
}

func (b *stubBrowser) CurrentURL(context.Context) (string, error) { return b.currentURL, nil }

func (b *stubBrowser) SetCookie(context.Context, string, string, string) error { return nil }
func (b *stubBrowser) Rotate(context.Context) error                            { return nil }
func (b *stubBrowser) Close(context.Context) error                             { return nil }

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

var testNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

func testDeps(b scraper.Browser) Deps {
	return Deps{Browser: b, Clock: fixedClock{now: testNow}, Logger: zap.NewNop()}
}

func TestNewAdapterFactory(t *testing.T) {
	deps := testDeps(&stubBrowser{})

	a, err := New(scraper.PlatformNaukri, deps)
	require.NoError(t, err)
	require.IsType(t, &Naukri{}, a)

	a, err = New(scraper.PlatformLinkedIn, deps)
	require.NoError(t, err)
	require.IsType(t, &LinkedIn{}, a)

	a, err = New(scraper.PlatformInstahire, deps)
	require.NoError(t, err)
	require.IsType(t, &Instahire{}, a)

	_, err = New(scraper.PlatformAPISource, deps)
	require.Error(t, err)
}

func TestFallbackURLIsStable(t *testing.T) {
	a := fallbackURL("https://www.naukri.com", "Backend Engineer", "Acme")
	b := fallbackURL("https://www.naukri.com", "Backend Engineer", "Acme")
	c := fallbackURL("https://www.naukri.com", "Backend Engineer", "Globex")
	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Contains(t, a, "https://www.naukri.com/job/")
}
