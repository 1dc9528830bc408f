package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
)

func init() {
	metrics.Init()
}

// step scripts one navigation attempt of the fake browser.
type step struct {
	status  int
	content string
	navErr  error
}

type fakeBrowser struct {
	steps     []step
	attempt   int
	rotations int
	closed    bool
}

func (b *fakeBrowser) Navigate(_ context.Context, _ string, _ scraper.WaitCondition, _ time.Duration) (scraper.PageInfo, error) {
	s := b.current()
	if s.navErr != nil {
		b.attempt++
		return scraper.PageInfo{}, s.navErr
	}
	// Content is never consulted for non-200 statuses, so the script must
	// advance here.
	if s.status != 200 {
		b.attempt++
	}
	return scraper.PageInfo{StatusCode: s.status}, nil
}

func (b *fakeBrowser) Content(context.Context) (string, error) {
	s := b.current()
	b.attempt++
	return s.content, nil
}

func (b *fakeBrowser) current() step {
	if b.attempt >= len(b.steps) {
		return step{status: 200, content: "<html>ok</html>"}
	}
	return b.steps[b.attempt]
}

func (b *fakeBrowser) Query(context.Context, string) ([]scraper.Element, error) { return nil, nil }
func (b *fakeBrowser) Exists(context.Context, string) (bool, error)            { return false, nil }
func (b *fakeBrowser) Click(context.Context, string) error                     { return nil }
func (b *fakeBrowser) CurrentURL(context.Context) (string, error)              { return "", nil }
func (b *fakeBrowser) SetCookie(context.Context, string, string, string) error { return nil }
func (b *fakeBrowser) Rotate(context.Context) error                            { b.rotations++; return nil }
func (b *fakeBrowser) Close(context.Context) error                             { b.closed = true; return nil }

func newTestNavigator(t *testing.T, b scraper.Browser) (*RetryNavigator, *[]time.Duration) {
	t.Helper()
	n := NewRetryNavigator(NavigatorConfig{
		MaxRetries: 3,
		DelayMin:   time.Second,
		DelayMax:   2 * time.Second,
	}, b, scraper.PlatformNaukri, zap.NewNop())
	var sleeps []time.Duration
	n.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return ctx.Err()
	}
	return n, &sleeps
}

func TestNavigateSuccessAppliesDelay(t *testing.T) {
	b := &fakeBrowser{steps: []step{{status: 200, content: "<html>jobs</html>"}}}
	n, sleeps := newTestNavigator(t, b)

	require.NoError(t, n.Navigate(context.Background(), "https://example.com"))
	require.Len(t, *sleeps, 1, "one post-navigation delay")
	require.GreaterOrEqual(t, (*sleeps)[0], time.Second)
	require.LessOrEqual(t, (*sleeps)[0], 2*time.Second)
	require.Zero(t, b.rotations)
}

func TestNavigateRateLimitBacksOffAndRotates(t *testing.T) {
	b := &fakeBrowser{steps: []step{
		{status: 429},
		{status: 429},
		{status: 200, content: "<html>jobs</html>"},
	}}
	n, sleeps := newTestNavigator(t, b)

	require.NoError(t, n.Navigate(context.Background(), "https://example.com"))
	require.Equal(t, 2, b.rotations)
	// 30s, 60s exponential backoff, then the post-success delay.
	require.Len(t, *sleeps, 3)
	require.Equal(t, 30*time.Second, (*sleeps)[0])
	require.Equal(t, 60*time.Second, (*sleeps)[1])
}

func TestNavigateRateLimitExhaustsRetries(t *testing.T) {
	b := &fakeBrowser{steps: []step{{status: 429}, {status: 429}, {status: 429}}}
	n, _ := newTestNavigator(t, b)

	err := n.Navigate(context.Background(), "https://example.com")
	require.ErrorIs(t, err, scraper.ErrRateLimited)
	require.Equal(t, 3, b.rotations)
}

func TestNavigateBlockedByStatus(t *testing.T) {
	b := &fakeBrowser{steps: []step{{status: 403}, {status: 403}, {status: 403}}}
	n, sleeps := newTestNavigator(t, b)

	err := n.Navigate(context.Background(), "https://example.com")
	require.ErrorIs(t, err, scraper.ErrBlocked)
	// Rotation happens after the first two blocks but not the final one.
	require.Equal(t, 2, b.rotations)
	require.Equal(t, []time.Duration{time.Minute, time.Minute}, *sleeps)
}

func TestNavigateBlockedByContentAnyStatus(t *testing.T) {
	for _, content := range []string{
		"<html>Unusual Traffic detected</html>",
		"<html>our systems have detected UNUSUAL TRAFFIC</html>",
		"<html>please solve this captcha</html>",
	} {
		b := &fakeBrowser{steps: []step{
			{status: 200, content: content},
			{status: 200, content: content},
			{status: 200, content: content},
		}}
		n, _ := newTestNavigator(t, b)

		err := n.Navigate(context.Background(), "https://example.com")
		require.ErrorIs(t, err, scraper.ErrBlocked, "content %q", content)
	}
}

func TestNavigateBlockedThenRecovers(t *testing.T) {
	b := &fakeBrowser{steps: []step{
		{status: 200, content: "<html>access denied</html>"},
		{status: 200, content: "<html>jobs</html>"},
	}}
	n, _ := newTestNavigator(t, b)

	require.NoError(t, n.Navigate(context.Background(), "https://example.com"))
	require.Equal(t, 1, b.rotations)
}

func TestNavigateTransportFailureLinearBackoff(t *testing.T) {
	transport := errors.New("net::ERR_CONNECTION_RESET")
	b := &fakeBrowser{steps: []step{
		{navErr: transport},
		{navErr: transport},
		{status: 200, content: "<html>jobs</html>"},
	}}
	n, sleeps := newTestNavigator(t, b)

	require.NoError(t, n.Navigate(context.Background(), "https://example.com"))
	require.Zero(t, b.rotations, "transport failures do not rotate the session")
	require.Len(t, *sleeps, 3)
	require.Equal(t, 5*time.Second, (*sleeps)[0])
	require.Equal(t, 10*time.Second, (*sleeps)[1])
}

func TestNavigateTransportFailureExhaustsRetries(t *testing.T) {
	transport := errors.New("net::ERR_NAME_NOT_RESOLVED")
	b := &fakeBrowser{steps: []step{
		{navErr: transport}, {navErr: transport}, {navErr: transport},
	}}
	n, _ := newTestNavigator(t, b)

	err := n.Navigate(context.Background(), "https://example.com")
	require.ErrorIs(t, err, scraper.ErrNavigationFailed)
}

func TestNavigateHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := &fakeBrowser{steps: []step{{status: 200, content: "<html>jobs</html>"}}}
	n, _ := newTestNavigator(t, b)

	err := n.Navigate(ctx, "https://example.com")
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsBlockedContent(t *testing.T) {
	require.True(t, isBlockedContent("Verify you're human"))
	require.True(t, isBlockedContent("SECURITY CHECK required"))
	require.False(t, isBlockedContent("<html>plain job listings</html>"))
}
