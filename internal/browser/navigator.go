package browser

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoapply/jobscout/internal/metrics"
	"github.com/autoapply/jobscout/internal/scraper"
)

// blockIndicators are case-insensitive substrings whose presence in page
// content marks it as a block or challenge page, regardless of HTTP status.
// The list is heuristic; it will false-positive on legitimate text and miss
// novel challenge pages, but no more robust signal is available.
var blockIndicators = []string{
	"captcha",
	"robot",
	"blocked",
	"access denied",
	"unusual traffic",
	"verify you're human",
	"security check",
}

// outcome is the classified result of one navigation attempt.
type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeRateLimited
	outcomeBlocked
	outcomeFailed
)

// NavigatorConfig holds the retry and pacing knobs for the navigation engine.
type NavigatorConfig struct {
	MaxRetries int
	// DelayMin and DelayMax bound the uniform random pause applied after a
	// confirmed-successful navigation.
	DelayMin   time.Duration
	DelayMax   time.Duration
	NavTimeout time.Duration
	Wait       scraper.WaitCondition
}

func (c NavigatorConfig) withDefaults() NavigatorConfig {
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DelayMin <= 0 {
		c.DelayMin = 2 * time.Second
	}
	if c.DelayMax < c.DelayMin {
		c.DelayMax = c.DelayMin
	}
	if c.NavTimeout <= 0 {
		c.NavTimeout = 30 * time.Second
	}
	if c.Wait == "" {
		c.Wait = scraper.WaitDOMContentLoaded
	}
	return c
}

// RetryNavigator wraps a Browser with block detection, classified backoff,
// and session rotation. Each attempt is classified as success, rate-limited,
// blocked, or failed, and the retry loop branches on that tag.
type RetryNavigator struct {
	cfg      NavigatorConfig
	browser  scraper.Browser
	platform scraper.Platform
	logger   *zap.Logger

	// sleep is swapped out in tests.
	sleep func(ctx context.Context, d time.Duration) error
	rng   *rand.Rand
}

// NewRetryNavigator wires the navigation engine for one platform.
func NewRetryNavigator(cfg NavigatorConfig, b scraper.Browser, platform scraper.Platform, logger *zap.Logger) *RetryNavigator {
	return &RetryNavigator{
		cfg:      cfg.withDefaults(),
		browser:  b,
		platform: platform,
		logger:   logger.With(zap.String("platform", string(platform))),
		sleep:    sleepContext,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Navigate performs one logical navigation with up to MaxRetries attempts.
// On success it applies the random post-navigation delay before returning.
// Once the retry budget is exhausted it returns scraper.ErrRateLimited,
// scraper.ErrBlocked, or scraper.ErrNavigationFailed.
func (n *RetryNavigator) Navigate(ctx context.Context, rawURL string) error {
	var lastErr error
	for attempt := 0; attempt < n.cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		n.logger.Info("navigating",
			zap.String("url", rawURL), zap.Int("attempt", attempt+1))

		tag, attemptErr := n.attempt(ctx, rawURL)
		switch tag {
		case outcomeSuccess:
			return n.postNavigationDelay(ctx)

		case outcomeRateLimited:
			lastErr = scraper.ErrRateLimited
			metrics.ObserveRateLimit(string(n.platform))
			wait := time.Duration(1<<attempt) * 30 * time.Second
			n.logger.Warn("rate limited, backing off",
				zap.Duration("wait", wait), zap.Int("attempt", attempt+1))
			if err := n.sleep(ctx, wait); err != nil {
				return err
			}
			if err := n.rotate(ctx); err != nil {
				return err
			}

		case outcomeBlocked:
			lastErr = scraper.ErrBlocked
			metrics.ObserveBlock(string(n.platform))
			n.logger.Error("blocked by target site", zap.Int("attempt", attempt+1))
			if attempt == n.cfg.MaxRetries-1 {
				return fmt.Errorf("navigate %s: %w", rawURL, scraper.ErrBlocked)
			}
			if err := n.sleep(ctx, time.Minute); err != nil {
				return err
			}
			if err := n.rotate(ctx); err != nil {
				return err
			}

		case outcomeFailed:
			lastErr = attemptErr
			n.logger.Error("navigation attempt failed",
				zap.Int("attempt", attempt+1), zap.Error(attemptErr))
			if attempt == n.cfg.MaxRetries-1 {
				return fmt.Errorf("navigate %s: %w: %v", rawURL, scraper.ErrNavigationFailed, attemptErr)
			}
			wait := time.Duration(attempt+1) * 5 * time.Second
			if err := n.sleep(ctx, wait); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("navigate %s: retries exhausted: %w", rawURL, lastErr)
}

// attempt runs a single navigation and classifies the result.
func (n *RetryNavigator) attempt(ctx context.Context, rawURL string) (outcome, error) {
	info, err := n.browser.Navigate(ctx, rawURL, n.cfg.Wait, n.cfg.NavTimeout)
	if err != nil {
		return outcomeFailed, err
	}
	switch info.StatusCode {
	case http.StatusTooManyRequests:
		return outcomeRateLimited, nil
	case http.StatusForbidden:
		return outcomeBlocked, nil
	}
	content, err := n.browser.Content(ctx)
	if err != nil {
		return outcomeFailed, err
	}
	if isBlockedContent(content) {
		return outcomeBlocked, nil
	}
	return outcomeSuccess, nil
}

func (n *RetryNavigator) rotate(ctx context.Context) error {
	metrics.ObserveSessionRotation(string(n.platform))
	if err := n.browser.Rotate(ctx); err != nil {
		return fmt.Errorf("session rotation: %w", err)
	}
	return nil
}

func (n *RetryNavigator) postNavigationDelay(ctx context.Context) error {
	span := n.cfg.DelayMax - n.cfg.DelayMin
	d := n.cfg.DelayMin
	if span > 0 {
		d += time.Duration(n.rng.Int63n(int64(span)))
	}
	return n.sleep(ctx, d)
}

// isBlockedContent reports whether page content looks like a block page.
func isBlockedContent(content string) bool {
	lower := strings.ToLower(content)
	for _, indicator := range blockIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
