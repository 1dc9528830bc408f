package scraper

import "time"

// SystemClock is the Clock used outside tests.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
