package cache

import "time"

// TimeUntilNextBoundary returns the time from now until the next multiple of
// period since the Unix epoch, the moment the next candle of that period opens.
// It is always in (0, period]. A non-positive period yields 0.
func TimeUntilNextBoundary(now time.Time, period time.Duration) time.Duration {
	if period <= 0 {
		return 0
	}
	elapsed := time.Duration(now.UnixNano() % int64(period))
	if elapsed < 0 {
		elapsed += period
	}
	return period - elapsed
}
