package ble

import "time"

// backoffDelay returns the retry delay for attempt n, capped at maxSeconds.
func backoffDelay(attempt int, maxSeconds int) time.Duration {
	delay := time.Duration(1<<uint(min(attempt, 16))) * time.Second
	limit := time.Duration(maxSeconds) * time.Second
	if delay > limit {
		return limit
	}
	return delay
}
