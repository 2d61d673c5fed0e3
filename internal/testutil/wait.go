package testutil

import "time"

// Polling bounds for assertions on asynchronous delivery
const (
	EventuallyTimeout = 2 * time.Second
	EventuallyTick    = 10 * time.Millisecond
)
