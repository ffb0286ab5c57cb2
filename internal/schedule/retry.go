package schedule

import (
	"fmt"
	"time"
)

// RetryPolicy is a fixed-delay backoff applied to one class of failure.
// A nil RetryIf retries every error.
type RetryPolicy struct {
	Name    string
	Delay   time.Duration
	RetryIf func(error) bool
}

// ShouldRetry reports whether err is covered by the policy.
func (p RetryPolicy) ShouldRetry(err error) bool {
	if err == nil {
		return false
	}
	if p.RetryIf == nil {
		return true
	}
	return p.RetryIf(err)
}

func (p RetryPolicy) String() string {
	return fmt.Sprintf("%s(%s)", p.Name, p.Delay)
}

// LookupPolicy governs geocoding, sun-times and stream handle failures.
func LookupPolicy(delay time.Duration) RetryPolicy {
	return RetryPolicy{Name: "lookup", Delay: delay}
}

// FramePolicy governs single-frame acquisition failures.
func FramePolicy(delay time.Duration) RetryPolicy {
	return RetryPolicy{Name: "frame", Delay: delay}
}
