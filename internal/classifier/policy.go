package classifier

import (
	"fmt"
	"time"

	"github.com/nutrisnap/nutrisnap/internal/conf"
)

// LoadPolicy decides whether a failed load is attempted again
type LoadPolicy interface {
	// ShouldRetry reports whether a new load may start at now, given the
	// time of the last failure.
	ShouldRetry(failedAt, now time.Time) bool
	String() string
}

// RetryEveryCall attempts a new load on every inference while unavailable.
// Each request pays the load failure cost again.
type RetryEveryCall struct{}

func (RetryEveryCall) ShouldRetry(time.Time, time.Time) bool { return true }
func (RetryEveryCall) String() string                        { return conf.LoadPolicyRetryEveryCall }

// CacheFailureForDuration remembers a failure for TTL before loading again
type CacheFailureForDuration struct {
	TTL time.Duration
}

func (p CacheFailureForDuration) ShouldRetry(failedAt, now time.Time) bool {
	return now.Sub(failedAt) >= p.TTL
}

func (p CacheFailureForDuration) String() string {
	return fmt.Sprintf("%s(%s)", conf.LoadPolicyCacheFailure, p.TTL)
}

// PolicyFromSettings maps the configured policy name to a LoadPolicy
func PolicyFromSettings(name string, ttl time.Duration) LoadPolicy {
	if name == conf.LoadPolicyCacheFailure {
		return CacheFailureForDuration{TTL: ttl}
	}
	return RetryEveryCall{}
}
