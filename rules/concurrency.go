//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// WaitGroupGo suggests sync.WaitGroup.Go over Add/Done pairs.
func WaitGroupGo(m dsl.Matcher) {
	m.Match(`go func() { defer $wg.Done(); $*_ }()`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("use $wg.Go(func() { ... }) instead of go func() { defer $wg.Done(); ... }()").
		Suggest("$wg.Go(func() { $*_ })")

	m.Match(`$wg.Add(1)`).
		Where(m["wg"].Type.Is("*sync.WaitGroup")).
		Report("consider $wg.Go(), which calls Add(1) itself")
}

// DeferredTimeSince catches durations evaluated when the defer statement
// runs instead of when the function returns.
func DeferredTimeSince(m dsl.Matcher) {
	m.Match(
		`defer $_.Observe(time.Since($start).Seconds())`,
		`defer $_(time.Since($start))`,
		`defer $_($*_, time.Since($start))`,
		`defer $_($*_, time.Since($start), $*_)`,
	).
		Report("time.Since($start) is evaluated at defer time; wrap the call in func() { ... }()")
}
