//go:build ruleguard

package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// TestingContext suggests t.Context() over root contexts in tests so work
// is cancelled when the test ends.
func TestingContext(m dsl.Matcher) {
	m.Match(
		`$ctx := context.Background()`,
		`$ctx = context.Background()`,
		`$ctx := context.TODO()`,
		`$ctx = context.TODO()`,
		`$fn(context.Background(), $*args)`,
		`$fn(context.TODO(), $*args)`,
	).
		Where(m.File().Name.Matches(`_test\.go$`)).
		Report("in tests, use t.Context() instead of a root context")
}

// BenchmarkLoop suggests b.Loop() over iterating b.N.
func BenchmarkLoop(m dsl.Matcher) {
	m.Match(
		`for $i := 0; $i < $b.N; $i++ { $*body }`,
		`for $i := range $b.N { $*body }`,
	).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }; declare $i separately if the body needs it")

	m.Match(`for range $b.N { $*body }`).
		Where(m["b"].Type.Is("*testing.B")).
		Report("use for $b.Loop() { ... }").
		Suggest("for $b.Loop() { $body }")
}

// RequireErrorCheck flags assert.NoError on setup errors followed by use of
// the result, which panics on failure instead of stopping the test.
func RequireErrorCheck(m dsl.Matcher) {
	m.Match(`$x, $err := $f($*args); assert.NoError($t, $err)`).
		Report("use require.NoError when the result of $f is used afterwards")
}
