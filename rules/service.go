//go:build ruleguard

// Package gorules contains project lint rules for golangci-lint via ruleguard.
package gorules

import "github.com/quasilyte/go-ruleguard/dsl"

// PrintInService flags direct printing from service packages. Output goes
// through the module logger so it carries the trace id and level.
func PrintInService(m dsl.Matcher) {
	m.Match(
		`fmt.Println($*_)`,
		`fmt.Printf($*_)`,
		`fmt.Print($*_)`,
		`log.Println($*_)`,
		`log.Printf($*_)`,
		`log.Print($*_)`,
	).
		Where(m.File().PkgPath.Matches(`/internal/`) && !m.File().Name.Matches(`_test\.go$`)).
		Report("use the module logger (GetLogger()) instead of printing")

	m.Match(`log.Fatal($*_)`, `log.Fatalf($*_)`, `os.Exit($_)`).
		Where(m.File().PkgPath.Matches(`/internal/`)).
		Report("return an error instead of exiting from a library package")
}

// StdErrorsInService points stdlib error construction to the project errors
// package, which carries component and category for telemetry and status codes.
func StdErrorsInService(m dsl.Matcher) {
	m.Import("errors")

	m.Match(`errors.New($msg)`).
		Where(m.File().PkgPath.Matches(`/internal/`) &&
			!m.File().PkgPath.Matches(`/internal/errors$`) &&
			m.File().Imports("errors")).
		Report("use the internal errors package: errors.NewStd($msg) for sentinels or errors.Newf(...).Component(...).Category(...).Build()")
}

// LogErrorField flags errors logged as generic values; logger.Error keeps the
// "error" key consistent across modules.
func LogErrorField(m dsl.Matcher) {
	m.Import("github.com/nutrisnap/nutrisnap/internal/logger")

	m.Match(`logger.Any($key, $err)`).
		Where(m["err"].Type.Implements("error")).
		Report("use logger.Error($err) for error values").
		Suggest("logger.Error($err)")

	m.Match(`logger.String($key, $err.Error())`).
		Where(m["err"].Type.Implements("error")).
		Report("use logger.Error($err) for error values").
		Suggest("logger.Error($err)")
}

// DetachedRequestContext flags fresh root contexts in request paths, where
// the request context carries the trace id and the client deadline.
func DetachedRequestContext(m dsl.Matcher) {
	m.Match(`context.Background()`, `context.TODO()`).
		Where(m.File().PkgPath.Matches(`/internal/(api|pipeline|resolver|nutrition)`) &&
			!m.File().Name.Matches(`_test\.go$`)).
		Report("derive from the request context; use context.WithoutCancel(ctx) for work that must outlive it")
}
