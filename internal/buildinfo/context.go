// Package buildinfo holds build-time metadata that is not part of user configuration
package buildinfo

import "fmt"

// UnknownValue is reported for metadata that was not injected at build time
const UnknownValue = "unknown"

// Context contains values injected through -ldflags at build time
type Context struct {
	// Version holds the git version tag
	Version string

	// BuildDate is the time the binary was built
	BuildDate string
}

// NewContext creates a build context
func NewContext(version, buildDate string) *Context {
	return &Context{Version: version, BuildDate: buildDate}
}

// GetVersion returns the version or UnknownValue
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// Release returns the release identifier used by error telemetry
func (c *Context) Release() string {
	return fmt.Sprintf("nutrisnap@%s", c.GetVersion())
}

// String implements fmt.Stringer
func (c *Context) String() string {
	return fmt.Sprintf("%s (built %s)", c.GetVersion(), c.GetBuildDate())
}
