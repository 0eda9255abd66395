package buildinfo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextVersion(t *testing.T) {
	tests := []struct {
		name string
		ctx  *Context
		want string
	}{
		{name: "nil context", ctx: nil, want: UnknownValue},
		{name: "empty version", ctx: NewContext("", "2026-01-01"), want: UnknownValue},
		{name: "valid version", ctx: NewContext("1.2.0", "2026-01-01"), want: "1.2.0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ctx.GetVersion())
		})
	}
}

func TestContextRelease(t *testing.T) {
	assert.Equal(t, "nutrisnap@1.2.0", NewContext("1.2.0", "").Release())
	assert.Equal(t, "nutrisnap@unknown", (*Context)(nil).Release())
	assert.Equal(t, "1.2.0 (built unknown)", NewContext("1.2.0", "").String())
}
