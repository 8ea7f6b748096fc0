package viewer_test

import (
	"testing"

	"github.com/signalnine/flakebench/internal/viewer"
	"github.com/stretchr/testify/assert"
)

func TestForPlatform(t *testing.T) {
	tests := []struct {
		goos string
		want viewer.Opener
	}{
		{"darwin", viewer.CommandOpener{Name: "open"}},
		{"linux", viewer.CommandOpener{Name: "xdg-open"}},
		{"freebsd", viewer.CommandOpener{Name: "xdg-open"}},
		{"windows", viewer.CommandOpener{Name: "rundll32", Args: []string{"url.dll,FileProtocolHandler"}}},
		{"plan9", viewer.Unsupported{GOOS: "plan9"}},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			assert.Equal(t, tt.want, viewer.ForPlatform(tt.goos))
		})
	}
}

func TestUnsupportedFails(t *testing.T) {
	err := viewer.ForPlatform("js").Open("report.png")
	assert.ErrorContains(t, err, "js")
}

func TestCommandOpenerMissingProgram(t *testing.T) {
	err := viewer.CommandOpener{Name: "flakebench-no-such-viewer"}.Open("report.png")
	assert.Error(t, err)
}

func TestNop(t *testing.T) {
	assert.NoError(t, viewer.Nop{}.Open("anything"))
}
