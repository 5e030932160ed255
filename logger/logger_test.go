package logger

import (
	"bytes"
	"os/exec"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, ParseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, ParseLevel(LOG_LEVEL_WARN))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestNewLoggerReadsLevel(t *testing.T) {
	t.Setenv(LogLevelEnv, LOG_LEVEL_ERROR)
	l := NewLogger("test")
	assert.False(t, l.Warn().Enabled())
	assert.True(t, l.Error().Enabled())
}

func TestForwardLogs(t *testing.T) {
	input := strings.Join([]string{
		`{"level_name":"info","message":"started"}`,
		"plain text",
		"",
		"panic: boom",
		"goroutine 1 [running]:",
		`{"after":"panic"}`,
	}, "\n")
	var out bytes.Buffer
	panicLogs := forwardLogs(strings.NewReader(input), &out, zerolog.Nop())

	assert.Equal(t, `{"level_name":"info","message":"started"}`+"\n", out.String())
	assert.Equal(t, "panic: boom\ngoroutine 1 [running]:\n{\"after\":\"panic\"}\n", panicLogs)
}

func TestSupervise(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	var out bytes.Buffer
	code := Supervise(&out, "sh", "-c", `echo '{"message":"hi"}' >&2; exit 3`)
	assert.Equal(t, 3, code)
	assert.Equal(t, `{"message":"hi"}`+"\n", out.String())

	assert.Equal(t, 0, Supervise(&out, "sh", "-c", "exit 0"))
}
