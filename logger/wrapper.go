package logger

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime/debug"
	"strings"

	"github.com/rs/zerolog"
)

// Supervise runs a child process, forwards its JSON log lines from stderr to out
// and turns a Go panic dump into one structured error event. It returns the
// child's exit code.
func Supervise(out io.Writer, executable string, arg ...string) int {
	svLogger := NewLogger("Supervisor")
	defer handlePanic(svLogger)

	r, w, err := os.Pipe()
	if err != nil {
		svLogger.Error().Err(err).Msg("Could not create pipe for logs")
		return 1
	}

	cmd := exec.Command(executable, arg...)
	cmd.Stderr = w
	if err = cmd.Start(); err != nil {
		svLogger.Error().Err(err).Msg("Could not launch main process")
		return 1
	}
	// the child holds its own copy of the write end
	_ = w.Close()

	collected := make(chan string)
	go func() {
		defer handlePanic(svLogger)
		collected <- forwardLogs(r, out, svLogger)
	}()
	panicLogs := <-collected
	exitCode := exitCodeOf(cmd.Wait())
	_ = r.Close()

	if exitCode == 0 {
		svLogger.Info().Msg("Exited with code 0")
		return 0
	}
	svLogger.Error().
		Err(errors.New(panicLogs)).
		Msgf("Panicked and exited with code: %d", exitCode)
	return exitCode
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}

// forwardLogs copies log lines until EOF and returns everything after the first panic line.
func forwardLogs(r io.Reader, out io.Writer, svLogger zerolog.Logger) string {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	panicLogs := strings.Builder{}
	foundPanic := false
	for scanner.Scan() {
		foundPanic = handleLogLine(scanner.Bytes(), foundPanic, &panicLogs, out, svLogger)
	}
	if err := scanner.Err(); err != nil {
		svLogger.Error().Err(err).Msg("Error scanning piped main process's Stderr")
	}
	return panicLogs.String()
}

func handleLogLine(line []byte, foundPanic bool, builder *strings.Builder, out io.Writer, svLogger zerolog.Logger) bool {
	text := string(line)
	if !foundPanic && strings.HasPrefix(text, "panic") {
		foundPanic = true
	}
	switch {
	case len(line) == 0:
	case foundPanic:
		builder.WriteString(text)
		builder.WriteByte('\n')
	case isJSON(line):
		fmt.Fprintln(out, text)
	default:
		svLogger.Warn().Str("line", text).Msg("Got log line that is not JSON formatted")
	}
	return foundPanic
}

func handlePanic(svLogger zerolog.Logger) {
	r := recover()
	if r == nil {
		return
	}
	svLogger.Error().
		Caller().
		Str("error", fmt.Sprint(r)).
		Str("stack_trace", string(debug.Stack())).
		Msg("Supervisor panicked")
}

func isJSON(b []byte) bool {
	var js json.RawMessage
	err := json.Unmarshal(b, &js)
	return err == nil && js != nil
}
