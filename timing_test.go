package main

import (
	"bufio"
	"bytes"
	"regexp"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureStdout redirects console output of the timing helpers for one test.
func captureStdout(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	prev := stdout
	stdout = &buf
	t.Cleanup(func() { stdout = prev })
	return &buf
}

func TestTicTocDisabled(t *testing.T) {
	console := captureStdout(t)
	var log bytes.Buffer

	start, ok := Tic(false)
	assert.False(t, ok)
	assert.True(t, start.IsZero())

	elapsed, ok := Toc(start, "region", false, &log)
	assert.False(t, ok)
	assert.Zero(t, elapsed)
	assert.Empty(t, console.String())
	assert.Empty(t, log.String())
}

func TestTocPrintsToConsole(t *testing.T) {
	console := captureStdout(t)

	start, ok := Tic(true)
	require.True(t, ok)
	time.Sleep(2 * time.Millisecond)
	elapsed, ok := Toc(start, "forward", true, nil)

	require.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, 2.0)
	assert.Regexp(t, regexp.MustCompile(`^forward {23} EP: \d+\.\d{2} ms\n$`), console.String())
}

func TestTocWritesToLogOnly(t *testing.T) {
	console := captureStdout(t)
	var log bytes.Buffer

	start, _ := Tic(true)
	_, ok := Toc(start, "backward", true, &log)

	require.True(t, ok)
	assert.Empty(t, console.String())
	assert.Regexp(t, `^backward\s+EP: \d+\.\d{2} ms\n$`, log.String())
}

func TestPrintLog(t *testing.T) {
	console := captureStdout(t)
	var log bytes.Buffer

	require.NoError(t, PrintLog("first", &log))
	require.NoError(t, PrintLog("progress ", &log, WithSameLine()))
	require.NoError(t, PrintLog("quiet", &log, WithoutDisplay()))

	assert.Equal(t, "first\nprogress ", console.String())
	assert.Equal(t, "first\nprogress quiet\n", log.String())
}

func TestPrintLogFlushesBufferedLog(t *testing.T) {
	captureStdout(t)
	var sink bytes.Buffer
	w := bufio.NewWriter(&sink)

	require.NoError(t, PrintLog("line", w, WithoutDisplay()))
	assert.Equal(t, "line\n", sink.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestPrintLogWriteError(t *testing.T) {
	captureStdout(t)
	err := PrintLog("x", failingWriter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
}
