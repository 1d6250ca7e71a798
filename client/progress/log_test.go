package progress_test

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/netlabworks/netlab/client/progress"
)

func newBufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestLogLifecycle(t *testing.T) {
	logger, buf := newBufLogger()
	meter := progress.NewLog(logger)

	meter.Start("q1", "Waiting for http://controller.lab:3080", nil)
	meter.Progress("q1", 512, 1024)
	meter.End("q1")

	out := buf.String()
	for _, want := range []string{"query started", "transferring", "query ended", "q1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestLogProgressRateLimited(t *testing.T) {
	logger, buf := newBufLogger()
	meter := progress.NewLog(logger)

	// Only the first report and the final (transferred == total) one
	// should be logged inside a one second window.
	meter.Progress("q1", 100, 1000)
	meter.Progress("q1", 200, 1000)
	meter.Progress("q1", 300, 1000)
	meter.Progress("q1", 1000, 1000)

	if got := strings.Count(buf.String(), "transferring"); got != 2 {
		t.Errorf("expected 2 progress lines, got %d:\n%s", got, buf.String())
	}
}

func TestLogEndIsRepeatable(t *testing.T) {
	logger, _ := newBufLogger()
	meter := progress.NewLog(logger)

	// End may arrive twice for one query: once from cancellation, once
	// from normal completion.
	meter.End("q1")
	meter.End("q1")
}

func TestLogUnknownTotal(t *testing.T) {
	logger, buf := newBufLogger()
	meter := progress.NewLog(logger)

	meter.Progress("q1", 4096, -1)

	out := buf.String()
	if !strings.Contains(out, "transferring") {
		t.Errorf("expected a progress line:\n%s", out)
	}
	if strings.Contains(out, "progress=") {
		t.Errorf("percentage should be omitted when total is unknown:\n%s", out)
	}
}
