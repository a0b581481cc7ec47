package logging

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"SocialPoster/internal/domain"
)

func TestNewWithWriterFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := NewWithWriter(&buf, "info", "json")
	logger.Info("hello", "component", "test")
	if !strings.HasPrefix(buf.String(), "{") {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	logger = NewWithWriter(&buf, "warn", "text")
	logger.Info("dropped")
	logger.Warn("kept")
	out := buf.String()
	if strings.Contains(out, "dropped") || !strings.Contains(out, "msg=kept") {
		t.Fatalf("unexpected text output: %q", out)
	}
}

func TestStepLevel(t *testing.T) {
	t.Parallel()

	cases := map[domain.StepStatus]slog.Level{
		domain.StepSuccess: slog.LevelInfo,
		domain.StepWarning: slog.LevelWarn,
		domain.StepError:   slog.LevelError,
	}
	for status, want := range cases {
		if got := StepLevel(status); got != want {
			t.Errorf("StepLevel(%s) = %v, want %v", status, got, want)
		}
	}
}
