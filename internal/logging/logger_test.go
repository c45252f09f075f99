package logging

import (
	"bytes"
	"log"
	"strings"
	"testing"

	"github.com/fatih/color"
)

func TestLoggerRespectsEnabledLevels(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	logger := New(Config{
		ComponentName: "TROUBLESHOOTER",
		Color:         color.FgRed,
		EnabledLevels: []LogLevel{INFO, ERROR},
	})

	logger.Info("diagnosing step %d", 3)
	out := buf.String()
	if !strings.Contains(out, "[TROUBLESHOOTER]") || !strings.Contains(out, "diagnosing step 3") {
		t.Fatalf("expected component name and message in output, got: %s", out)
	}

	buf.Reset()
	logger.Debug("should not appear")
	if buf.Len() != 0 {
		t.Fatalf("expected debug to be suppressed, got: %s", buf.String())
	}
}

func TestWithDebugEnablesDebugLevel(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(nil)

	base := New(Config{ComponentName: "ENGINE"})
	debugLogger := base.WithDebug(true)

	debugLogger.Debug("step detail")
	if !strings.Contains(buf.String(), "step detail") {
		t.Fatalf("expected debug message once enabled, got: %s", buf.String())
	}

	buf.Reset()
	base.Debug("still suppressed on original")
	if buf.Len() != 0 {
		t.Fatalf("expected original logger unaffected, got: %s", buf.String())
	}
}
