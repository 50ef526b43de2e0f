package logger

import (
	"bytes"
	stdlog "log"
	"strings"
	"testing"

	zlog "github.com/rs/zerolog/log"

	"pkg.jsn.cam/logmate/internal/config"
)

func TestInitWriter_JSONFields(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(config.LoggingConfig{Level: "debug", Service: "logmate", Instance: "test-1"}, &buf)

	zlog.Debug().Str("component", "worker").Msg("hello")

	out := buf.String()
	for _, want := range []string{`"level":"debug"`, `"service":"logmate"`, `"instance":"test-1"`, `"component":"worker"`, `"message":"hello"`} {
		if !strings.Contains(out, want) {
			t.Errorf("log line %q missing %s", out, want)
		}
	}
}

func TestInitWriter_Level(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(config.LoggingConfig{Level: "warn"}, &buf)

	zlog.Info().Msg("dropped")
	zlog.Warn().Msg("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("info line written at warn level: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestInitWriter_RedirectsStdlib(t *testing.T) {
	var buf bytes.Buffer
	InitWriter(config.LoggingConfig{Level: "info"}, &buf)

	stdlog.Print("from the standard logger")

	if !strings.Contains(buf.String(), "from the standard logger") {
		t.Errorf("stdlib log not redirected: %q", buf.String())
	}
}
