package logger

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"loud":  slog.LevelInfo,
	}
	for in, want := range cases {
		if got := ParseLevel(in); got != want {
			t.Fatalf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestEnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")
	var buf bytes.Buffer
	lg := NewWithWriter(&buf, "debug")
	if lg.Enabled(context.Background(), slog.LevelWarn) {
		t.Fatalf("LOG_LEVEL=error must disable warn")
	}
	lg.Error("boom")
	if !bytes.Contains(buf.Bytes(), []byte(`"msg":"boom"`)) {
		t.Fatalf("expected JSON record, got %s", buf.String())
	}
}
