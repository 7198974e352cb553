package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func newTestLogger(buf *bytes.Buffer, level Level, format Format) *stdLogger {
	l := New(Options{Level: level, Format: format, App: "portal", Out: buf}).(*stdLogger)
	l.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	return l
}

func TestLogger_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, Info, FormatText)

	l.Info("saved", Fields{"sheet": "FARMACI", "rows": 3})

	got := strings.TrimSpace(buf.String())
	want := "app=portal level=info msg=saved rows=3 sheet=FARMACI ts=2024-01-02T03:04:05Z"
	if got != want {
		t.Errorf("got %q\nwant %q", got, want)
	}
}

func TestLogger_JSONFormatAndWith(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, Debug, FormatJSON)

	l.With(Fields{"request_id": "abc"}).Error("failed", Fields{"err": errors.New("boom")})

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if entry["request_id"] != "abc" {
		t.Errorf("expected request_id field, got %v", entry["request_id"])
	}
	if entry["err"] != "boom" {
		t.Errorf("expected error to be rendered as string, got %v", entry["err"])
	}
	if entry["level"] != "error" {
		t.Errorf("expected level error, got %v", entry["level"])
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	l := newTestLogger(&buf, Warn, FormatText)

	l.Debug("debug", nil)
	l.Info("info", nil)
	if buf.Len() != 0 {
		t.Errorf("expected nothing below warn, got %q", buf.String())
	}

	l.Warn("warn", nil)
	if !strings.Contains(buf.String(), "msg=warn") {
		t.Errorf("expected warn line, got %q", buf.String())
	}
}

func TestParseLevelAndFormat(t *testing.T) {
	tests := map[string]Level{"debug": Debug, "": Info, "WARNING": Warn, "error": Error, "bogus": Info}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
	if ParseFormat(" JSON ") != FormatJSON || ParseFormat("text") != FormatText {
		t.Error("ParseFormat mismatch")
	}
}
