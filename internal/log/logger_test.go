package log

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in     string
		want   LogLevel
		wantOK bool
	}{
		{"debug", LevelDebug, true},
		{"INFO", LevelInfo, true},
		{"warning", LevelWarn, true},
		{"Error", LevelError, true},
		{"none", LevelNone, true},
		{"loud", LevelInfo, false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseLevel(tt.in)
			if got != tt.want || ok != tt.wantOK {
				t.Errorf("ParseLevel(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "text")
	defer SetOutput(os.Stderr, "text")
	defer SetLevel(LevelInfo)

	SetLevel(LevelWarn)
	Infof("hidden %d", 1)
	Warnf("shown %d", 2)

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message logged at warn level: %q", out)
	}
	if !strings.Contains(out, "shown 2") {
		t.Errorf("warn message missing: %q", out)
	}

	buf.Reset()
	SetLevel(LevelNone)
	Errorf("nothing")
	if buf.Len() != 0 {
		t.Errorf("expected no output at level none, got %q", buf.String())
	}
}

func TestJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, "json")
	defer SetOutput(os.Stderr, "text")
	SetLevel(LevelDebug)
	defer SetLevel(LevelInfo)

	Infof("directory: refreshed %d devices", 3)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if rec["level"] != "INFO" || rec["msg"] != "directory: refreshed 3 devices" {
		t.Errorf("unexpected record: %v", rec)
	}
}
