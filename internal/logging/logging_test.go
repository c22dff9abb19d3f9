package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"hello-world-api/internal/config"
)

func TestNewWritesConsoleAndJSONFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "app.log")
	var console bytes.Buffer

	log, err := newLogger(config.Log{Level: "info", File: file}, false, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug("hidden")
	log.Info("quiz submitted")
	_ = log.Sync()

	if !strings.Contains(console.String(), "quiz submitted") || strings.Contains(console.String(), "hidden") {
		t.Fatalf("unexpected console output %q", console.String())
	}
	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(bytes.SplitN(data, []byte("\n"), 2)[0], &entry); err != nil {
		t.Fatalf("expected JSON line, got %q: %v", data, err)
	}
	if entry["msg"] != "quiz submitted" || entry["level"] != "INFO" {
		t.Fatalf("unexpected entry %v", entry)
	}
}

func TestDebugOverridesLevel(t *testing.T) {
	var console bytes.Buffer
	log, err := newLogger(config.Log{Level: "error"}, true, &console)
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}
	log.Debug("visible")
	if !strings.Contains(console.String(), "visible") {
		t.Fatalf("expected debug entry in debug mode")
	}
}

func TestRejectsUnknownLevel(t *testing.T) {
	if _, err := New(config.Log{Level: "chatty"}, false); err == nil {
		t.Fatalf("expected level parse error")
	}
}
