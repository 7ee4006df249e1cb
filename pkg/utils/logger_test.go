package utils

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func TestNewLoggerFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	logger, err := NewLogger(LogConfig{
		Level:        "debug",
		Format:       "json",
		FileLocation: path,
	}, "subsentry", "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("sink check")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	var entry map[string]any
	if err := json.Unmarshal(data, &entry); err != nil {
		t.Fatalf("parse log entry %q: %v", data, err)
	}
	if entry["message"] != "sink check" {
		t.Errorf("message = %v", entry["message"])
	}
	if entry["service"] != "subsentry" || entry["version"] != "test" {
		t.Errorf("service hook fields missing: %v", entry)
	}
}

func TestNewLoggerCloseWithoutFileSink(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "info", Format: "text", Console: true}, "subsentry", "test")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close without file sink: %v", err)
	}
}
