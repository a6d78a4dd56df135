package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer

	logger, err := Setup("debug", "json", &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Info("hello", "model", "gpt-4o")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("output is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "hello" || entry["model"] != "gpt-4o" {
		t.Errorf("entry = %v, want msg and model fields", entry)
	}
}

func TestSetupText(t *testing.T) {
	var buf bytes.Buffer

	logger, err := Setup("info", "text", &buf)
	if err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	logger.Debug("hidden")
	logger.Warn("visible")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("debug entry logged at info level")
	}
	if !strings.Contains(out, "visible") {
		t.Error("warn entry missing")
	}
}

func TestSetupInvalid(t *testing.T) {
	if _, err := Setup("loud", "json", nil); err == nil {
		t.Error("Setup() with bad level: expected error")
	}
	if _, err := Setup("info", "xml", nil); err == nil {
		t.Error("Setup() with bad format: expected error")
	}
}
