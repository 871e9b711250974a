package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func TestNew_JSONWithServiceAttr(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "info", Output: &buf, Service: "reservo"})

	log.Info("server started", "port", "8080")

	var record map[string]any
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("expected JSON output by default, got %q: %v", buf.String(), err)
	}
	if record["service"] != "reservo" {
		t.Errorf("expected service attribute, got %v", record["service"])
	}
	if record["msg"] != "server started" || record["port"] != "8080" {
		t.Errorf("unexpected record: %v", record)
	}
}

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "error", Output: &buf})

	log.Info("noise")
	log.Error("failure")

	out := buf.String()
	if strings.Contains(out, "noise") {
		t.Error("info record emitted at error level")
	}
	if !strings.Contains(out, "failure") {
		t.Error("error record missing")
	}
}

func TestNew_TextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: Text, Output: &buf})

	log.Info("hello")

	if !strings.Contains(buf.String(), "msg=hello") {
		t.Errorf("expected text output, got %q", buf.String())
	}
}
