package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestLoggerInit(t *testing.T) {
	if err := Init(); err != nil {
		t.Fatalf("failed to initialize logger: %v", err)
	}
	defer func() {
		if err := Sync(); err != nil {
			t.Errorf("failed to sync logger: %v", err)
		}
	}()

	if Get() == nil {
		t.Fatal("logger is nil after initialization")
	}

	if err := Init(WithFormat("xml")); err == nil {
		t.Fatal("expected error for unknown format")
	}
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithFormat("json"), WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	SetLevel(0)
	defer SetLevel(0)

	Named("store").Named("persist").Info(context.Background(), "snapshot written",
		Int("counters", 3),
		Bool("flushed", true),
		Error(errors.New("boom")),
	)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "snapshot written" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["logger"] != "store.persist" {
		t.Errorf("unexpected logger name: %v", entry["logger"])
	}
	if entry["counters"] != float64(3) {
		t.Errorf("unexpected counters field: %v", entry["counters"])
	}
	src, _ := entry["source"].(string)
	if !strings.Contains(src, "logger_test.go") {
		t.Errorf("source should point at the caller, got %q", src)
	}
}

func TestSetLevelString(t *testing.T) {
	tests := []struct {
		in      string
		wantErr bool
	}{
		{"debug", false},
		{"INFO", false},
		{"", false},
		{"warning", false},
		{"warn", false},
		{"error", false},
		{"verbose", true},
	}
	for _, tt := range tests {
		err := SetLevelString(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("SetLevelString(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
	}
	_ = SetLevelString("info")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	if err := Init(WithOutput(&buf)); err != nil {
		t.Fatalf("init: %v", err)
	}
	_ = SetLevelString("warn")
	defer func() { _ = SetLevelString("info") }()

	Get().Debug(context.Background(), "hidden")
	Get().Info(context.Background(), "hidden too")
	if buf.Len() != 0 {
		t.Fatalf("expected nothing below warn, got %q", buf.String())
	}
	Get().Warn(context.Background(), "visible")
	if !strings.Contains(buf.String(), "visible") {
		t.Fatalf("expected warn line, got %q", buf.String())
	}
}

func TestNop(t *testing.T) {
	l := Nop().Named("x")
	l.Info(context.Background(), "discarded", String("k", "v"))
	l.Error(context.Background(), "discarded")
}
