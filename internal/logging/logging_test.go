package logging

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

// captureLogOutput captures log output for testing by temporarily
// redirecting the logger to write to a buffer.
func captureLogOutput(f func()) string {
	var buf bytes.Buffer

	oldLogger := defaultLogger
	handler := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	defaultLogger = slog.New(handler)

	f()

	defaultLogger = oldLogger
	return buf.String()
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name   string
		level  Level
		format Format
	}{
		{"Debug level JSON format", LevelDebug, FormatJSON},
		{"Info level JSON format", LevelInfo, FormatJSON},
		{"Warn level JSON format", LevelWarn, FormatJSON},
		{"Error level JSON format", LevelError, FormatJSON},
		{"Info level Text format", LevelInfo, FormatText},
		{"Debug level Text format", LevelDebug, FormatText},
		{"Auto format", LevelInfo, FormatAuto},
		{"Default level (invalid value)", Level(999), FormatJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			InitLogger(tt.level, tt.format)
			if GetLogger() == nil {
				t.Error("Expected logger to be initialized, got nil")
			}
		})
	}

	InitLogger(LevelInfo, FormatJSON)
}

func TestNewOperationID(t *testing.T) {
	a := NewOperationID()
	b := NewOperationID()
	if a == "" || b == "" {
		t.Fatal("expected non-empty operation IDs")
	}
	if a == b {
		t.Error("expected distinct operation IDs across calls")
	}
}

func TestWithOperationID(t *testing.T) {
	ctx := WithOperationID(context.Background(), "op-123")
	if got := GetOperationID(ctx); got != "op-123" {
		t.Errorf("GetOperationID() = %q, want %q", got, "op-123")
	}
	if got := GetOperationID(context.Background()); got != "" {
		t.Errorf("GetOperationID() on bare context = %q, want empty", got)
	}
}

func TestLoggerFromContext(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	ctx := WithOperationID(context.Background(), "op-456")
	if LoggerFromContext(ctx) == nil {
		t.Error("expected non-nil logger")
	}
	if LoggerFromContext(context.Background()) == nil {
		t.Error("expected non-nil logger for bare context")
	}
}

func TestLoggingFunctions(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)

	tests := []struct {
		name string
		fn   func()
	}{
		{"Debug", func() { Debug("debug message", "key", "value") }},
		{"Info", func() { Info("info message", "key", "value") }},
		{"Warn", func() { Warn("warning message", "key", "value") }},
		{"Error", func() { Error("error message", "key", "value") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if captureLogOutput(tt.fn) == "" {
				t.Error("Expected log output, got empty string")
			}
		})
	}
}

func TestContextLoggingFunctions(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	ctx := WithOperationID(context.Background(), "op-ctx")

	tests := []struct {
		name string
		fn   func()
	}{
		{"DebugContext", func() { DebugContext(ctx, "debug message") }},
		{"InfoContext", func() { InfoContext(ctx, "info message") }},
		{"WarnContext", func() { WarnContext(ctx, "warning message") }},
		{"ErrorContext", func() { ErrorContext(ctx, "error message") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := captureLogOutput(tt.fn)
			if output == "" {
				t.Error("Expected log output, got empty string")
			}
			if !strings.Contains(output, "op-ctx") {
				t.Error("Expected output to contain operation ID")
			}
		})
	}
}

func TestDatabaseOpened(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	output := captureLogOutput(func() {
		DatabaseOpened(context.Background(), "/tmp/test.db", 4096*100, 4096, 100)
	})
	for _, want := range []string{"database_opened", "/tmp/test.db", "page_count"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q, got %q", want, output)
		}
	}
}

func TestPageFault(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	output := captureLogOutput(func() {
		PageFault(context.Background(), 7)
	})
	if !strings.Contains(output, "page_fault") {
		t.Error("expected page_fault event")
	}
}

func TestCorruptPage(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	output := captureLogOutput(func() {
		CorruptPage(context.Background(), 42, "cell pointer out of bounds")
	})
	for _, want := range []string{"corrupt_page", "42", "cell pointer out of bounds"} {
		if !strings.Contains(output, want) {
			t.Errorf("expected output to contain %q", want)
		}
	}
}

func TestSchemaLoaded(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	output := captureLogOutput(func() {
		SchemaLoaded(context.Background(), 3, 1, 5*time.Millisecond)
	})
	if !strings.Contains(output, "schema_loaded") {
		t.Error("expected schema_loaded event")
	}
}

func TestWALFrameIndexed(t *testing.T) {
	InitLogger(LevelInfo, FormatJSON)
	output := captureLogOutput(func() {
		WALFrameIndexed(context.Background(), 12, 4096*12, 100)
	})
	if !strings.Contains(output, "wal_frame_indexed") {
		t.Error("expected wal_frame_indexed event")
	}
}

func TestCacheEvicted(t *testing.T) {
	InitLogger(LevelDebug, FormatJSON)
	output := captureLogOutput(func() {
		CacheEvicted(context.Background(), 9, 500)
	})
	if !strings.Contains(output, "cache_evicted") {
		t.Error("expected cache_evicted event")
	}
}

func TestInit(t *testing.T) {
	if defaultLogger == nil {
		t.Error("Expected defaultLogger to be initialized by init()")
	}
}

func TestLevelConstants(t *testing.T) {
	if LevelDebug >= LevelInfo || LevelInfo >= LevelWarn || LevelWarn >= LevelError {
		t.Error("expected LevelDebug < LevelInfo < LevelWarn < LevelError")
	}
}

func TestFormatConstants(t *testing.T) {
	if FormatJSON == FormatText {
		t.Error("Expected FormatJSON != FormatText")
	}
}
