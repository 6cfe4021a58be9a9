package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestOptionsConfig(t *testing.T) {
	cfg := Options{}.config()
	if cfg.Encoding != "console" {
		t.Fatalf("expected console encoding, got %q", cfg.Encoding)
	}
	if cfg.Level.Level() != zapcore.InfoLevel {
		t.Fatalf("expected info level, got %s", cfg.Level.Level())
	}
	if cfg.OutputPaths[0] != "stdout" {
		t.Fatalf("expected stdout, got %v", cfg.OutputPaths)
	}

	cfg = Options{JSON: true, Debug: true, Stderr: true}.config()
	if cfg.Encoding != "json" {
		t.Fatalf("expected json encoding, got %q", cfg.Encoding)
	}
	if cfg.Level.Level() != zapcore.DebugLevel {
		t.Fatalf("expected debug level, got %s", cfg.Level.Level())
	}
	if cfg.OutputPaths[0] != "stderr" {
		t.Fatalf("expected stderr, got %v", cfg.OutputPaths)
	}
	if cfg.EncoderConfig.MessageKey != "step" {
		t.Fatalf("unexpected message key %q", cfg.EncoderConfig.MessageKey)
	}
}

func TestNew(t *testing.T) {
	log, err := New(Options{Stderr: true})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if log == nil {
		t.Fatal("expected a logger")
	}
}
