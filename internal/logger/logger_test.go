package logger

import (
	"errors"
	"testing"
)

func TestGetReturnsStableLogger(t *testing.T) {
	first := Get()
	second := Get()
	if first == nil {
		t.Fatal("Expected a non-nil logger")
	}
	if first != second {
		t.Error("Expected Get to return the same logger instance")
	}
}

func TestLevelHelpers(t *testing.T) {
	// The helpers chain level methods off Get; exercising each one
	// guards the logger wiring end to end.
	Info("info message", "key", "value")
	Warn("warn message", "count", 3)
	Debug("debug message")
	Error("error message", errors.New("boom"), "key", "value")
}

func TestSetDebug(t *testing.T) {
	SetDebug()
	Debug("visible at debug level")
}
