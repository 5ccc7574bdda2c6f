package logger

import (
	"context"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_Environments(t *testing.T) {
	for _, env := range []string{"prod", "local", "dev", "docker"} {
		if _, err := NewLogger(env, ""); err != nil {
			t.Errorf("env %s: %v", env, err)
		}
	}
	if _, err := NewLogger("staging", ""); err == nil {
		t.Error("unknown environment must be rejected")
	}
}

func TestNewLogger_LevelOverride(t *testing.T) {
	l, err := NewLogger("prod", "debug")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(zapcore.DebugLevel) {
		t.Error("debug override not applied")
	}

	if _, err := NewLogger("prod", "verbose"); err == nil {
		t.Error("invalid level must be rejected")
	}
}

func TestFromContext(t *testing.T) {
	stored := zap.NewNop().With(zap.String("request_id", "req-1"))
	ctx := ContextWithLogger(context.Background(), stored)
	if FromContext(ctx) != stored {
		t.Error("stored logger not returned")
	}
	if FromContext(context.Background()) == nil {
		t.Error("missing logger must yield a usable fallback")
	}
}
