package logger

import (
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestZapLoggerFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	l := NewWithCore(core)

	l.Info("WorkflowService", "stage started", map[string]interface{}{"session_id": "s-1"})
	l.Error("WorkflowService", "stream failed", map[string]interface{}{"error": errors.New("boom")})
	l.Debug("WorkflowService", "nil details", nil)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("got %d entries, want 3", len(entries))
	}

	fields := entries[0].ContextMap()
	if fields["module"] != "WorkflowService" {
		t.Errorf("module = %v", fields["module"])
	}
	if _, ok := entries[1].ContextMap()["error_ref"]; !ok {
		t.Errorf("error entry missing error_ref: %v", entries[1].ContextMap())
	}
}
