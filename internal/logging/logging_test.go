package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestPreInitLoggerUsesConfiguredHandler(t *testing.T) {
	logger := L("engine")

	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger.Info("tick", "bindings", 3)

	out := buf.String()
	if strings.Contains(out, `msg="INFO tick`) {
		t.Fatalf("unexpected nested severity prefix in message: %s", out)
	}
	if !strings.Contains(out, "msg=tick") {
		t.Fatalf("expected plain tick message, got: %s", out)
	}
	if !strings.Contains(out, "component=engine") {
		t.Fatalf("expected component field, got: %s", out)
	}
	if !strings.Contains(out, "bindings=3") {
		t.Fatalf("expected bindings field, got: %s", out)
	}
}

func TestPreInitLoggerRespectsConfiguredLevel(t *testing.T) {
	logger := L("engine")

	var buf bytes.Buffer
	Init("text", "warn", &buf)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Fatalf("info log should be filtered at warn level: %s", out)
	}
	if !strings.Contains(out, "shown") {
		t.Fatalf("warn log should be emitted: %s", out)
	}
}

func TestWithBindingAttachesCorrelationFields(t *testing.T) {
	var buf bytes.Buffer
	Init("text", "info", &buf)

	logger := WithBinding(L("dispatch"), "pb-123", "CPU")
	logger.Info("state transition", "from", "Inactive", "to", "Active")

	out := buf.String()
	if !strings.Contains(out, "policyId=pb-123") {
		t.Fatalf("expected policyId field, got: %s", out)
	}
	if !strings.Contains(out, "conditionKind=CPU") {
		t.Fatalf("expected conditionKind field, got: %s", out)
	}
}
