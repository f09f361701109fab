package observe

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestObserver_LogWithFields(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := New(buf, true)

	obs.Log().Info().
		Str("store", "pages").
		Int("removed", 3).
		Msg("cleaned up expired entries")

	output := buf.String()
	if !strings.Contains(output, "cleaned up expired entries") {
		t.Errorf("expected output to contain message, got %q", output)
	}
}

func TestObserver_QuietHidesInfo(t *testing.T) {
	buf := &bytes.Buffer{}
	obs := NewJSON(buf, false)

	obs.Log().Info().Msg("hidden")
	obs.Log().Warn().Msg("shown")

	output := buf.String()
	if strings.Contains(output, "hidden") {
		t.Errorf("info record should be filtered at default level, got %q", output)
	}
	if !strings.Contains(output, "shown") {
		t.Errorf("expected warning in output, got %q", output)
	}
}

func TestOrNop(t *testing.T) {
	if OrNop(nil) == nil {
		t.Fatal("OrNop(nil) returned nil")
	}
	obs := Nop()
	if OrNop(obs) != obs {
		t.Error("OrNop should return the given observer")
	}
}

func TestObserver_StartSpan(t *testing.T) {
	obs := Nop()
	ctx, span := obs.StartSpan(context.Background(), "test-span")
	if ctx == nil {
		t.Fatal("expected non-nil context from StartSpan")
	}
	if span == nil {
		t.Fatal("expected non-nil span from StartSpan")
	}
	span.End()
}
