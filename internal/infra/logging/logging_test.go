//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestRedact(t *testing.T) {
	if got := Redact("255712345678", false); got != "2557...78" {
		t.Errorf("unexpected redaction %q", got)
	}
	if got := Redact("short", false); got != "***" {
		t.Errorf("short values must be fully masked, got %q", got)
	}
	if got := Redact("255712345678", true); got != "255712345678" {
		t.Errorf("dev mode must not redact, got %q", got)
	}
}

func TestWith_AttachesContextIDs(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithPaymentID(ctx, "pay-1")
	ctx = WithExternalID(ctx, "TASSA-1")

	With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	for k, want := range map[string]string{"trace_id": "trace-1", "payment_id": "pay-1", "external_id": "TASSA-1"} {
		if line[k] != want {
			t.Errorf("field %s = %v, want %s", k, line[k], want)
		}
	}
	if _, ok := line["user_id"]; ok {
		t.Error("user_id must be absent when not in context")
	}
}

func TestWith_NilBase(t *testing.T) {
	l := With(context.Background(), nil)
	if l == nil {
		t.Fatal("expected a usable logger")
	}
	l.Info().Msg("discarded")
}
