//go:build !integration

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
)

func TestWithAddsContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := zerolog.New(&buf)

	ctx := WithTraceID(context.Background(), "01HX")
	ctx = WithTgID(ctx, 42)
	ctx = WithChatID(ctx, -100)

	With(ctx, &base).Info().Msg("hello")

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("decode log line: %v", err)
	}
	if line["trace_id"] != "01HX" {
		t.Errorf("trace_id = %v", line["trace_id"])
	}
	if line["tg_id"] != float64(42) {
		t.Errorf("tg_id = %v", line["tg_id"])
	}
	if line["chat_id"] != float64(-100) {
		t.Errorf("chat_id = %v", line["chat_id"])
	}
	if TraceID(ctx) != "01HX" {
		t.Errorf("TraceID = %q", TraceID(ctx))
	}
}

func TestRedact(t *testing.T) {
	cases := []struct {
		in   string
		dev  bool
		want string
	}{
		{"short", false, "***"},
		{"1234567890:ABCDEF", false, "1234...EF"},
		{"1234567890:ABCDEF", true, "1234567890:ABCDEF"},
	}
	for _, c := range cases {
		if got := Redact(c.in, c.dev); got != c.want {
			t.Errorf("Redact(%q, %v) = %q, want %q", c.in, c.dev, got, c.want)
		}
	}
}
