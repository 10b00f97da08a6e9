package cipher

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestPipelineExecute(t *testing.T) {
	strict := OperationConfig{Name: "screnc_decode", Parameters: map[string]interface{}{"strict": true}}
	tests := []struct {
		name  string
		steps []OperationConfig
		in    string
		want  string
	}{
		{"base64 once", steps("base64_encode"), "hello", "aGVsbG8="},
		{"base64 twice", steps("base64_encode", "base64_encode"), "test", "ZEdWemRBPT0="},
		{"url there and back", steps("url_encode", "url_decode"), "hello world", "hello world"},
		{"base64 wrapped envelope", steps("base64_decode", "screnc_decode"), base64.StdEncoding.EncodeToString([]byte(helloEnvelope)), `MsgBox "Hello"`},
		{"hex wrapped envelope, strict", append(steps("hex_decode"), strict), hex.EncodeToString([]byte(helloEnvelope)), `MsgBox "Hello"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := (&Pipeline{Operations: tt.steps}).Execute(context.Background(), []byte(tt.in))
			if err != nil {
				t.Fatalf("Execute: %v", err)
			}
			if string(got) != tt.want {
				t.Fatalf("Execute = %q, want %q", got, tt.want)
			}
		})
	}
}

func steps(names ...string) []OperationConfig {
	out := make([]OperationConfig, len(names))
	for i, n := range names {
		out[i] = OperationConfig{Name: n}
	}
	return out
}

func TestPipelineReverseRoundTrip(t *testing.T) {
	tests := []struct {
		names []string
		in    string
	}{
		{[]string{"base64_encode"}, "hello world"},
		{[]string{"url_encode", "base64_encode", "hex_encode"}, "test@example.com?query=value"},
		{[]string{"hex_encode", "base64url_encode"}, helloEnvelope},
	}

	ctx := context.Background()
	for _, tt := range tests {
		p := NewPipeline(tt.names...)
		encoded, err := p.Execute(ctx, []byte(tt.in))
		if err != nil {
			t.Fatalf("%v: forward: %v", tt.names, err)
		}
		back, err := p.Reverse()
		if err != nil {
			t.Fatalf("%v: Reverse: %v", tt.names, err)
		}
		decoded, err := back.Execute(ctx, encoded)
		if err != nil {
			t.Fatalf("%v: backward: %v", tt.names, err)
		}
		if string(decoded) != tt.in {
			t.Fatalf("%v: round trip = %q, want %q", tt.names, decoded, tt.in)
		}
	}
}

func TestPipelineNonReversible(t *testing.T) {
	for _, name := range []string{"screnc_decode", "screnc_extract"} {
		if _, err := NewPipeline("base64_decode", name).Reverse(); err == nil {
			t.Errorf("expected error when reversing pipeline with %s", name)
		}
	}
}

func TestPipelineUnknownOperation(t *testing.T) {
	pipeline := NewPipeline("unknown_operation")

	if _, err := pipeline.Execute(context.Background(), []byte("test")); err == nil {
		t.Error("expected error for unknown operation")
	}
	if _, err := pipeline.Reverse(); err == nil {
		t.Error("expected error reversing unknown operation")
	}
}

func TestPipelineCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewPipeline("hex_encode").Execute(ctx, []byte("x")); err == nil {
		t.Fatal("expected context error")
	}
}

func TestPipelineNames(t *testing.T) {
	names := NewPipeline("base64_decode", "hex_decode").Names()
	if len(names) != 2 || names[0] != "base64_decode" || names[1] != "hex_decode" {
		t.Fatalf("Names() = %v", names)
	}
	if got := NewPipeline().Names(); len(got) != 0 {
		t.Fatalf("empty pipeline names = %v", got)
	}
}
