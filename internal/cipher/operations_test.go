package cipher

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/RowanDark/scrdec/internal/screnc"
)

const helloEnvelope = "#@~^DgAAAA==\\ko$K6,JC\x7fV^GJqAQAAA==^#~@"

func mustOperation(t *testing.T, name string) Operation {
	t.Helper()
	op, ok := GetOperation(name)
	if !ok {
		t.Fatalf("operation %s not registered", name)
	}
	return op
}

func TestBase64Operations(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple text", "Hello, World!", "SGVsbG8sIFdvcmxkIQ=="},
		{"special chars", "Test@123!#$", "VGVzdEAxMjMhIyQ="},
		{"empty string", "", ""},
		{"unicode", "Hello 世界", "SGVsbG8g5LiW55WM"},
	}

	ctx := context.Background()
	encoder := mustOperation(t, "base64_encode")
	decoder := mustOperation(t, "base64_decode")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			encoded, err := encoder.Execute(ctx, []byte(tt.input), nil)
			if err != nil {
				t.Fatalf("encode failed: %v", err)
			}
			if string(encoded) != tt.expected {
				t.Errorf("encode: expected %q, got %q", tt.expected, string(encoded))
			}

			decoded, err := decoder.Execute(ctx, encoded, nil)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if string(decoded) != tt.input {
				t.Errorf("decode: expected %q, got %q", tt.input, string(decoded))
			}
		})
	}
}

func TestBase64DecodeLenient(t *testing.T) {
	decoder := mustOperation(t, "base64_decode")
	for _, in := range []string{"TXNn\nQm94", "TXNnQm94\r\n", "TXNnQm9", "TXNnQm9=="} {
		got, err := decoder.Execute(context.Background(), []byte(in), nil)
		if err != nil {
			t.Fatalf("decode %q: %v", in, err)
		}
		if !strings.HasPrefix("MsgBox", string(got)) || len(got) < 5 {
			t.Errorf("decode %q = %q", in, got)
		}
	}
	if _, err := decoder.Execute(context.Background(), []byte("!!!"), nil); err == nil {
		t.Error("expected error for invalid base64")
	}
}

func TestBase64URLOperations(t *testing.T) {
	ctx := context.Background()
	encoder := mustOperation(t, "base64url_encode")
	decoder := mustOperation(t, "base64url_decode")

	for _, input := range []string{"test?&=", "hello", "\xfb\xff\xfe"} {
		encoded, err := encoder.Execute(ctx, []byte(input), nil)
		if err != nil {
			t.Fatalf("encode failed: %v", err)
		}
		decoded, err := decoder.Execute(ctx, encoded, nil)
		if err != nil {
			t.Fatalf("decode failed: %v", err)
		}
		if string(decoded) != input {
			t.Errorf("roundtrip failed: expected %q, got %q", input, string(decoded))
		}
	}

	decoded, err := decoder.Execute(ctx, []byte("aGVsbG8"), nil)
	if err != nil || string(decoded) != "hello" {
		t.Fatalf("unpadded decode = %q, %v", decoded, err)
	}
}

func TestURLOperations(t *testing.T) {
	ctx := context.Background()
	encoder := mustOperation(t, "url_encode")
	decoder := mustOperation(t, "url_decode")

	encoded, err := encoder.Execute(ctx, []byte("a b&c"), nil)
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	if string(encoded) != "a+b%26c" {
		t.Errorf("encode = %q", encoded)
	}

	decoded, err := decoder.Execute(ctx, []byte("%23%40~%5E"), nil)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if string(decoded) != "#@~^" {
		t.Errorf("decode = %q", decoded)
	}
}

func TestHexOperations(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"plain", "4d7367426f78"},
		{"prefixed", "0x4d7367426f78"},
		{"spaced", "4d 73 67 42 6f 78"},
		{"colons", "4d:73:67:42:6f:78"},
		{"multiline", "4d7367\n426f78\n"},
	}

	decoder := mustOperation(t, "hex_decode")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decoder.Execute(context.Background(), []byte(tt.input), nil)
			if err != nil {
				t.Fatalf("decode failed: %v", err)
			}
			if string(got) != "MsgBox" {
				t.Errorf("expected MsgBox, got %q", got)
			}
		})
	}

	if _, err := decoder.Execute(context.Background(), []byte("zz"), nil); err == nil {
		t.Error("expected error for invalid hex")
	}
}

func TestScrencDecodeOperation(t *testing.T) {
	op := mustOperation(t, "screnc_decode")
	ctx := context.Background()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single envelope", helloEnvelope, `MsgBox "Hello"`},
		{"embedded in page", "<script language=VBScript.Encode>" + helloEnvelope + "</script>", `MsgBox "Hello"`},
		{"two envelopes", helloEnvelope + "\r\n" + helloEnvelope, "MsgBox \"Hello\"\nMsgBox \"Hello\""},
		{"bare payload", helloEnvelope[screnc.HeaderLen : len(helloEnvelope)-screnc.TrailerLen], `MsgBox "Hello"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := op.Execute(ctx, []byte(tt.input), nil)
			if err != nil {
				t.Fatalf("execute failed: %v", err)
			}
			if string(got) != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestScrencDecodeStrictParameter(t *testing.T) {
	op := mustOperation(t, "screnc_decode")
	ctx := context.Background()

	got, err := op.Execute(ctx, []byte(helloEnvelope), map[string]interface{}{"strict": true})
	if err != nil || string(got) != `MsgBox "Hello"` {
		t.Fatalf("strict decode = %q, %v", got, err)
	}

	_, err = op.Execute(ctx, []byte(helloEnvelope), map[string]interface{}{"strict": "yes"})
	if err == nil {
		t.Fatal("expected error for non-boolean strict parameter")
	}
	var fault *screnc.StructuralFault
	if errors.As(err, &fault) {
		t.Fatal("parameter error must not be a structural fault")
	}
}

func TestScrencExtractOperation(t *testing.T) {
	op := mustOperation(t, "screnc_extract")
	ctx := context.Background()
	page := "<html>" + helloEnvelope + "<br>" + helloEnvelope + "</html>"

	all, err := op.Execute(ctx, []byte(page), nil)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}
	if string(all) != helloEnvelope+"\n"+helloEnvelope {
		t.Errorf("extract = %q", all)
	}

	first, err := op.Execute(ctx, []byte(page), map[string]interface{}{"first": true})
	if err != nil {
		t.Fatalf("extract first failed: %v", err)
	}
	if string(first) != helloEnvelope {
		t.Errorf("extract first = %q", first)
	}

	if _, err := op.Execute(ctx, []byte("<html></html>"), nil); err == nil {
		t.Error("expected error when no envelope is present")
	}
	if _, ok := op.Reverse(); ok {
		t.Error("extract should not be reversible")
	}
}
