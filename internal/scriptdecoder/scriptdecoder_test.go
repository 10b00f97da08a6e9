package scriptdecoder

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"

	"github.com/RowanDark/scrdec/internal/plugin"
)

const (
	helloEnvelope = "#@~^DgAAAA==\\ko$K6,JC\x7fV^GJqAQAAA==^#~@"
	// Dim a\r\nSub S()\r\nEnd Sub
	vbEnvelope = "#@~^AAAAAA==9b:~m@#@&?E(PUc#@#@&3x9Pj;(AAAAAA==^#~@"
	// document.write("hi");
	jsEnvelope = "#@~^AAAAAA==[Km;s+\tYRSDbO+vJ4kr#IAAAAAA==^#~@"
)

func scan(t *testing.T, data string, opts Options) *plugin.Result {
	t.Helper()
	res, err := Scan(context.Background(), "sample", []byte(data), opts, zerolog.Nop())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	return res
}

func childTag(c *plugin.Child) string {
	for _, f := range c.Features {
		if f.Name == "tag" {
			return f.Value
		}
	}
	return ""
}

func TestScanBareEnvelope(t *testing.T) {
	res := scan(t, helloEnvelope, Options{})

	if res.Status != plugin.StatusCompleted || res.Plugin != Name {
		t.Fatalf("unexpected result header: %+v", res)
	}
	if len(res.Features) != 1 {
		t.Fatalf("features = %+v", res.Features)
	}
	f := res.Features[0]
	if f.Value != "encoded_script" || f.Offset != 0 || f.Size != len(helloEnvelope) || !f.Located {
		t.Fatalf("feature = %+v", f)
	}
	if len(res.Children) != 1 {
		t.Fatalf("children = %+v", res.Children)
	}
	child := res.Children[0]
	if string(child.Data) != `MsgBox "Hello"` {
		t.Fatalf("decoded = %q", child.Data)
	}
	if len(child.Relationship) != 1 || child.Relationship["action"] != "decoded" {
		t.Fatalf("relationship = %v", child.Relationship)
	}
	if childTag(child) != "decoded_script" {
		t.Fatalf("child tag = %q", childTag(child))
	}
	if len(child.Streams) != 1 || child.Streams[0].Label != "text" || len(child.Streams[0].Tags) != 0 {
		t.Fatalf("streams = %+v", child.Streams)
	}
	if child.SHA256 != plugin.Digest([]byte(`MsgBox "Hello"`)) {
		t.Fatalf("child digest = %s", child.SHA256)
	}
}

func TestScanLookbackLanguage(t *testing.T) {
	page := `<SCRIPT LANGUAGE="VBScript.Encode">` + helloEnvelope + `</SCRIPT>`
	res := scan(t, page, Options{})

	if len(res.Children) != 1 {
		t.Fatalf("children = %+v", res.Children)
	}
	child := res.Children[0]
	if child.Relationship["offset"] != "0x23" {
		t.Fatalf("offset relationship = %q", child.Relationship["offset"])
	}
	if child.Relationship["language"] != "vbscript" {
		t.Fatalf("language = %q", child.Relationship["language"])
	}
	if childTag(child) != "decoded_vbscript" {
		t.Fatalf("child tag = %q", childTag(child))
	}
	if child.Streams[0].Tags["language"] != "visual-basic" {
		t.Fatalf("stream tags = %v", child.Streams[0].Tags)
	}
}

func TestScanLookbackPrefersLastScriptType(t *testing.T) {
	page := "jscript or vbscript?" + helloEnvelope
	res := scan(t, page, Options{})
	if got := res.Children[0].Relationship["language"]; got != "vbscript" {
		t.Fatalf("language = %q, want vbscript", got)
	}

	page = "vbscript" + strings.Repeat(" ", 40) + helloEnvelope
	res = scan(t, page, Options{DisableHTMLHint: true})
	if _, ok := res.Children[0].Relationship["language"]; ok {
		t.Fatalf("language outside the lookback window was used: %v", res.Children[0].Relationship)
	}
	res = scan(t, page, Options{Lookback: 64, DisableHTMLHint: true})
	if got := res.Children[0].Relationship["language"]; got != "vbscript" {
		t.Fatalf("language with wider lookback = %q", got)
	}
}

func TestScanHTMLScriptHint(t *testing.T) {
	page := `<html><body><script language="JScript.Encode" type="text/x" defer="defer" id="payload">` +
		jsEnvelope + `</script></body></html>`

	res := scan(t, page, Options{})
	child := res.Children[0]
	if child.Relationship["language"] != "jscript" || childTag(child) != "decoded_jscript" {
		t.Fatalf("expected jscript from markup, got %v / %s", child.Relationship, childTag(child))
	}
	if string(child.Data) != `document.write("hi");` {
		t.Fatalf("decoded = %q", child.Data)
	}

	res = scan(t, page, Options{DisableHTMLHint: true})
	child = res.Children[0]
	if childTag(child) != "decoded_script" {
		t.Fatalf("child tag without markup hint = %q", childTag(child))
	}
	if child.Streams[0].Tags["language"] != "javascript" {
		t.Fatalf("content heuristic should still select javascript, got %v", child.Streams[0].Tags)
	}
}

func TestScanASPDirective(t *testing.T) {
	page := `<%@ LANGUAGE="VBScript.Encode" %>` + "\r\n<html><head><title>login</title></head><body>\r\n<%" + vbEnvelope + "%>\r\n</body></html>"

	res := scan(t, page, Options{})
	child := res.Children[0]
	if child.Relationship["language"] != "vbscript" {
		t.Fatalf("language = %q", child.Relationship["language"])
	}
	if string(child.Data) != "Dim a\r\nSub S()\r\nEnd Sub" {
		t.Fatalf("decoded = %q", child.Data)
	}
}

func TestScanContentHeuristics(t *testing.T) {
	res := scan(t, vbEnvelope, Options{})
	child := res.Children[0]
	if _, ok := child.Relationship["language"]; ok {
		t.Fatalf("unexpected language: %v", child.Relationship)
	}
	if child.Streams[0].Tags["language"] != "visual-basic" {
		t.Fatalf("stream tags = %v", child.Streams[0].Tags)
	}
}

func TestScanMultipleEnvelopes(t *testing.T) {
	page := helloEnvelope + "<br>" + helloEnvelope + "<br>" + jsEnvelope
	res := scan(t, page, Options{})

	if len(res.Features) != 3 {
		t.Fatalf("features = %d, want 3", len(res.Features))
	}
	wantOffsets := []int{0, len(helloEnvelope) + 4, 2*len(helloEnvelope) + 8}
	for i, f := range res.Features {
		if f.Offset != wantOffsets[i] {
			t.Fatalf("feature %d offset = %d, want %d", i, f.Offset, wantOffsets[i])
		}
	}
	// Identical scripts collapse into a single child.
	if len(res.Children) != 2 {
		t.Fatalf("children = %d, want 2", len(res.Children))
	}
}

func TestScanNoEnvelope(t *testing.T) {
	res := scan(t, "<html>nothing to see</html>", Options{})
	if res.Status != plugin.StatusCompletedEmpty {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestScanCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Scan(ctx, "sample", []byte(helloEnvelope), Options{}, zerolog.Nop())
	if err == nil {
		t.Fatal("expected context error")
	}
	if res.Status != plugin.StatusError {
		t.Fatalf("status = %s", res.Status)
	}
}

func TestDisplayLanguage(t *testing.T) {
	tests := []struct {
		language string
		decoded  string
		want     string
	}{
		{"vbscript", "x", "visual-basic"},
		{"jscript", "x", "javascript"},
		{"", "Dim x\nSub y\nEnd Sub", "visual-basic"},
		{"", "Dim x\nEnd", ""},
		{"", "document.write(1);", "javascript"},
		{"", "document.write(1)", ""},
		{"jscript", "Dim a Sub b End", "visual-basic"},
	}
	for _, tt := range tests {
		if got := displayLanguage(tt.language, []byte(tt.decoded)); got != tt.want {
			t.Fatalf("displayLanguage(%q, %q) = %q, want %q", tt.language, tt.decoded, got, tt.want)
		}
	}
}
