package screnc

import (
	"bytes"
	"errors"
	"testing"
)

const helloEnvelope = "#@~^DgAAAA==\\ko$K6,JC\x7fV^GJqAQAAA==^#~@"

func helloPayload() []byte {
	return []byte(helloEnvelope[HeaderLen : len(helloEnvelope)-TrailerLen])
}

func TestDecodeKnownVector(t *testing.T) {
	got := Decode(helloPayload())
	if want := `MsgBox "Hello"`; string(got) != want {
		t.Fatalf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeDeterministic(t *testing.T) {
	inputs := [][]byte{
		helloPayload(),
		[]byte("garbage that was never encoded @& @# @!"),
		{0x00, 0x7f, 0x80, 0xff, '\t'},
		nil,
	}
	for _, in := range inputs {
		first := Decode(in)
		second := Decode(in)
		if !bytes.Equal(first, second) {
			t.Fatalf("Decode(%q) not deterministic: %q vs %q", in, first, second)
		}
	}
}

func TestDecodePassthrough(t *testing.T) {
	in := []byte{0x01, 0x08, '\n', '\r', 0x1f, '<', '>', '@', 0x80, 0xfe}
	got := Decode(in)
	if !bytes.Equal(got, in) {
		t.Fatalf("Decode(%v) = %v, want input unchanged", in, got)
	}
}

func TestDecodeEmpty(t *testing.T) {
	if got := Decode(nil); len(got) != 0 {
		t.Fatalf("Decode(nil) = %q, want empty", got)
	}
}

func TestDecodeDelimitersNotSubstituted(t *testing.T) {
	in := []byte("a<b>c@d")
	got := Decode(in)
	if len(got) != len(in) {
		t.Fatalf("length = %d, want %d", len(got), len(in))
	}
	for _, i := range []int{1, 3, 5} {
		if got[i] != in[i] {
			t.Fatalf("byte %d = %q, want %q untouched", i, got[i], in[i])
		}
	}
	for _, i := range []int{0, 2, 4, 6} {
		if want := substitution[in[i]][combination[i]]; got[i] != want {
			t.Fatalf("byte %d = %q, want %q", i, got[i], want)
		}
	}
}

func TestDecodeIndexWrapsAt64(t *testing.T) {
	in := bytes.Repeat([]byte{'x'}, 65)
	in[0] = 'Q'
	in[64] = 'Q'
	got := Decode(in)
	if got[0] != got[64] {
		t.Fatalf("position 0 decoded to %q, position 64 to %q", got[0], got[64])
	}
	if got[0] != substitution['Q'][combination[0]] {
		t.Fatalf("position 0 decoded to %q, want %q", got[0], substitution['Q'][combination[0]])
	}
}

func TestDecodeEscapesExpandBeforeSubstitution(t *testing.T) {
	escaped := Decode([]byte("@&@#@*@!@$ko"))
	plain := Decode([]byte("\n\r><@ko"))
	if !bytes.Equal(escaped, plain) {
		t.Fatalf("escaped form decoded to %q, expanded form to %q", escaped, plain)
	}
	if !bytes.HasPrefix(escaped, []byte("\n\r><@")) {
		t.Fatalf("escape bytes were substituted: %q", escaped)
	}
}

func TestDecodeUnknownEscapeKept(t *testing.T) {
	got := Decode([]byte("@"))
	if string(got) != "@" {
		t.Fatalf("lone @ decoded to %q", got)
	}
	got = Decode([]byte("@<"))
	if string(got) != "@<" {
		t.Fatalf("@< decoded to %q", got)
	}
}

func TestDecodeHighBytesDoNotAdvanceIndex(t *testing.T) {
	in := append([]byte{0xc3, 0xa9}, helloPayload()...)
	got := Decode(in)
	want := append([]byte{0xc3, 0xa9}, `MsgBox "Hello"`...)
	if !bytes.Equal(got, want) {
		t.Fatalf("Decode() = %q, want %q", got, want)
	}
}

func TestDecodeStrict(t *testing.T) {
	got, err := DecodeStrict(helloPayload())
	if err != nil {
		t.Fatalf("DecodeStrict: %v", err)
	}
	if string(got) != `MsgBox "Hello"` {
		t.Fatalf("DecodeStrict() = %q", got)
	}
}

func TestLookupStructuralFault(t *testing.T) {
	cases := []struct {
		name  string
		b     byte
		index int
	}{
		{"missing row", 0x05, 0},
		{"high byte", 0x80, 3},
		{"negative index", 'A', -1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := lookup(tc.b, tc.index)
			var fault *StructuralFault
			if !errors.As(err, &fault) {
				t.Fatalf("lookup(0x%02x, %d) error = %v, want StructuralFault", tc.b, tc.index, err)
			}
			if fault.Byte != tc.b || fault.Index != tc.index {
				t.Fatalf("fault = %+v", fault)
			}
		})
	}
}

func TestSubstitutionTableShape(t *testing.T) {
	shared := [3]byte{0x4A, 0x4C, 0x41}
	for _, b := range []byte{10, 13, 60, 62} {
		if substitution[b] != shared {
			t.Fatalf("row %d = %v, want %v", b, substitution[b], shared)
		}
	}
	for b := 11; b <= 31; b++ {
		if b == 13 {
			continue
		}
		want := [3]byte{byte(b), byte(b), byte(b)}
		if substitution[b] != want {
			t.Fatalf("row %d = %v, want identity", b, substitution[b])
		}
	}
	if substitution['@'] != [3]byte{0x40, 0x4C, 0x40} {
		t.Fatalf("row 64 = %v", substitution['@'])
	}
	for b := 0; b < 9; b++ {
		if hasRow[b] {
			t.Fatalf("row %d should be absent", b)
		}
	}
	for i, c := range combination {
		if c > 2 {
			t.Fatalf("combination[%d] = %d", i, c)
		}
	}
}

func TestSubstitutionColumnsArePermutations(t *testing.T) {
	for col := 0; col < 3; col++ {
		seen := make(map[byte]byte)
		for b := 32; b < 128; b++ {
			if !substitutable(byte(b)) {
				continue
			}
			out := substitution[b][col]
			if prev, dup := seen[out]; dup {
				t.Fatalf("column %d maps both %q and %q to %q", col, prev, b, out)
			}
			seen[out] = byte(b)
		}
	}
}

func BenchmarkDecode(b *testing.B) {
	payload := bytes.Repeat(helloPayload(), 512)
	b.SetBytes(int64(len(payload)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		Decode(payload)
	}
}
