package screnc

import (
	"bytes"
	"fmt"
)

// escapes lists the two-byte sequences the encoder uses to smuggle bytes that
// would otherwise collide with the envelope or line structure.
var escapes = [...]struct {
	code byte
	repl byte
}{
	{'&', '\n'},
	{'#', '\r'},
	{'*', '>'},
	{'!', '<'},
	{'$', '@'},
}

// StructuralFault reports a table lookup outside the key's domain. It signals
// a logic defect in the caller, never malformed cipher text.
type StructuralFault struct {
	Byte  byte
	Index int
}

func (e *StructuralFault) Error() string {
	return fmt.Sprintf("screnc: no substitution for byte 0x%02x at position %d", e.Byte, e.Index)
}

// Decode reverses the Script Encoder cipher for a single payload (the bytes
// between the two "==" markers of an envelope). It never fails: input that
// was not produced by the encoder yields deterministic garbage.
func Decode(payload []byte) []byte {
	out, _ := decode(payload, false)
	return out
}

// DecodeStrict runs the same algorithm as Decode but surfaces a
// *StructuralFault instead of passing an out-of-domain byte through.
func DecodeStrict(payload []byte) ([]byte, error) {
	return decode(payload, true)
}

func decode(payload []byte, strict bool) ([]byte, error) {
	// Escapes must be expanded before substitution so the position index
	// counts expanded bytes.
	expanded := expandEscapes(payload)

	out := make([]byte, 0, len(expanded))
	index := -1
	for _, b := range expanded {
		if b < 0x80 {
			index++
		}
		if !substitutable(b) {
			out = append(out, b)
			continue
		}
		plain, err := lookup(b, index)
		if err != nil {
			if strict {
				return nil, err
			}
			plain = b
		}
		out = append(out, plain)
	}
	return out, nil
}

// expandEscapes replaces @&, @#, @*, @! and @$ in a single left-to-right pass.
func expandEscapes(payload []byte) []byte {
	if bytes.IndexByte(payload, '@') < 0 {
		return payload
	}
	out := make([]byte, 0, len(payload))
	for i := 0; i < len(payload); i++ {
		b := payload[i]
		if b == '@' && i+1 < len(payload) {
			if repl, ok := unescape(payload[i+1]); ok {
				out = append(out, repl)
				i++
				continue
			}
		}
		out = append(out, b)
	}
	return out
}

func unescape(code byte) (byte, bool) {
	for _, e := range escapes {
		if e.code == code {
			return e.repl, true
		}
	}
	return 0, false
}

// substitutable reports whether b goes through the key. '<', '>' and '@'
// survive encoding untouched, as do control bytes other than tab.
func substitutable(b byte) bool {
	if b != '\t' && (b < 0x20 || b >= 0x80) {
		return false
	}
	return b != '<' && b != '>' && b != '@'
}

func lookup(b byte, index int) (byte, error) {
	if int(b) >= len(substitution) || !hasRow[b] || index < 0 {
		return 0, &StructuralFault{Byte: b, Index: index}
	}
	column := combination[index%len(combination)]
	if int(column) >= len(substitution[b]) {
		return 0, &StructuralFault{Byte: b, Index: index}
	}
	return substitution[b][column], nil
}
