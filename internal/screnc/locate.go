package screnc

import (
	"bytes"
	"iter"
)

const (
	// HeaderLen is the size of "#@~^" + 6 opaque bytes + "==".
	HeaderLen = 12
	// TrailerLen is the size of 6 opaque bytes + "==" + "^#~@".
	TrailerLen = 12

	markerLen = 6
)

var (
	openTag  = []byte("#@~^")
	equals   = []byte("==")
	closeSeq = []byte("==^#~@")
)

// Envelope is one encoded script located inside a larger buffer.
type Envelope struct {
	// Start is the offset of '#' in the opening "#@~^".
	Start int
	// End is the offset just past the closing '@'.
	End int
	// Payload aliases the source buffer between the two "==" markers.
	Payload []byte
}

// Len returns the number of bytes covered by the envelope.
func (e Envelope) Len() int {
	return e.End - e.Start
}

// Decode decodes the envelope payload.
func (e Envelope) Decode() []byte {
	return Decode(e.Payload)
}

// Envelopes yields every envelope in buf, leftmost first and without overlap.
// The payload of each envelope ends at the first closing sequence after its
// header. Ranging over the sequence again rescans buf from the start.
func Envelopes(buf []byte) iter.Seq[Envelope] {
	return func(yield func(Envelope) bool) {
		pos := 0
		for {
			env, ok := next(buf, pos)
			if !ok {
				return
			}
			if !yield(env) {
				return
			}
			pos = env.End
		}
	}
}

// FindAll returns every envelope in buf. It returns nil when there are none.
func FindAll(buf []byte) []Envelope {
	var out []Envelope
	for env := range Envelopes(buf) {
		out = append(out, env)
	}
	return out
}

// Find returns the first envelope in buf.
func Find(buf []byte) (Envelope, bool) {
	return next(buf, 0)
}

// next finds the leftmost envelope starting at or after pos.
func next(buf []byte, pos int) (Envelope, bool) {
	for pos < len(buf) {
		rel := bytes.Index(buf[pos:], openTag)
		if rel < 0 {
			return Envelope{}, false
		}
		start := pos + rel
		payloadStart := start + HeaderLen
		if payloadStart > len(buf) || !bytes.Equal(buf[payloadStart-len(equals):payloadStart], equals) {
			pos = start + 1
			continue
		}
		payloadEnd, ok := closing(buf, payloadStart)
		if !ok {
			// Later openings see a suffix of the same search space.
			return Envelope{}, false
		}
		return Envelope{
			Start:   start,
			End:     payloadEnd + TrailerLen,
			Payload: buf[payloadStart:payloadEnd:payloadEnd],
		}, true
	}
	return Envelope{}, false
}

// closing returns the end of the shortest non-empty payload beginning at
// payloadStart that is followed by 6 opaque bytes and "==^#~@".
func closing(buf []byte, payloadStart int) (int, bool) {
	from := payloadStart + 1 + markerLen
	if from > len(buf) {
		return 0, false
	}
	rel := bytes.Index(buf[from:], closeSeq)
	if rel < 0 {
		return 0, false
	}
	return from + rel - markerLen, true
}
