package screnc

import (
	"bytes"
	"regexp"
	"testing"
)

func TestFindAllNoMatch(t *testing.T) {
	for _, buf := range [][]byte{
		nil,
		[]byte("plain text with no envelope"),
		[]byte("#@~^DgAAAA==unterminated payload"),
		[]byte("#@~^DgAAAAxxmissing equals==^#~@"),
	} {
		if got := FindAll(buf); len(got) != 0 {
			t.Fatalf("FindAll(%q) = %v, want none", buf, got)
		}
		if _, ok := Find(buf); ok {
			t.Fatalf("Find(%q) reported a match", buf)
		}
	}
}

func TestFindAllSingle(t *testing.T) {
	envs := FindAll([]byte(helloEnvelope))
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	env := envs[0]
	if env.Start != 0 || env.End != len(helloEnvelope) {
		t.Fatalf("envelope bounds = [%d,%d), want [0,%d)", env.Start, env.End, len(helloEnvelope))
	}
	if !bytes.Equal(env.Payload, helloPayload()) {
		t.Fatalf("payload = %q, want %q", env.Payload, helloPayload())
	}
	if env.Len() != HeaderLen+len(env.Payload)+TrailerLen {
		t.Fatalf("Len() = %d", env.Len())
	}
}

func TestFindAllMultiple(t *testing.T) {
	buf := []byte("<p>one</p>" + helloEnvelope + "\n<p>two</p>" + helloEnvelope + "tail")
	envs := FindAll(buf)
	if len(envs) != 2 {
		t.Fatalf("expected 2 envelopes, got %d", len(envs))
	}
	first, second := envs[0], envs[1]
	if first.Start != 10 || first.End != 10+len(helloEnvelope) {
		t.Fatalf("first envelope = [%d,%d)", first.Start, first.End)
	}
	if second.Start < first.End {
		t.Fatalf("envelopes overlap: %d < %d", second.Start, first.End)
	}
	if wantStart := first.End + len("\n<p>two</p>"); second.Start != wantStart {
		t.Fatalf("second start = %d, want %d", second.Start, wantStart)
	}
	for i, env := range envs {
		if got := string(env.Decode()); got != `MsgBox "Hello"` {
			t.Fatalf("envelope %d decoded to %q", i, got)
		}
	}
}

func TestFindAllShortestPayload(t *testing.T) {
	buf := []byte("#@~^AAAAAA==abcCHKSUM==^#~@defCHKSUM==^#~@")
	envs := FindAll(buf)
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	if string(envs[0].Payload) != "abc" {
		t.Fatalf("payload = %q, want %q", envs[0].Payload, "abc")
	}
	if envs[0].End != len("#@~^AAAAAA==abcCHKSUM==^#~@") {
		t.Fatalf("end = %d", envs[0].End)
	}
}

func TestFindAllSkipsMalformedHeader(t *testing.T) {
	buf := []byte("#@~^broken" + helloEnvelope)
	env, ok := Find(buf)
	if !ok {
		t.Fatalf("expected a match after the malformed header")
	}
	if env.Start != len("#@~^broken") {
		t.Fatalf("start = %d", env.Start)
	}
}

func TestEnvelopesRestartable(t *testing.T) {
	buf := []byte(helloEnvelope + helloEnvelope + helloEnvelope)
	seq := Envelopes(buf)

	count := 0
	for range seq {
		count++
		break
	}
	if count != 1 {
		t.Fatalf("early break yielded %d", count)
	}

	count = 0
	for range seq {
		count++
	}
	if count != 3 {
		t.Fatalf("second range yielded %d envelopes, want 3", count)
	}
}

func TestEndToEndWithFiller(t *testing.T) {
	filler := bytes.Repeat([]byte{'.'}, 48)
	buf := append(filler, helloEnvelope...)

	envs := FindAll(buf)
	if len(envs) != 1 {
		t.Fatalf("expected 1 envelope, got %d", len(envs))
	}
	env := envs[0]
	if env.Start != 48 {
		t.Fatalf("offset = %d, want 48", env.Start)
	}
	if env.Len() != len(helloEnvelope) {
		t.Fatalf("length = %d, want %d", env.Len(), len(helloEnvelope))
	}
	if got := string(Decode(env.Payload)); got != `MsgBox "Hello"` {
		t.Fatalf("decoded = %q", got)
	}
}

// The scanner must agree with a lazy regular expression on ASCII input.
func TestFindAllMatchesLazyRegexp(t *testing.T) {
	re := regexp.MustCompile(`(?s)#@~\^.{6}==(.+?).{6}==\^#~@`)
	inputs := []string{
		helloEnvelope,
		"xx" + helloEnvelope + "yy" + helloEnvelope,
		"#@~^AAAAAA==a==^#~@",
		"#@~^AAAAAA==abcdefg==^#~@#@~^BBBBBB==hijklmn==^#~@",
		"#@~^AAAAAA==#@~^BBBBBB==xCHKSUM==^#~@",
		"#@~^short==#@~^AAAAAA==payloadCHKSUM==^#~@",
	}
	for _, in := range inputs {
		buf := []byte(in)
		want := re.FindAllSubmatchIndex(buf, -1)
		got := FindAll(buf)
		if len(got) != len(want) {
			t.Fatalf("%q: got %d envelopes, regexp found %d", in, len(got), len(want))
		}
		for i, loc := range want {
			if got[i].Start != loc[0] || got[i].End != loc[1] {
				t.Fatalf("%q: envelope %d = [%d,%d), regexp [%d,%d)", in, i, got[i].Start, got[i].End, loc[0], loc[1])
			}
			if !bytes.Equal(got[i].Payload, buf[loc[2]:loc[3]]) {
				t.Fatalf("%q: payload %d = %q, regexp %q", in, i, got[i].Payload, buf[loc[2]:loc[3]])
			}
		}
	}
}
