package cipher

import (
	"bytes"
	"cmp"
	"context"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math"
	"regexp"
	"slices"
	"strings"

	"github.com/RowanDark/scrdec/internal/screnc"
)

// minConfidence is the floor below which Detect discards a guess.
const minConfidence = 0.3

var (
	base64Alphabet    = regexp.MustCompile(`^[A-Za-z0-9+/]+=*$`)
	base64URLAlphabet = regexp.MustCompile(`^[A-Za-z0-9_-]+=*$`)
	hexAlphabet       = regexp.MustCompile(`^[0-9a-fA-F]+$`)
	onlyDigits        = regexp.MustCompile(`^[0-9]+$`)
	percentEscape     = regexp.MustCompile(`%[0-9A-Fa-f]{2}`)
)

// probe inspects raw input and returns zero or more guesses.
type probe struct {
	encoding string
	run      func(raw []byte) []DetectionResult
}

var probes = []probe{
	{"screnc", probeScrenc},
	{"base64", probeBase64},
	{"base64url", probeBase64URL},
	{"hex", probeHex},
	{"url-encoded", probeURL},
}

// SmartDetector recognizes Script Encoder envelopes and the transport
// encodings commonly wrapped around them.
type SmartDetector struct{}

func NewSmartDetector() *SmartDetector {
	return &SmartDetector{}
}

// Detect runs every probe over input and returns the guesses scoring at
// least minConfidence, best first.
func (d *SmartDetector) Detect(ctx context.Context, input []byte) ([]DetectionResult, error) {
	if len(input) == 0 {
		return nil, errors.New("empty input")
	}
	var out []DetectionResult
	for _, p := range probes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, r := range p.run(input) {
			if r.Confidence >= minConfidence {
				out = append(out, r)
			}
		}
	}
	slices.SortStableFunc(out, func(a, b DetectionResult) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	return out, nil
}

func (d *SmartDetector) SupportedEncodings() []string {
	names := make([]string, len(probes))
	for i, p := range probes {
		names[i] = p.encoding
	}
	return names
}

func guess(encoding, op string, confidence float64, reasoning string) []DetectionResult {
	return []DetectionResult{{
		Encoding:   encoding,
		Confidence: confidence,
		Reasoning:  reasoning,
		Operation:  op,
	}}
}

func probeScrenc(raw []byte) []DetectionResult {
	n := len(screnc.FindAll(raw))
	if n == 0 {
		return nil
	}
	return guess("screnc", "screnc_decode", 0.99, fmt.Sprintf("contains %d Script Encoder envelope(s)", n))
}

func probeBase64(raw []byte) []DetectionResult {
	s := stripSpace(string(raw))
	if s == "" || !base64Alphabet.MatchString(s) {
		return nil
	}
	if _, err := base64.StdEncoding.DecodeString(s); err == nil {
		return guess("base64", "base64_decode", 0.9, "padded base64 that decodes cleanly")
	}
	if _, err := base64.RawStdEncoding.DecodeString(strings.TrimRight(s, "=")); err == nil {
		return guess("base64", "base64_decode", 0.7, "unpadded base64")
	}
	return nil
}

func probeBase64URL(raw []byte) []DetectionResult {
	s := stripSpace(string(raw))
	if !strings.ContainsAny(s, "-_") || !base64URLAlphabet.MatchString(s) {
		return nil
	}
	if _, err := base64.URLEncoding.DecodeString(s); err != nil {
		return nil
	}
	return guess("base64url", "base64url_decode", 0.85, "URL-safe base64 alphabet")
}

// probeHex scores hex above base64 because every even-length hex string is
// also valid base64.
func probeHex(raw []byte) []DetectionResult {
	s := stripSpace(string(raw))
	body, prefixed := strings.CutPrefix(s, "0x")
	body = strings.NewReplacer(":", "", "-", "").Replace(body)
	if len(body)%2 != 0 || !hexAlphabet.MatchString(body) {
		return nil
	}
	if _, err := hex.DecodeString(body); err != nil {
		return nil
	}
	confidence := 0.92
	if prefixed {
		confidence = 0.95
	}
	if onlyDigits.MatchString(body) {
		// could just as well be a decimal number
		confidence *= 0.6
	}
	return guess("hex", "hex_decode", confidence, "hexadecimal digits")
}

func probeURL(raw []byte) []DetectionResult {
	s := string(raw)
	escapes := len(percentEscape.FindAllStringIndex(s, -1))
	if escapes == 0 {
		return nil
	}
	density := float64(escapes*3) / float64(len(s))
	confidence := 0.5 + math.Min(float64(escapes)*0.1, 0.3) + math.Min(density, 0.2)
	return guess("url-encoded", "url_decode", math.Min(confidence, 0.95),
		fmt.Sprintf("contains %d percent escapes", escapes))
}

// DecodeResult is the outcome of running one detection's operation.
type DecodeResult struct {
	Detection DetectionResult `json:"detection"`
	Decoded   []byte          `json:"decoded"`
	Success   bool            `json:"success"`
	Error     string          `json:"error,omitempty"`
}

// DecodeAll runs the operation behind every detection on input.
func DecodeAll(ctx context.Context, input []byte) ([]DecodeResult, error) {
	detections, err := NewSmartDetector().Detect(ctx, input)
	if err != nil {
		return nil, err
	}
	var out []DecodeResult
	for _, det := range detections {
		op, ok := GetOperation(det.Operation)
		if !ok {
			continue
		}
		res := DecodeResult{Detection: det}
		if decoded, err := op.Execute(ctx, input, nil); err != nil {
			res.Error = err.Error()
		} else {
			res.Decoded, res.Success = decoded, true
		}
		out = append(out, res)
	}
	return out, nil
}

// DefaultPeelDepth bounds how many transport layers Peel removes.
const DefaultPeelDepth = 4

// Peel strips transport encodings from input until a Script Encoder envelope
// becomes visible. It returns the unwrapped bytes together with the pipeline
// that produced them. When input already contains an envelope, or no layer
// can be removed, it returns input unchanged and an empty pipeline.
func Peel(ctx context.Context, input []byte, maxDepth int) ([]byte, *Pipeline, error) {
	if maxDepth <= 0 {
		maxDepth = DefaultPeelDepth
	}
	detector := NewSmartDetector()
	current := input
	var steps []string

	for len(steps) < maxDepth {
		if _, ok := screnc.Find(current); ok {
			return current, NewPipeline(steps...), nil
		}
		if len(bytes.TrimSpace(current)) == 0 {
			break
		}
		next, op, err := peelOnce(ctx, detector, current)
		if err != nil {
			return nil, nil, err
		}
		if op == "" {
			break
		}
		current = next
		steps = append(steps, op)
	}

	if _, ok := screnc.Find(current); ok {
		return current, NewPipeline(steps...), nil
	}
	return input, NewPipeline(), nil
}

// peelOnce applies the most likely transport decoding that changes data.
// An empty op means nothing applied.
func peelOnce(ctx context.Context, d *SmartDetector, data []byte) ([]byte, string, error) {
	detections, err := d.Detect(ctx, data)
	if err != nil {
		return nil, "", err
	}
	for _, det := range detections {
		if det.Operation == "screnc_decode" {
			continue
		}
		op, ok := GetOperation(det.Operation)
		if !ok {
			continue
		}
		out, err := op.Execute(ctx, data, nil)
		if err == nil && !bytes.Equal(out, data) {
			return out, det.Operation, nil
		}
	}
	return nil, "", nil
}
