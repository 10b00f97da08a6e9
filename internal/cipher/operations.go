package cipher

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/url"
	"strings"
)

// transportOp is one direction of a reversible text transport encoding.
// Encoded scripts are commonly shipped inside one of these layers: base64 in
// mail bodies and droppers, hex in document macros, percent-encoding inside
// unescape() calls.
type transportOp struct {
	BaseOperation
	fn func([]byte) ([]byte, error)
}

func (op *transportOp) Execute(ctx context.Context, input []byte, _ map[string]interface{}) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out, err := op.fn(input)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op.Name(), err)
	}
	return out, nil
}

type transport struct {
	name   string
	label  string
	encode func([]byte) ([]byte, error)
	decode func([]byte) ([]byte, error)
}

var transports = []transport{
	{name: "base64", label: "standard Base64", encode: encodeBase64(base64.StdEncoding), decode: decodeBase64Std},
	{name: "base64url", label: "URL-safe Base64", encode: encodeBase64(base64.URLEncoding), decode: decodeBase64URL},
	{name: "url", label: "percent-encoded text", encode: encodeURL, decode: decodeURL},
	{name: "hex", label: "hexadecimal text", encode: encodeHex, decode: decodeHex},
}

func encodeBase64(enc *base64.Encoding) func([]byte) ([]byte, error) {
	return func(in []byte) ([]byte, error) {
		out := make([]byte, enc.EncodedLen(len(in)))
		enc.Encode(out, in)
		return out, nil
	}
}

// decodeBase64Std ignores whitespace and tolerates missing padding.
func decodeBase64Std(in []byte) ([]byte, error) {
	cleaned := stripSpace(string(in))
	if out, err := base64.StdEncoding.DecodeString(cleaned); err == nil {
		return out, nil
	}
	return base64.RawStdEncoding.DecodeString(strings.TrimRight(cleaned, "="))
}

func decodeBase64URL(in []byte) ([]byte, error) {
	if out, err := base64.URLEncoding.DecodeString(string(in)); err == nil {
		return out, nil
	}
	return base64.RawURLEncoding.DecodeString(string(in))
}

func encodeURL(in []byte) ([]byte, error) {
	return []byte(url.QueryEscape(string(in))), nil
}

func decodeURL(in []byte) ([]byte, error) {
	out, err := url.QueryUnescape(string(in))
	if err != nil {
		if out, err = url.PathUnescape(string(in)); err != nil {
			return nil, err
		}
	}
	return []byte(out), nil
}

func encodeHex(in []byte) ([]byte, error) {
	out := make([]byte, hex.EncodedLen(len(in)))
	hex.Encode(out, in)
	return out, nil
}

// decodeHex accepts 0x and \x prefixes and colon or dash separators.
func decodeHex(in []byte) ([]byte, error) {
	s := stripSpace(string(in))
	s = strings.TrimPrefix(s, "0x")
	s = strings.TrimPrefix(s, "\\x")
	s = strings.NewReplacer(":", "", "-", "").Replace(s)
	return hex.DecodeString(s)
}

func stripSpace(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\t', '\r', '\n':
			return -1
		}
		return r
	}, s)
}

func init() {
	for _, t := range transports {
		enc := &transportOp{
			BaseOperation: BaseOperation{
				NameValue:        t.name + "_encode",
				TypeValue:        OperationTypeEncode,
				DescriptionValue: "Encode data as " + t.label,
			},
			fn: t.encode,
		}
		dec := &transportOp{
			BaseOperation: BaseOperation{
				NameValue:        t.name + "_decode",
				TypeValue:        OperationTypeDecode,
				DescriptionValue: "Decode " + t.label,
			},
			fn: t.decode,
		}
		enc.ReverseOp, dec.ReverseOp = dec, enc
		mustRegister(enc)
		mustRegister(dec)
	}
}
