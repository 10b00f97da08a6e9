package cipher

import (
	"bytes"
	"context"
	"fmt"

	"github.com/RowanDark/scrdec/internal/screnc"
)

// ScrencDecodeOp decodes a bare Script Encoder payload, or, when the input
// holds complete #@~^ envelopes, the payload of each envelope joined by a
// newline.
//
// Parameters:
//   - strict (bool): fail with *screnc.StructuralFault instead of passing
//     out-of-domain bytes through
type ScrencDecodeOp struct {
	BaseOperation
}

func (op *ScrencDecodeOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	strict, err := boolParam(params, "strict")
	if err != nil {
		return nil, err
	}

	envs := screnc.FindAll(input)
	if len(envs) == 0 {
		return decodePayload(input, strict)
	}

	parts := make([][]byte, 0, len(envs))
	for _, env := range envs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		decoded, err := decodePayload(env.Payload, strict)
		if err != nil {
			return nil, fmt.Errorf("envelope at offset %d: %w", env.Start, err)
		}
		parts = append(parts, decoded)
	}
	return bytes.Join(parts, []byte("\n")), nil
}

func decodePayload(payload []byte, strict bool) ([]byte, error) {
	if strict {
		return screnc.DecodeStrict(payload)
	}
	return screnc.Decode(payload), nil
}

// ScrencExtractOp returns the raw envelopes found in the input, without
// decoding them. It is useful as the first step of a pipeline that needs to
// see the encoded text.
//
// Parameters:
//   - first (bool): return only the leftmost envelope
type ScrencExtractOp struct {
	BaseOperation
}

func (op *ScrencExtractOp) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	first, err := boolParam(params, "first")
	if err != nil {
		return nil, err
	}

	var parts [][]byte
	for env := range screnc.Envelopes(input) {
		parts = append(parts, input[env.Start:env.End])
		if first {
			break
		}
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("no encoded script found")
	}
	return bytes.Join(parts, []byte("\n")), nil
}

func init() {
	mustRegister(&ScrencDecodeOp{
		BaseOperation: BaseOperation{
			NameValue:        "screnc_decode",
			TypeValue:        OperationTypeDecode,
			DescriptionValue: "Decode Microsoft Script Encoder (#@~^) payloads",
		},
	})
	mustRegister(&ScrencExtractOp{
		BaseOperation: BaseOperation{
			NameValue:        "screnc_extract",
			TypeValue:        OperationTypeExtract,
			DescriptionValue: "Extract #@~^ envelopes without decoding them",
		},
	})
}
