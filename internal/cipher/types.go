package cipher

import (
	"context"
	"fmt"
)

// OperationType groups operations by the direction they transform data.
type OperationType string

const (
	OperationTypeEncode  OperationType = "encode"
	OperationTypeDecode  OperationType = "decode"
	OperationTypeExtract OperationType = "extract"
)

// Operation is a named byte transformation. Parameters are operation
// specific; nil means defaults.
type Operation interface {
	Name() string
	Type() OperationType
	Description() string
	Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error)
	// Reverse returns the inverse operation, if there is one.
	Reverse() (Operation, bool)
}

// DetectionResult is one guess at how an input is encoded, with the
// operation that would undo it.
type DetectionResult struct {
	Encoding   string  `json:"encoding"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
	Operation  string  `json:"operation"`
}

// Detector guesses the encodings applied to an input.
type Detector interface {
	Detect(ctx context.Context, input []byte) ([]DetectionResult, error)
	SupportedEncodings() []string
}

var _ Detector = (*SmartDetector)(nil)

// BaseOperation carries the descriptive fields shared by every operation.
type BaseOperation struct {
	NameValue        string
	TypeValue        OperationType
	DescriptionValue string
	ReverseOp        Operation
}

func (b *BaseOperation) Name() string               { return b.NameValue }
func (b *BaseOperation) Type() OperationType        { return b.TypeValue }
func (b *BaseOperation) Description() string        { return b.DescriptionValue }
func (b *BaseOperation) Reverse() (Operation, bool) { return b.ReverseOp, b.ReverseOp != nil }

// boolParam reads an optional boolean parameter.
func boolParam(params map[string]interface{}, key string) (bool, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return false, nil
	}
	v, ok := raw.(bool)
	if !ok {
		return false, fmt.Errorf("parameter %q must be a boolean, got %T", key, raw)
	}
	return v, nil
}
