package cipher

import (
	"context"
	"fmt"
)

// OperationConfig is one step of a Pipeline.
type OperationConfig struct {
	Name       string                 `json:"name" yaml:"name"`
	Parameters map[string]interface{} `json:"parameters,omitempty" yaml:"parameters,omitempty"`
}

// Pipeline applies registered operations in order. The #h# and #b# literal
// inputs and the layers Peel strips from a wrapped script are both recorded
// as pipelines.
type Pipeline struct {
	Operations []OperationConfig `json:"operations" yaml:"operations"`
}

// NewPipeline builds a pipeline from operation names without parameters.
func NewPipeline(names ...string) *Pipeline {
	p := &Pipeline{Operations: make([]OperationConfig, 0, len(names))}
	for _, name := range names {
		p.Operations = append(p.Operations, OperationConfig{Name: name})
	}
	return p
}

func (p *Pipeline) resolve() ([]Operation, error) {
	ops := make([]Operation, len(p.Operations))
	for i, step := range p.Operations {
		op, ok := GetOperation(step.Name)
		if !ok {
			return nil, fmt.Errorf("unknown operation at step %d: %s", i, step.Name)
		}
		ops[i] = op
	}
	return ops, nil
}

// Execute runs every step against the output of the previous one.
func (p *Pipeline) Execute(ctx context.Context, input []byte) ([]byte, error) {
	ops, err := p.resolve()
	if err != nil {
		return nil, err
	}
	out := input
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out, err = op.Execute(ctx, out, p.Operations[i].Parameters); err != nil {
			return nil, fmt.Errorf("operation %s failed at step %d: %w", op.Name(), i, err)
		}
	}
	return out, nil
}

// Reverse returns the pipeline that undoes p. screnc_extract and
// screnc_decode have no inverse, so pipelines using them cannot be reversed.
func (p *Pipeline) Reverse() (*Pipeline, error) {
	ops, err := p.resolve()
	if err != nil {
		return nil, err
	}
	n := len(ops)
	reversed := &Pipeline{Operations: make([]OperationConfig, n)}
	for i, op := range ops {
		inverse, ok := op.Reverse()
		if !ok {
			return nil, fmt.Errorf("operation %s is not reversible", op.Name())
		}
		reversed.Operations[n-1-i] = OperationConfig{Name: inverse.Name(), Parameters: p.Operations[i].Parameters}
	}
	return reversed, nil
}

// Names returns the operation names in execution order.
func (p *Pipeline) Names() []string {
	names := make([]string, 0, len(p.Operations))
	for _, step := range p.Operations {
		names = append(names, step.Name)
	}
	return names
}
