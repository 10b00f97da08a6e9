package cipher

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
)

// ErrDuplicateOperation is returned when a name is registered twice.
var ErrDuplicateOperation = errors.New("operation already registered")

// Registry maps operation names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu  sync.RWMutex
	ops map[string]Operation
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{ops: make(map[string]Operation)}
}

var defaultRegistry = NewRegistry()

// Register adds op under its name.
func (r *Registry) Register(op Operation) error {
	if op == nil {
		return errors.New("cannot register nil operation")
	}
	name := strings.TrimSpace(op.Name())
	if name == "" {
		return errors.New("operation name cannot be empty")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.ops[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, name)
	}
	r.ops[name] = op
	return nil
}

// Lookup returns the operation registered under name.
func (r *Registry) Lookup(name string) (Operation, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	op, ok := r.ops[name]
	return op, ok
}

// Remove deletes name from the registry.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.ops, name)
}

// List returns the operations accepted by keep, sorted by name. A nil keep
// returns everything.
func (r *Registry) List(keep func(Operation) bool) []Operation {
	r.mu.RLock()
	out := make([]Operation, 0, len(r.ops))
	for _, op := range r.ops {
		if keep == nil || keep(op) {
			out = append(out, op)
		}
	}
	r.mu.RUnlock()
	slices.SortFunc(out, func(a, b Operation) int { return strings.Compare(a.Name(), b.Name()) })
	return out
}

// RegisterOperation adds op to the package registry.
func RegisterOperation(op Operation) error {
	return defaultRegistry.Register(op)
}

// GetOperation looks name up in the package registry.
func GetOperation(name string) (Operation, bool) {
	return defaultRegistry.Lookup(name)
}

// ListOperations returns every registered operation sorted by name.
func ListOperations() []Operation {
	return defaultRegistry.List(nil)
}

// ListOperationsByType returns the registered operations of one type.
func ListOperationsByType(opType OperationType) []Operation {
	return defaultRegistry.List(func(op Operation) bool { return op.Type() == opType })
}

// UnregisterOperation removes name from the package registry. Tests use it
// to clean up mock operations.
func UnregisterOperation(name string) {
	defaultRegistry.Remove(name)
}

// mustRegister is used by init functions; builtin names never collide.
func mustRegister(op Operation) {
	if err := RegisterOperation(op); err != nil {
		panic(err)
	}
}
