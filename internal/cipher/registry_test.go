package cipher

import (
	"context"
	"errors"
	"sort"
	"testing"
)

// mockOperation is a test implementation of Operation
type mockOperation struct {
	BaseOperation
}

func (m *mockOperation) Execute(ctx context.Context, input []byte, params map[string]interface{}) ([]byte, error) {
	return input, nil
}

func registerMock(t *testing.T, name string, opType OperationType) *mockOperation {
	t.Helper()
	op := &mockOperation{
		BaseOperation: BaseOperation{
			NameValue:        name,
			TypeValue:        opType,
			DescriptionValue: "Mock operation for testing",
		},
	}
	if err := RegisterOperation(op); err != nil {
		t.Fatalf("failed to register operation: %v", err)
	}
	t.Cleanup(func() { UnregisterOperation(name) })
	return op
}

func TestRegisterOperation(t *testing.T) {
	op := registerMock(t, "mock", OperationTypeEncode)

	if err := RegisterOperation(op); !errors.Is(err, ErrDuplicateOperation) {
		t.Fatalf("duplicate registration returned %v", err)
	}
	if err := RegisterOperation(nil); err == nil {
		t.Fatal("expected error when registering nil operation")
	}
	if err := RegisterOperation(&mockOperation{}); err == nil {
		t.Fatal("expected error when registering unnamed operation")
	}
}

func TestGetOperation(t *testing.T) {
	registerMock(t, "test-op", OperationTypeEncode)

	retrieved, exists := GetOperation("test-op")
	if !exists {
		t.Fatal("operation should exist")
	}
	if retrieved.Name() != "test-op" {
		t.Errorf("expected name 'test-op', got '%s'", retrieved.Name())
	}

	if _, exists := GetOperation("non-existent"); exists {
		t.Fatal("non-existent operation should not exist")
	}
}

func TestBuiltinOperationsRegistered(t *testing.T) {
	for _, name := range []string{
		"base64_encode", "base64_decode",
		"base64url_encode", "base64url_decode",
		"url_encode", "url_decode",
		"hex_encode", "hex_decode",
		"screnc_decode", "screnc_extract",
	} {
		if _, ok := GetOperation(name); !ok {
			t.Errorf("operation %s not registered", name)
		}
	}
}

func TestListOperations(t *testing.T) {
	registerMock(t, "zz-mock", OperationTypeEncode)

	list := ListOperations()
	names := make([]string, 0, len(list))
	for _, op := range list {
		names = append(names, op.Name())
	}
	if !sort.StringsAreSorted(names) {
		t.Errorf("operations should be sorted by name: %v", names)
	}
	if names[len(names)-1] != "zz-mock" {
		t.Errorf("expected zz-mock last, got %v", names)
	}
}

func TestListOperationsByType(t *testing.T) {
	registerMock(t, "extract-mock", OperationTypeExtract)

	extractors := ListOperationsByType(OperationTypeExtract)
	if len(extractors) != 2 {
		t.Fatalf("expected 2 extractors, got %d", len(extractors))
	}
	if extractors[0].Name() != "extract-mock" || extractors[1].Name() != "screnc_extract" {
		t.Errorf("unexpected extractors: %s, %s", extractors[0].Name(), extractors[1].Name())
	}

	for _, op := range ListOperationsByType(OperationTypeDecode) {
		if op.Type() != OperationTypeDecode {
			t.Errorf("%s has type %s", op.Name(), op.Type())
		}
	}
}

func TestUnregisterOperation(t *testing.T) {
	registerMock(t, "temporary", OperationTypeDecode)
	UnregisterOperation("temporary")
	if _, ok := GetOperation("temporary"); ok {
		t.Fatal("operation should have been removed")
	}
}

func TestRegistryIsolated(t *testing.T) {
	r := NewRegistry()
	if got := r.List(nil); len(got) != 0 {
		t.Fatalf("new registry has %d operations", len(got))
	}
	builtin := mustOperation(t, "hex_decode")
	if err := r.Register(builtin); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := r.Lookup("base64_decode"); ok {
		t.Fatal("package operations leaked into a new registry")
	}
	r.Remove("hex_decode")
	if _, ok := r.Lookup("hex_decode"); ok {
		t.Fatal("operation not removed")
	}
	if _, ok := GetOperation("hex_decode"); !ok {
		t.Fatal("removing from a private registry touched the package registry")
	}
}
