package domain

import (
	"errors"
	"strings"
	"testing"
)

type sample struct {
	ID    string            `json:"id" validate:"required"`
	Items map[string]nested `json:"items" validate:"required,dive"`
}

type nested struct {
	Name string `json:"name" validate:"required"`
}

func TestValidateStruct(t *testing.T) {
	if err := ValidateStruct(sample{ID: "x", Items: map[string]nested{}}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	err := ValidateStruct(sample{Items: map[string]nested{}})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
	if !strings.Contains(err.Error(), "id") {
		t.Fatalf("expected json field name in error, got %v", err)
	}

	err = ValidateStruct(sample{ID: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected nil map to fail required, got %v", err)
	}

	err = ValidateStruct(sample{ID: "x", Items: map[string]nested{"a": {}}})
	if !errors.Is(err, ErrValidation) || !strings.Contains(err.Error(), "name") {
		t.Fatalf("expected nested failure, got %v", err)
	}
}
