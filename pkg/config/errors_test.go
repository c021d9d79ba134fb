package config

import (
	"errors"
	"testing"
)

func TestValidationError_ErrorIncludesGroupAndField(t *testing.T) {
	err := NewValidationError("database", "host", ErrMissingRequiredField)
	want := `database: field "host": missing required field`
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrMissingRequiredField) {
		t.Fatal("expected errors.Is to unwrap to ErrMissingRequiredField")
	}
}

func TestValidationError_WithoutFieldOmitsQuotes(t *testing.T) {
	err := NewValidationError("sla_agreements", "", ErrInvalidValue)
	want := "sla_agreements: invalid field value"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
}

func TestLoadError_WrapsFileAndCause(t *testing.T) {
	err := NewLoadError("adaptationengine.yaml", ErrConfigNotFound)
	want := "failed to load adaptationengine.yaml: configuration file not found"
	if err.Error() != want {
		t.Fatalf("got %q, want %q", err.Error(), want)
	}
	if !errors.Is(err, ErrConfigNotFound) {
		t.Fatal("expected errors.Is to unwrap to ErrConfigNotFound")
	}
}
