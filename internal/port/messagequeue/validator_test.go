package messagequeue

import (
	"strings"
	"testing"
)

func TestValidateProjectUpdated(t *testing.T) {
	data := []byte(`{"tenant_id":"t1","project_id":"p1","updated_at":"2024-01-01T00:00:00.000Z"}`)
	if err := Validate(SubjectProjectUpdated, data); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateProjectDeletedMissingProject(t *testing.T) {
	err := Validate(SubjectProjectDeleted, []byte(`{"tenant_id":"t1"}`))
	if err == nil {
		t.Fatal("expected error for missing project_id")
	}
	if !strings.Contains(err.Error(), "project_id") {
		t.Errorf("error should name the field: %v", err)
	}
}

func TestValidateWrongFieldType(t *testing.T) {
	if err := Validate(SubjectProjectUpdated, []byte(`{"tenant_id":1,"project_id":"p1"}`)); err == nil {
		t.Fatal("expected error for numeric tenant_id")
	}
}

func TestValidateInvalidJSON(t *testing.T) {
	err := Validate(SubjectProjectUpdated, []byte(`{not json`))
	if err == nil || !strings.Contains(err.Error(), "invalid JSON") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
}

func TestValidateUnknownSubject(t *testing.T) {
	if err := Validate("graphs.something", []byte(`{"anything":true}`)); err != nil {
		t.Fatalf("unknown subjects should pass: %v", err)
	}
}
