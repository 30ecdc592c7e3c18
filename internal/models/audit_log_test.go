package models

import (
	"testing"
)

func TestAuditMetadata_ScanValueRoundTrip(t *testing.T) {
	in := AuditMetadata{
		"email":    "user@example.com",
		"attempts": float64(5),
	}

	raw, err := in.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}

	var out AuditMetadata
	if err := out.Scan(raw); err != nil {
		t.Fatalf("Scan returned error: %v", err)
	}

	if out["email"] != "user@example.com" {
		t.Errorf("expected email user@example.com, got %v", out["email"])
	}
	if out["attempts"] != float64(5) {
		t.Errorf("expected attempts 5, got %v", out["attempts"])
	}
}

func TestAuditMetadata_ScanNil(t *testing.T) {
	var m AuditMetadata
	if err := m.Scan(nil); err != nil {
		t.Fatalf("Scan(nil) returned error: %v", err)
	}
	if m == nil {
		t.Error("expected Scan(nil) to initialize an empty map")
	}
	if len(m) != 0 {
		t.Errorf("expected empty metadata, got %v", m)
	}
}

func TestAuditMetadata_ScanRejectsNonBytes(t *testing.T) {
	var m AuditMetadata
	if err := m.Scan(42); err == nil {
		t.Error("expected error scanning a non-byte value")
	}
}

func TestAuditMetadata_NilValue(t *testing.T) {
	var m AuditMetadata
	v, err := m.Value()
	if err != nil {
		t.Fatalf("Value returned error: %v", err)
	}
	if v != nil {
		t.Errorf("expected nil driver value for nil metadata, got %v", v)
	}
}
