package fhir

import (
	"encoding/json"
	"testing"
)

func TestFormatReference(t *testing.T) {
	if got := FormatReference("Patient", "P001"); got != "Patient/P001" {
		t.Errorf("expected Patient/P001, got %s", got)
	}
}

func TestNewSearchBundle(t *testing.T) {
	resources := []map[string]interface{}{
		{"resourceType": "Observation", "id": "42", "status": "final"},
		{"resourceType": "Observation"},
	}
	b, err := NewSearchBundle(resources, "/api/v1/vitals/P001/fhir")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if b.ResourceType != "Bundle" || b.Type != "searchset" {
		t.Errorf("unexpected bundle header %s/%s", b.ResourceType, b.Type)
	}
	if b.Total == nil || *b.Total != 2 {
		t.Errorf("expected total 2, got %v", b.Total)
	}
	if len(b.Link) != 1 || b.Link[0].URL != "/api/v1/vitals/P001/fhir" {
		t.Errorf("unexpected links %+v", b.Link)
	}
	if b.Entry[0].FullURL != "Observation/42" {
		t.Errorf("expected fullUrl Observation/42, got %q", b.Entry[0].FullURL)
	}
	if b.Entry[1].FullURL != "" {
		t.Errorf("expected empty fullUrl without id, got %q", b.Entry[1].FullURL)
	}
	var decoded map[string]interface{}
	if err := json.Unmarshal(b.Entry[0].Resource, &decoded); err != nil {
		t.Fatalf("resource is not JSON: %v", err)
	}
	if decoded["status"] != "final" {
		t.Errorf("expected status final, got %v", decoded["status"])
	}
}

func TestNewSearchBundle_Empty(t *testing.T) {
	b, err := NewSearchBundle(nil, "/x")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *b.Total != 0 || len(b.Entry) != 0 {
		t.Errorf("expected empty bundle, got total %d entries %d", *b.Total, len(b.Entry))
	}
}
