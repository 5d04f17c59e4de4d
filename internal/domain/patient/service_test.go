package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func newTestService() *Service {
	return NewService(newMockRepo(), zerolog.Nop())
}

func samplePatient(id string) *Patient {
	return &Patient{
		ID:          id,
		Name:        "Ana Ruiz",
		Age:         67,
		Sex:         "female",
		HeightCM:    162,
		WeightKG:    70,
		Diagnoses:   []string{"COPD"},
		RiskProfile: RiskHigh,
		BaselineProfile: BaselineProfile{
			"heart_rate": {Mean: 82, Std: 4},
			"spo2":       {Mean: 93, Std: 1},
		},
	}
}

func TestService_Create(t *testing.T) {
	svc := newTestService()
	p := samplePatient("P001")
	if err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.MonitoringStatus != StatusActive {
		t.Errorf("expected default status active, got %q", p.MonitoringStatus)
	}
	if err := svc.Create(context.Background(), samplePatient("P001")); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestService_CreateValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Patient)
	}{
		{"missing id", func(p *Patient) { p.ID = " " }},
		{"missing name", func(p *Patient) { p.Name = "" }},
		{"bad risk", func(p *Patient) { p.RiskProfile = "extreme" }},
		{"bad status", func(p *Patient) { p.MonitoringStatus = "asleep" }},
		{"negative std", func(p *Patient) { p.BaselineProfile["spo2"] = MetricBaseline{Mean: 95, Std: -1} }},
		{"age out of range", func(p *Patient) { p.Age = 200 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := samplePatient("P001")
			tt.mutate(p)
			if err := newTestService().Create(context.Background(), p); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestService_Update(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Create(ctx, samplePatient("P001"))

	status := StatusPaused
	clinician := "clinician1"
	tier := RiskMedium
	got, err := svc.Update(ctx, "P001", Update{MonitoringStatus: &status, AssignedClinician: &clinician, RiskProfile: &tier})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.MonitoringStatus != StatusPaused || *got.AssignedClinician != "clinician1" || got.RiskProfile != RiskMedium {
		t.Errorf("unexpected patient after update: %+v", got)
	}
	if len(got.BaselineProfile) != 2 {
		t.Error("baseline profile should be untouched")
	}

	if _, err := svc.Update(ctx, "P404", Update{}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	bad := RiskTier("none")
	if _, err := svc.Update(ctx, "P001", Update{RiskProfile: &bad}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestService_Seed(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	svc.Create(ctx, samplePatient("P001"))

	n, err := svc.Seed(ctx, []Patient{*samplePatient("P001"), *samplePatient("P002")})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 new patient, got %d", n)
	}
	if ok, _ := svc.Exists(ctx, "P002"); !ok {
		t.Error("expected P002 to exist")
	}
}

func TestParseSeed(t *testing.T) {
	data := []byte(`
patients:
  - id: P001
    name: Ana Ruiz
    age: 67
    sex: female
    height_cm: 162
    weight_kg: 70
    diagnoses: [COPD, hypertension]
    risk_profile: high
    baseline_profile:
      heart_rate: {mean: 82, std: 4}
      spo2: {mean: 93, std: 1}
`)
	got, err := ParseSeed(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 patient, got %d", len(got))
	}
	p := got[0]
	if p.MonitoringStatus != StatusActive || p.BaselineProfile["heart_rate"].Mean != 82 || len(p.Diagnoses) != 2 {
		t.Errorf("unexpected patient %+v", p)
	}

	if _, err := ParseSeed([]byte("patients:\n  - id: P9\n    name: X\n    risk_profile: wild\n")); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestLoadSeedFile_Bundled(t *testing.T) {
	got, err := LoadSeedFile("../../../data/patients.yaml")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("expected bundled patients")
	}
}
