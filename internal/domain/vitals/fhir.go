package vitals

import (
	"strconv"
	"time"

	"github.com/rpm/rpm/internal/platform/fhir"
)

// CodeCustom is the observation code for metrics without a LOINC mapping.
const CodeCustom = "custom"

var loincCodes = map[string]string{
	"heart_rate":       "8867-4",
	"spo2":             "59408-5",
	"bp_systolic":      "8480-6",
	"bp_diastolic":     "8462-4",
	"respiratory_rate": "9279-1",
	"temperature":      "8310-5",
	"blood_glucose":    "2339-0",
	"activity":         "41950-7",
}

// LOINCCode returns the LOINC code for metric, or CodeCustom.
func LOINCCode(metric string) string {
	if code, ok := loincCodes[metric]; ok {
		return code
	}
	return CodeCustom
}

var interpretationCodes = map[Status]fhir.Coding{
	StatusNormal:   {Code: "N", Display: "Normal"},
	StatusWarning:  {Code: "A", Display: "Abnormal"},
	StatusCritical: {Code: "AA", Display: "Critical abnormal"},
}

// ToFHIR renders the measurement as an R4 Observation.
func (m *Measurement) ToFHIR() map[string]interface{} {
	code := LOINCCode(m.Metric)
	coding := fhir.Coding{Code: code}
	if code != CodeCustom {
		coding.System = fhir.SystemLOINC
	}
	result := map[string]interface{}{
		"resourceType": "Observation",
		"status":       fhir.ObsStatusFinal,
		"category": []fhir.CodeableConcept{{
			Coding: []fhir.Coding{{
				System:  fhir.SystemObservationCategory,
				Code:    fhir.ObsCategoryVitalSigns,
				Display: "Vital Signs",
			}},
		}},
		"code":              fhir.CodeableConcept{Coding: []fhir.Coding{coding}, Text: m.Metric},
		"subject":           fhir.Reference{Reference: fhir.FormatReference("Patient", m.PatientID)},
		"effectiveDateTime": m.Timestamp.UTC().Format(time.RFC3339),
		"valueQuantity": map[string]interface{}{
			"value": m.Value,
			"unit":  m.Unit,
		},
	}
	if m.ID != 0 {
		result["id"] = strconv.FormatInt(m.ID, 10)
	}
	if m.Source != "" {
		result["device"] = fhir.Reference{Display: m.Source}
	}
	if c, ok := interpretationCodes[m.Status]; ok {
		c.System = fhir.SystemInterpretation
		result["interpretation"] = []fhir.CodeableConcept{{Coding: []fhir.Coding{c}}}
	}
	if m.NormalLow != nil || m.NormalHigh != nil {
		rr := map[string]interface{}{}
		if m.NormalLow != nil {
			rr["low"] = map[string]interface{}{"value": *m.NormalLow, "unit": m.Unit}
		}
		if m.NormalHigh != nil {
			rr["high"] = map[string]interface{}{"value": *m.NormalHigh, "unit": m.Unit}
		}
		result["referenceRange"] = []interface{}{rr}
	}
	return result
}
