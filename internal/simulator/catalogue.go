// Package simulator generates synthetic vital signs from a patient's baseline
// profile and posts them to the ingest API.
package simulator

// MetricSpec describes how one metric is reported and its normal range.
type MetricSpec struct {
	Name         string
	Unit         string
	NormalLow    float64
	NormalHigh   float64
	CircadianAmp float64
}

// Catalogue lists the generated metrics in emission order.
var Catalogue = []MetricSpec{
	{Name: "heart_rate", Unit: "bpm", NormalLow: 60, NormalHigh: 100, CircadianAmp: 6},
	{Name: "bp_systolic", Unit: "mmHg", NormalLow: 90, NormalHigh: 130, CircadianAmp: 5},
	{Name: "bp_diastolic", Unit: "mmHg", NormalLow: 60, NormalHigh: 85, CircadianAmp: 3},
	{Name: "spo2", Unit: "%", NormalLow: 93, NormalHigh: 100, CircadianAmp: 0.8},
	{Name: "temperature", Unit: "C", NormalLow: 36.1, NormalHigh: 37.4, CircadianAmp: 0.2},
	{Name: "respiratory_rate", Unit: "rpm", NormalLow: 12, NormalHigh: 20, CircadianAmp: 1.5},
	{Name: "blood_glucose", Unit: "mg/dL", NormalLow: 70, NormalHigh: 140, CircadianAmp: 8},
	{Name: "activity", Unit: "steps", NormalLow: 0, NormalHigh: 12000, CircadianAmp: 1200},
}

func specFor(metric string) (MetricSpec, bool) {
	for _, s := range Catalogue {
		if s.Name == metric {
			return s, true
		}
	}
	return MetricSpec{}, false
}
