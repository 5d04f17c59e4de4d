package simulator

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Scenario shapes a run: linear drift per hour and an optional acute event
// that multiplies values for a span of minutes.
type Scenario struct {
	Name                string
	DriftPerHour        map[string]float64
	AcuteMultiplier     map[string]float64
	AcuteStartMinute    int
	AcuteDurationMinute int
}

var Scenarios = map[string]Scenario{
	"stable": {Name: "stable"},
	"gradual_deterioration": {
		Name:         "gradual_deterioration",
		DriftPerHour: map[string]float64{"heart_rate": 0.6, "bp_systolic": 0.8, "spo2": -0.2, "respiratory_rate": 0.3},
	},
	"sudden_critical": {
		Name:                "sudden_critical",
		AcuteMultiplier:     map[string]float64{"heart_rate": 1.3, "spo2": 0.9, "respiratory_rate": 1.2},
		AcuteStartMinute:    30,
		AcuteDurationMinute: 15,
	},
	"recovery": {
		Name:         "recovery",
		DriftPerHour: map[string]float64{"heart_rate": -0.4, "bp_systolic": -0.6, "spo2": 0.2, "respiratory_rate": -0.2},
	},
}

// ScenarioNames lists the built-in scenarios in sorted order.
func ScenarioNames() []string {
	names := make([]string, 0, len(Scenarios))
	for n := range Scenarios {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// LookupScenario returns the named built-in scenario.
func LookupScenario(name string) (Scenario, error) {
	s, ok := Scenarios[name]
	if !ok {
		return Scenario{}, fmt.Errorf("unknown scenario %q (want one of %s)", name, strings.Join(ScenarioNames(), ", "))
	}
	return s, nil
}

// WithEvent replaces the acute event with multipliers parsed from
// "metric=factor,metric=factor".
func (s Scenario) WithEvent(spec string, startMinute, durationMinutes int) (Scenario, error) {
	mult := make(map[string]float64)
	for _, pair := range strings.Split(spec, ",") {
		metric, raw, ok := strings.Cut(pair, "=")
		metric = strings.TrimSpace(metric)
		if !ok || metric == "" {
			return s, fmt.Errorf("invalid event %q", pair)
		}
		if _, known := specFor(metric); !known {
			return s, fmt.Errorf("unknown metric %q in event", metric)
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil || f <= 0 {
			return s, fmt.Errorf("invalid multiplier for %s: %q", metric, raw)
		}
		mult[metric] = f
	}
	s.Name += "_custom_event"
	s.AcuteMultiplier = mult
	s.AcuteStartMinute = startMinute
	s.AcuteDurationMinute = durationMinutes
	return s, nil
}

func (s Scenario) drift(metric string, minutesElapsed int) float64 {
	return s.DriftPerHour[metric] * float64(minutesElapsed) / 60
}

func (s Scenario) multiplier(metric string, minutesElapsed int) float64 {
	if s.AcuteDurationMinute == 0 {
		return 1
	}
	end := s.AcuteStartMinute + s.AcuteDurationMinute
	if minutesElapsed < s.AcuteStartMinute || minutesElapsed > end {
		return 1
	}
	if m, ok := s.AcuteMultiplier[metric]; ok {
		return m
	}
	return 1
}
