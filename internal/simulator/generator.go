package simulator

import (
	"math"
	"math/rand"
	"time"

	"github.com/rpm/rpm/internal/domain/patient"
	"github.com/rpm/rpm/internal/domain/vitals"
)

const (
	circadianPhaseShift = 3.0
	defaultStd          = 1.0
	Source              = "simulator_v1"
)

// Generator is not safe for concurrent use.
type Generator struct {
	rng *rand.Rand
}

// NewGenerator returns a generator with a deterministic source.
func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Generate returns one reading per catalogued metric that has a baseline mean.
func (g *Generator) Generate(baseline patient.BaselineProfile, sc Scenario, ts time.Time, minutesElapsed int) []vitals.Input {
	var out []vitals.Input
	for _, spec := range Catalogue {
		b, ok := baseline[spec.Name]
		if !ok {
			continue
		}
		std := b.Std
		if std == 0 {
			std = defaultStd
		}
		noise := g.rng.NormFloat64() * std
		value := (b.Mean + noise + circadian(spec, ts) + sc.drift(spec.Name, minutesElapsed)) *
			sc.multiplier(spec.Name, minutesElapsed)
		if spec.Name == "activity" {
			value = math.Max(0, value+g.rng.Float64()*1000-500)
		}

		low, high := spec.NormalLow, spec.NormalHigh
		out = append(out, vitals.Input{
			Timestamp:  ts,
			Metric:     spec.Name,
			Value:      math.Round(value*100) / 100,
			Unit:       spec.Unit,
			NormalLow:  &low,
			NormalHigh: &high,
			Source:     Source,
		})
	}
	return out
}

func circadian(spec MetricSpec, ts time.Time) float64 {
	hour := float64(ts.Hour()) + float64(ts.Minute())/60
	return math.Sin((hour+circadianPhaseShift)/24*2*math.Pi) * spec.CircadianAmp
}
