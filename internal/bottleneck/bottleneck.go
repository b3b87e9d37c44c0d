// Package bottleneck compares each entity's metrics against its group's
// central tendency and flags outliers: low efficiency, disproportionate
// volume, and uneven workload distribution across the group.
package bottleneck

import (
	"sort"

	"github.com/manfullwel/ska/internal/stats"
	"github.com/manfullwel/ska/internal/types"
)

// Thresholds encode the detection policy. They are policy, not
// mathematics, so they stay configurable.
type Thresholds struct {
	// EfficiencyFactor flags entities below this fraction of the group
	// mean efficiency.
	EfficiencyFactor float64
	// VolumeFactor flags entities above this multiple of the group mean
	// volume.
	VolumeFactor float64
	// DistributionCV flags the group when the coefficient of variation
	// of per-entity volumes exceeds it.
	DistributionCV float64
}

// DefaultThresholds returns the source system's policy.
func DefaultThresholds() Thresholds {
	return Thresholds{
		EfficiencyFactor: 0.7,
		VolumeFactor:     1.5,
		DistributionCV:   0.5,
	}
}

// Detector evaluates one group at a time under a fixed policy.
type Detector struct {
	thresholds Thresholds
}

// NewDetector creates a Detector. Zero-value thresholds fall back to the
// defaults.
func NewDetector(t Thresholds) *Detector {
	def := DefaultThresholds()
	if t.EfficiencyFactor <= 0 {
		t.EfficiencyFactor = def.EfficiencyFactor
	}
	if t.VolumeFactor <= 0 {
		t.VolumeFactor = def.VolumeFactor
	}
	if t.DistributionCV <= 0 {
		t.DistributionCV = def.DistributionCV
	}
	return &Detector{thresholds: t}
}

// Detect flags outliers within one group. An empty group produces no
// flags. An entity can carry several independent flags. Output order is
// deterministic: entities ascending, the group-level distribution flag
// last.
func (d *Detector) Detect(group string, entities map[string]types.EntityMetrics) []types.BottleneckFlag {
	if len(entities) == 0 {
		return nil
	}

	names := make([]string, 0, len(entities))
	for name := range entities {
		names = append(names, name)
	}
	sort.Strings(names)

	volumes := make([]float64, 0, len(names))
	efficiencies := make([]float64, 0, len(names))
	for _, name := range names {
		m := entities[name]
		volumes = append(volumes, float64(m.TotalRecords))
		efficiencies = append(efficiencies, m.EfficiencyRate)
	}
	meanVolume := stats.Mean(volumes)
	meanEfficiency := stats.Mean(efficiencies)

	var flags []types.BottleneckFlag
	for _, name := range names {
		m := entities[name]

		if m.EfficiencyRate < meanEfficiency*d.thresholds.EfficiencyFactor {
			flags = append(flags, types.BottleneckFlag{
				Entity:           name,
				Group:            group,
				Kind:             types.BottleneckEfficiency,
				Observed:         m.EfficiencyRate,
				GroupMean:        meanEfficiency,
				PercentDeviation: percentDeviation(m.EfficiencyRate, meanEfficiency),
			})
		}

		volume := float64(m.TotalRecords)
		if volume > meanVolume*d.thresholds.VolumeFactor {
			flags = append(flags, types.BottleneckFlag{
				Entity:           name,
				Group:            group,
				Kind:             types.BottleneckVolume,
				Observed:         volume,
				GroupMean:        meanVolume,
				PercentDeviation: percentDeviation(volume, meanVolume),
			})
		}
	}

	// Workload spread is a property of the group, not of one entity.
	if len(volumes) > 1 {
		cv := stats.CoefficientOfVariation(volumes)
		if cv > d.thresholds.DistributionCV {
			flags = append(flags, types.BottleneckFlag{
				Group:    group,
				Kind:     types.BottleneckDistribution,
				Observed: cv,
			})
		}
	}

	return flags
}

func percentDeviation(observed, mean float64) float64 {
	if mean == 0 {
		return 0
	}
	return (observed/mean - 1) * 100
}
