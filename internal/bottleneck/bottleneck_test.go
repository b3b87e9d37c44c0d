package bottleneck

import (
	"math"
	"testing"

	"github.com/manfullwel/ska/internal/types"
)

func entity(total int, efficiency float64) types.EntityMetrics {
	return types.EntityMetrics{TotalRecords: total, EfficiencyRate: efficiency}
}

func flagsOfKind(flags []types.BottleneckFlag, kind string) []types.BottleneckFlag {
	var out []types.BottleneckFlag
	for _, f := range flags {
		if f.Kind == kind {
			out = append(out, f)
		}
	}
	return out
}

func TestDetect_UniformGroupHasNoFlags(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	flags := d.Detect("alpha", map[string]types.EntityMetrics{
		"a": entity(100, 0.8),
		"b": entity(100, 0.8),
		"c": entity(100, 0.8),
	})
	if len(flags) != 0 {
		t.Errorf("flags = %v, want none for a uniform group", flags)
	}
}

func TestDetect_EmptyGroup(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	if flags := d.Detect("alpha", nil); flags != nil {
		t.Errorf("flags = %v, want nil for empty group", flags)
	}
}

func TestDetect_EfficiencyOutlier(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	// Mean efficiency 0.6; 0.7×0.6 = 0.42; carol at 0.2 is below.
	flags := d.Detect("alpha", map[string]types.EntityMetrics{
		"alice": entity(100, 0.8),
		"bob":   entity(100, 0.8),
		"carol": entity(100, 0.2),
	})

	eff := flagsOfKind(flags, types.BottleneckEfficiency)
	if len(eff) != 1 {
		t.Fatalf("efficiency flags = %d, want 1", len(eff))
	}
	if eff[0].Entity != "carol" {
		t.Errorf("flagged = %q, want carol", eff[0].Entity)
	}
	if math.Abs(eff[0].GroupMean-0.6) > 1e-9 {
		t.Errorf("group mean = %v, want 0.6", eff[0].GroupMean)
	}
	// (0.2/0.6 − 1)×100 ≈ −66.7%.
	if eff[0].PercentDeviation > -66 || eff[0].PercentDeviation < -67 {
		t.Errorf("deviation = %v, want ≈−66.7", eff[0].PercentDeviation)
	}
}

func TestDetect_VolumeAndDistribution(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	// Volumes 100, 100, 400: mean 200, CV ≈ 0.71 > 0.5.
	flags := d.Detect("alpha", map[string]types.EntityMetrics{
		"alice": entity(100, 0.5),
		"bob":   entity(100, 0.5),
		"carol": entity(400, 0.5),
	})

	vol := flagsOfKind(flags, types.BottleneckVolume)
	if len(vol) != 1 || vol[0].Entity != "carol" {
		t.Fatalf("volume flags = %v, want exactly carol", vol)
	}
	if vol[0].Observed != 400 || vol[0].GroupMean != 200 {
		t.Errorf("observed/mean = %v/%v, want 400/200", vol[0].Observed, vol[0].GroupMean)
	}
	if math.Abs(vol[0].PercentDeviation-100) > 1e-9 {
		t.Errorf("deviation = %v, want 100", vol[0].PercentDeviation)
	}

	dist := flagsOfKind(flags, types.BottleneckDistribution)
	if len(dist) != 1 {
		t.Fatalf("distribution flags = %d, want 1", len(dist))
	}
	if dist[0].Entity != "" {
		t.Errorf("distribution flag entity = %q, want group-level", dist[0].Entity)
	}
	if dist[0].Observed <= 0.5 {
		t.Errorf("CV = %v, want > 0.5", dist[0].Observed)
	}
}

func TestDetect_MultipleFlagsPerEntity(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	// carol is both a volume outlier and an efficiency outlier.
	flags := d.Detect("alpha", map[string]types.EntityMetrics{
		"alice": entity(100, 0.9),
		"bob":   entity(100, 0.9),
		"carol": entity(900, 0.1),
	})

	var carolKinds []string
	for _, f := range flags {
		if f.Entity == "carol" {
			carolKinds = append(carolKinds, f.Kind)
		}
	}
	if len(carolKinds) != 2 {
		t.Errorf("carol flags = %v, want efficiency and volume", carolKinds)
	}
}

func TestDetect_SingleEntityNoDistributionFlag(t *testing.T) {
	d := NewDetector(DefaultThresholds())
	flags := d.Detect("alpha", map[string]types.EntityMetrics{
		"alice": entity(500, 0.5),
	})
	if len(flagsOfKind(flags, types.BottleneckDistribution)) != 0 {
		t.Error("distribution flag requires at least two entities")
	}
}
