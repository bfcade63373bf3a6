package insights

import "sort"

type generator func(*Overview, Config) []Insight

// generators run in a fixed order so equally ranked insights come out in a
// stable, predictable sequence.
var generators = []generator{
	analyzeFirstCaseDelays,
	analyzeTurnoverEfficiency,
	analyzeCallbackOptimization,
	analyzeUtilizationGaps,
	analyzeCancellationTrends,
	analyzeNonOperativeTime,
	analyzeSchedulingPatterns,
}

// Generate derives prioritized insights from a metrics overview. The config
// is resolved first, so zero values fall back to facility defaults. The
// result is filtered to the configured severity floor, ordered by severity
// and then financial impact, and capped at MaxInsights.
func Generate(o *Overview, cfg Config) []Insight {
	rc := cfg.Resolve()

	var all []Insight
	for _, g := range generators {
		all = append(all, g(o, rc)...)
	}

	floor := rc.MinSeverityToShow.Rank()
	filtered := make([]Insight, 0, len(all))
	for _, ins := range all {
		if ins.Severity.Rank() <= floor {
			filtered = append(filtered, ins)
		}
	}

	sort.SliceStable(filtered, func(i, j int) bool {
		ri, rj := filtered[i].Severity.Rank(), filtered[j].Severity.Rank()
		if ri != rj {
			return ri < rj
		}
		return parseFinancialValue(filtered[i].FinancialImpact) > parseFinancialValue(filtered[j].FinancialImpact)
	})

	if len(filtered) > rc.MaxInsights {
		filtered = filtered[:rc.MaxInsights]
	}
	return filtered
}
