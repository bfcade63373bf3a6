package insights

import "testing"

// multiSignalOverview trips three generators: a critical volume decline, a
// below-target utilization warning with a large financial estimate, and a
// first-case warning with a smaller one.
func multiSignalOverview() *Overview {
	return &Overview{
		PeriodDays: 30,
		FCOTS: FCOTSMetric{
			Metric:          Metric{Value: 72, Target: f64(80)},
			LateCount:       7,
			TotalFirstCases: 25,
		},
		ORUtilization: UtilizationMetric{
			Metric:         Metric{Value: 60, Target: f64(75)},
			Rooms:          []RoomUtilization{{Name: "OR 1", UtilizationPct: 60, AvailableMinutes: 3000, UsedMinutes: 600}},
			RoomDaysActive: 10,
		},
		CaseVolume: Metric{Value: 120, Delta: f64(30), DeltaType: "decrease"},
	}
}

func TestGenerate_OrdersBySeverityThenImpact(t *testing.T) {
	got := Generate(multiSignalOverview(), Config{})

	if len(got) != 3 {
		t.Fatalf("expected 3 insights, got %d: %+v", len(got), got)
	}
	want := []string{"scheduling-volume-decline", "utilization-below-target", "fcots-delays"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d = %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestGenerate_CapsAtMaxInsights(t *testing.T) {
	got := Generate(multiSignalOverview(), Config{MaxInsights: 1})

	if len(got) != 1 {
		t.Fatalf("expected 1 insight, got %d", len(got))
	}
	if got[0].ID != "scheduling-volume-decline" {
		t.Errorf("the cap should keep the highest ranked insight, got %s", got[0].ID)
	}
}

func TestGenerate_SeverityFloor(t *testing.T) {
	o := multiSignalOverview()

	got := Generate(o, Config{MinSeverityToShow: SeverityWarning})
	if len(got) != 3 {
		t.Fatalf("warning floor should keep critical and warning, got %d", len(got))
	}

	got = Generate(o, Config{MinSeverityToShow: SeverityCritical})
	if len(got) != 1 || got[0].Severity != SeverityCritical {
		t.Fatalf("critical floor should keep only critical insights, got %+v", got)
	}
}

func TestGenerate_FiltersPositivesBelowFloor(t *testing.T) {
	o := &Overview{ORUtilization: UtilizationMetric{
		Metric: Metric{Value: 78, Target: f64(75), TargetMet: true},
	}}

	if got := Generate(o, Config{}); len(got) != 1 || got[0].Severity != SeverityPositive {
		t.Fatalf("info floor keeps positives, got %+v", got)
	}
	if got := Generate(o, Config{MinSeverityToShow: SeverityWarning}); len(got) != 0 {
		t.Fatalf("warning floor drops positives, got %+v", got)
	}
}

func TestGenerate_StableOrderForEqualRank(t *testing.T) {
	// Two warnings, neither carrying a financial estimate: generator order
	// must hold.
	o := &Overview{
		FCOTS:         FCOTSMetric{Metric: Metric{Value: 72, Target: f64(80)}},
		ORUtilization: UtilizationMetric{Metric: Metric{Value: 60, Target: f64(75)}},
	}

	got := Generate(o, Config{})
	if len(got) != 2 {
		t.Fatalf("expected 2 insights, got %d", len(got))
	}
	if got[0].ID != "fcots-delays" || got[1].ID != "utilization-below-target" {
		t.Errorf("equal-rank insights reordered: %s, %s", got[0].ID, got[1].ID)
	}
}
