package insights

import "testing"

func TestConfigResolve_Defaults(t *testing.T) {
	got := Config{}.Resolve()

	if got.RevenuePerORMinute != 36 {
		t.Errorf("RevenuePerORMinute = %v, want 36", got.RevenuePerORMinute)
	}
	if got.RevenuePerCase != 2500 {
		t.Errorf("RevenuePerCase = %v, want 2500", got.RevenuePerCase)
	}
	if got.OperatingDaysPerYear != 250 {
		t.Errorf("OperatingDaysPerYear = %d, want 250", got.OperatingDaysPerYear)
	}
	if got.MaxInsights != 6 {
		t.Errorf("MaxInsights = %d, want 6", got.MaxInsights)
	}
	if got.MinSeverityToShow != SeverityInfo {
		t.Errorf("MinSeverityToShow = %s, want info", got.MinSeverityToShow)
	}
}

func TestConfigResolve_HourlyRateWins(t *testing.T) {
	got := Config{ORHourlyRate: 2160, RevenuePerORMinute: 99}.Resolve()
	if got.RevenuePerORMinute != 36 {
		t.Errorf("RevenuePerORMinute = %v, want 36 derived from the hourly rate", got.RevenuePerORMinute)
	}
}

func TestConfigResolve_ExplicitPerMinuteKept(t *testing.T) {
	got := Config{RevenuePerORMinute: 42}.Resolve()
	if got.RevenuePerORMinute != 42 {
		t.Errorf("RevenuePerORMinute = %v, want 42", got.RevenuePerORMinute)
	}
}

func TestConfigResolve_UnknownSeverityFallsBack(t *testing.T) {
	got := Config{MinSeverityToShow: Severity("loud")}.Resolve()
	if got.MinSeverityToShow != SeverityInfo {
		t.Errorf("MinSeverityToShow = %s, want info for unknown values", got.MinSeverityToShow)
	}
}

func TestMerge_OverlaysNonZeroFields(t *testing.T) {
	base := Config{RevenuePerORMinute: 36, RevenuePerCase: 2500, MaxInsights: 6}
	override := Config{MaxInsights: 3, MinSeverityToShow: SeverityWarning}

	got := Merge(base, override)
	if got.MaxInsights != 3 {
		t.Errorf("MaxInsights = %d, want 3", got.MaxInsights)
	}
	if got.MinSeverityToShow != SeverityWarning {
		t.Errorf("MinSeverityToShow = %s, want warning", got.MinSeverityToShow)
	}
	if got.RevenuePerORMinute != 36 || got.RevenuePerCase != 2500 {
		t.Errorf("zero override fields should keep base values, got %+v", got)
	}
}
