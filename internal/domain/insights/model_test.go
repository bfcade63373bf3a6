package insights

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func TestSeverityRank(t *testing.T) {
	tests := []struct {
		severity Severity
		want     int
	}{
		{SeverityCritical, 0},
		{SeverityWarning, 1},
		{SeverityPositive, 2},
		{SeverityInfo, 3},
		{Severity("unknown"), 3},
	}
	for _, tt := range tests {
		if got := tt.severity.Rank(); got != tt.want {
			t.Errorf("Rank(%s) = %d, want %d", tt.severity, got, tt.want)
		}
	}
}

func TestDate_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
		zero bool
	}{
		{name: "bare date", in: `"2025-03-04"`, want: "2025-03-04"},
		{name: "timestamp keeps the date part", in: `"2025-03-04T08:30:00Z"`, want: "2025-03-04"},
		{name: "empty string", in: `""`, zero: true},
		{name: "null", in: `null`, zero: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var d Date
			if err := json.Unmarshal([]byte(tt.in), &d); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tt.zero {
				if !d.IsZero() {
					t.Errorf("expected zero date, got %v", d)
				}
				return
			}
			if got := d.Format("2006-01-02"); got != tt.want {
				t.Errorf("date = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestDate_MarshalJSON(t *testing.T) {
	d := Date{Time: time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC)}
	b, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != `"2025-03-04"` {
		t.Errorf("marshaled = %s, want \"2025-03-04\"", b)
	}

	b, err = json.Marshal(Date{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(b) != "null" {
		t.Errorf("zero date marshaled = %s, want null", b)
	}
}

func TestInsight_DrillThroughMarshalsExplicitNull(t *testing.T) {
	b, err := json.Marshal(Insight{ID: "x", Severity: SeverityInfo, Title: "t", Body: "b"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(b), `"drillThroughType":null`) {
		t.Errorf("expected an explicit null drillThroughType, got %s", b)
	}

	b, err = json.Marshal(Insight{ID: "x", Severity: SeverityInfo, Title: "t", Body: "b", DrillThrough: drill(DrillFCOTS)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(b), `"drillThroughType":"fcots"`) {
		t.Errorf("expected drillThroughType fcots, got %s", b)
	}
}

func TestOverview_PeriodLength(t *testing.T) {
	o := &Overview{PeriodDays: 30}
	if got := o.periodLength(); got != 30 {
		t.Errorf("periodLength = %d, want 30", got)
	}

	o = &Overview{CaseVolume: Metric{DailyData: make([]DailyPoint, 14)}}
	if got := o.periodLength(); got != 14 {
		t.Errorf("periodLength = %d, want 14 from the daily trace", got)
	}

	o = &Overview{}
	if got := o.periodLength(); got != 1 {
		t.Errorf("periodLength = %d, want 1 floor", got)
	}
}

func TestOverview_UnmarshalWireShape(t *testing.T) {
	payload := `{
		"periodDays": 30,
		"fcots": {"value": 72, "displayValue": "72%", "target": 80, "targetMet": false, "lateCount": 7, "totalFirstCases": 25},
		"orUtilization": {"value": 60, "target": 75, "targetMet": false, "rooms": [{"name": "OR 1", "utilizationPct": 60, "availableMinutes": 600, "usedMinutes": 360, "usingDefaultHours": true}], "roomDaysActive": 20},
		"cancellationRate": {"value": 1.2, "sameDayCount": 2, "totalCases": 150},
		"flipRoomAnalysis": {"surgeons": [{"surgeonName": "Dr. Alvarez", "hasFlipData": true, "status": "call_sooner", "medianCallbackDelta": 8, "flipGapCount": 10}], "daysObserved": 20}
	}`

	var o Overview
	if err := json.Unmarshal([]byte(payload), &o); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if o.FCOTS.LateCount != 7 || o.FCOTS.TotalFirstCases != 25 {
		t.Errorf("fcots counts = %d/%d, want 7/25", o.FCOTS.LateCount, o.FCOTS.TotalFirstCases)
	}
	if o.FCOTS.Target == nil || *o.FCOTS.Target != 80 {
		t.Errorf("fcots target = %v, want 80", o.FCOTS.Target)
	}
	if len(o.ORUtilization.Rooms) != 1 || !o.ORUtilization.Rooms[0].UsingDefaultHours {
		t.Errorf("room parsing failed: %+v", o.ORUtilization.Rooms)
	}
	if o.FlipRoomAnalysis.Surgeons[0].Status != StatusCallSooner {
		t.Errorf("surgeon status = %s, want call_sooner", o.FlipRoomAnalysis.Surgeons[0].Status)
	}
}
