package insights

import (
	"fmt"
	"strings"
	"time"
)

// Severity classifies an insight, ordered most to least urgent. The dashboard
// renders critical findings first; positive reinforcement and informational
// notes trail.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityPositive Severity = "positive"
	SeverityInfo     Severity = "info"
)

// Rank returns the sort position of a severity (critical=0 through info=3).
// Unknown severities rank alongside info.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	case SeverityPositive:
		return 2
	default:
		return 3
	}
}

// DrillThrough selects which detail panel the dashboard opens when an insight
// card is clicked. The values are a routing contract with the UI and must not
// be renamed.
type DrillThrough string

const (
	DrillCallback     DrillThrough = "callback"
	DrillFCOTS        DrillThrough = "fcots"
	DrillUtilization  DrillThrough = "utilization"
	DrillTurnover     DrillThrough = "turnover"
	DrillCancellation DrillThrough = "cancellation"
	DrillNonOpTime    DrillThrough = "non_op_time"
	DrillScheduling   DrillThrough = "scheduling"
)

func drill(d DrillThrough) *DrillThrough { return &d }

// Insight categories.
const (
	CategoryEfficiency  = "efficiency"
	CategoryUtilization = "utilization"
	CategoryQuality     = "quality"
	CategoryScheduling  = "scheduling"
)

const dateLayout = "2006-01-02"

// Date is a civil date. Daily series arrive as bare dates; some upstream jobs
// send full RFC3339 stamps, so both forms parse.
type Date struct {
	time.Time
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		d.Time = time.Time{}
		return nil
	}
	if t, err := time.Parse(dateLayout, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return fmt.Errorf("invalid date %q", s)
	}
	d.Time = t
	return nil
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + d.Format(dateLayout) + `"`), nil
}

// DailyPoint is one day of a metric trace. Color "green" marks an on-target
// day; the streak and weekday analyzers key off it.
type DailyPoint struct {
	Date  Date    `json:"date"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
}

// Metric is the shape every aggregate shares. Subtitle is display copy only;
// the structured fields on the embedding types are the data channel.
type Metric struct {
	Value        float64      `json:"value"`
	DisplayValue string       `json:"displayValue"`
	Target       *float64     `json:"target"`
	TargetMet    bool         `json:"targetMet"`
	Delta        *float64     `json:"delta"`
	DeltaType    string       `json:"deltaType,omitempty"`
	Subtitle     string       `json:"subtitle,omitempty"`
	DailyData    []DailyPoint `json:"dailyData,omitempty"`
}

// FCOTSMetric is the first-case on-time start rate. Value is the on-time
// percentage for the period.
type FCOTSMetric struct {
	Metric
	LateCount       int `json:"lateCount"`
	TotalFirstCases int `json:"totalFirstCases"`
}

// TurnoverMetric is average room turnover. Value is minutes; ThresholdMinutes
// is the facility's turnover goal and CompliancePct the share of turnovers
// under it.
type TurnoverMetric struct {
	Metric
	ThresholdMinutes float64 `json:"thresholdMinutes"`
	CompliancePct    float64 `json:"compliancePct"`
}

// TurnoverPathMetric describes one turnover pathway (same-room or flip-room).
// GapMinutes is the average excess over the facility threshold and Count the
// number of turnovers observed on that pathway.
type TurnoverPathMetric struct {
	Metric
	GapMinutes float64 `json:"gapMinutes"`
	Count      int     `json:"count"`
}

// CancellationMetric is the cancellation rate. Value is the percentage of
// cases cancelled; SameDayCount is the subset cancelled on the day of surgery.
type CancellationMetric struct {
	Metric
	SameDayCount int `json:"sameDayCount"`
	TotalCases   int `json:"totalCases"`
}

// RoomUtilization is one room's utilization for the period.
type RoomUtilization struct {
	Name              string  `json:"name"`
	UtilizationPct    float64 `json:"utilizationPct"`
	AvailableMinutes  float64 `json:"availableMinutes"`
	UsedMinutes       float64 `json:"usedMinutes"`
	UsingDefaultHours bool    `json:"usingDefaultHours"`
}

// UtilizationMetric is facility OR utilization. RoomDaysActive is the number
// of room-days with any scheduled availability in the period.
type UtilizationMetric struct {
	Metric
	Rooms          []RoomUtilization `json:"rooms,omitempty"`
	RoomDaysActive int               `json:"roomDaysActive"`
}

// NonOperativeMetric breaks case time into phases. Value is the non-operative
// percentage of total case time.
type NonOperativeMetric struct {
	Metric
	PreOpMinutes     float64 `json:"preOpMinutes"`
	ClosingMinutes   float64 `json:"closingMinutes"`
	EmergenceMinutes float64 `json:"emergenceMinutes"`
	SurgicalMinutes  float64 `json:"surgicalMinutes"`
}

// Surgeon callback statuses.
const (
	StatusCallSooner = "call_sooner"
	StatusOnTrack    = "on_track"
	StatusCallLater  = "call_later"
)

// SurgeonIdleSummary is one surgeon's idle and callback statistics, computed
// upstream from milestone pairs.
type SurgeonIdleSummary struct {
	SurgeonName         string  `json:"surgeonName"`
	MedianFlipIdle      float64 `json:"medianFlipIdle"`
	MedianSameRoomIdle  float64 `json:"medianSameRoomIdle"`
	MedianCallbackDelta float64 `json:"medianCallbackDelta"`
	FlipGapCount        int     `json:"flipGapCount"`
	Status              string  `json:"status"`
	HasFlipData         bool    `json:"hasFlipData"`
}

// FlipRoomAnalysis carries per-surgeon idle summaries plus the number of
// distinct dates the flip-room sample covers.
type FlipRoomAnalysis struct {
	Surgeons     []SurgeonIdleSummary `json:"surgeons,omitempty"`
	DaysObserved int                  `json:"daysObserved"`
}

// Overview is the full pre-aggregated input to the insight engine. It is
// produced by the upstream analytics layer, already facility-scoped and
// timezone-normalized.
type Overview struct {
	PeriodDays               int                `json:"periodDays"`
	FCOTS                    FCOTSMetric        `json:"fcots"`
	TurnoverTime             TurnoverMetric     `json:"turnoverTime"`
	CancellationRate         CancellationMetric `json:"cancellationRate"`
	ORUtilization            UtilizationMetric  `json:"orUtilization"`
	CaseVolume               Metric             `json:"caseVolume"`
	NonOperativeTime         NonOperativeMetric `json:"nonOperativeTime"`
	StandardSurgicalTurnover TurnoverPathMetric `json:"standardSurgicalTurnover"`
	FlipRoomTime             TurnoverPathMetric `json:"flipRoomTime"`
	FlipRoomAnalysis         FlipRoomAnalysis   `json:"flipRoomAnalysis"`
}

// periodLength returns the explicit period length in days, falling back to
// the length of the case-volume trace when the field is unset.
func (o *Overview) periodLength() int {
	if o.PeriodDays > 0 {
		return o.PeriodDays
	}
	if n := len(o.CaseVolume.DailyData); n > 0 {
		return n
	}
	return 1
}

// Insight is one finding. IDs are fixed literals per finding type, so a
// single invocation can only ever carry one instance of each.
type Insight struct {
	ID              string                 `json:"id"`
	Category        string                 `json:"category"`
	Severity        Severity               `json:"severity"`
	Title           string                 `json:"title"`
	Body            string                 `json:"body"`
	Action          string                 `json:"action,omitempty"`
	ActionRoute     string                 `json:"actionRoute,omitempty"`
	FinancialImpact string                 `json:"financialImpact,omitempty"`
	DrillThrough    *DrillThrough          `json:"drillThroughType"`
	Metadata        map[string]interface{} `json:"metadata,omitempty"`
}
