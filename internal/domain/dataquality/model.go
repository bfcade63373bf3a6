package dataquality

import (
	"time"

	"github.com/google/uuid"
)

// Issue type names seeded by migrations. Detection rules look these up by
// name so a facility running an older schema degrades to a no-op instead of
// failing the job.
const (
	IssueStaleInProgress     = "stale_in_progress"
	IssueAbandonedScheduled  = "abandoned_scheduled"
	IssueNoActivity          = "no_activity"
	IssueMilestoneOutOfRange = "milestone_out_of_range"
)

const (
	ResolutionCorrected         = "corrected"
	ResolutionConfirmedAccurate = "confirmed_accurate"
	ResolutionNotAnIssue        = "not_an_issue"
	ResolutionExpired           = "expired"
)

type IssueType struct {
	ID          uuid.UUID `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
}

type ResolutionType struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// MetricIssue is a detected data-quality problem on a case. Unresolved issues
// are unique per (case, issue type); resolving one allows a later detection
// run to open a fresh issue for the same case.
type MetricIssue struct {
	ID                  uuid.UUID  `db:"id" json:"id"`
	FacilityID          uuid.UUID  `db:"facility_id" json:"facility_id"`
	CaseID              uuid.UUID  `db:"case_id" json:"case_id"`
	IssueTypeID         uuid.UUID  `db:"issue_type_id" json:"issue_type_id"`
	IssueType           string     `db:"-" json:"issue_type,omitempty"`
	FacilityMilestoneID *uuid.UUID `db:"facility_milestone_id" json:"facility_milestone_id,omitempty"`
	DetectedValue       *float64   `db:"detected_value" json:"detected_value,omitempty"`
	ExpectedMin         *float64   `db:"expected_min" json:"expected_min,omitempty"`
	ExpectedMax         *float64   `db:"expected_max" json:"expected_max,omitempty"`
	ResolutionTypeID    *uuid.UUID `db:"resolution_type_id" json:"resolution_type_id,omitempty"`
	ResolvedAt          *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	ResolvedBy          *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolutionNotes     *string    `db:"resolution_notes" json:"resolution_notes,omitempty"`
	DetectedAt          time.Time  `db:"detected_at" json:"detected_at"`
	ExpiresAt           *time.Time `db:"expires_at" json:"expires_at,omitempty"`
}

func (i *MetricIssue) Resolved() bool { return i.ResolvedAt != nil }

// FacilityRef is the projection of a facility the detection job works with.
type FacilityRef struct {
	ID   uuid.UUID
	Name string
}

// StaleCase is a case matched by one of the staleness rules. Anchor is the
// timestamp that tripped the rule (a milestone or the scheduled date).
type StaleCase struct {
	CaseID     uuid.UUID
	CaseNumber string
	Anchor     time.Time
}

// CaseMilestoneRecord is one recorded milestone on a case joined with its
// facility-level expectations, ordered by display order.
type CaseMilestoneRecord struct {
	FacilityMilestoneID uuid.UUID
	Name                string
	DisplayOrder        int
	ExpectedMin         *float64
	ExpectedMax         *float64
	RecordedAt          time.Time
}

// UnvalidatedCase is a completed case awaiting milestone-range validation.
type UnvalidatedCase struct {
	CaseID     uuid.UUID
	CaseNumber string
	Milestones []CaseMilestoneRecord
}

// DetectionResult reports one facility's pass of the detection job.
type DetectionResult struct {
	FacilityID         uuid.UUID `json:"facilityId"`
	FacilityName       string    `json:"facilityName"`
	CasesChecked       int       `json:"casesChecked"`
	IssuesFound        int       `json:"issuesFound"`
	IssuesExpired      int       `json:"issuesExpired"`
	StaleCasesDetected int       `json:"staleCasesDetected"`
	StaleCasesCreated  int       `json:"staleCasesCreated"`
	Errors             []string  `json:"errors,omitempty"`
}

type DetectionSummary struct {
	FacilitiesProcessed     int `json:"facilitiesProcessed"`
	TotalCasesChecked       int `json:"totalCasesChecked"`
	TotalIssuesFound        int `json:"totalIssuesFound"`
	TotalIssuesExpired      int `json:"totalIssuesExpired"`
	TotalStaleCasesDetected int `json:"totalStaleCasesDetected"`
	TotalStaleCasesCreated  int `json:"totalStaleCasesCreated"`
}

type DetectionReport struct {
	Success bool              `json:"success"`
	Summary DetectionSummary  `json:"summary"`
	Results []DetectionResult `json:"results"`
}
