package cases

import (
	"time"

	"github.com/google/uuid"
)

// Case status names seeded in the case_statuses table.
const (
	StatusScheduled  = "scheduled"
	StatusInProgress = "in_progress"
	StatusCompleted  = "completed"
	StatusCancelled  = "cancelled"
)

// Facility maps to the facilities table.
type Facility struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Timezone  string    `db:"timezone" json:"timezone"`
	IsActive  bool      `db:"is_active" json:"is_active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CaseStatus maps to the case_statuses lookup table.
type CaseStatus struct {
	ID   uuid.UUID `db:"id" json:"id"`
	Name string    `db:"name" json:"name"`
}

// Case maps to the cases table. This is the main operational resource.
// Status carries the joined status name; writes go through StatusID.
type Case struct {
	ID             uuid.UUID  `db:"id" json:"id"`
	FacilityID     uuid.UUID  `db:"facility_id" json:"facility_id"`
	CaseNumber     string     `db:"case_number" json:"case_number"`
	ORRoom         *string    `db:"or_room" json:"or_room,omitempty"`
	SurgeonName    *string    `db:"surgeon_name" json:"surgeon_name,omitempty"`
	StatusID       uuid.UUID  `db:"status_id" json:"status_id"`
	Status         string     `db:"-" json:"status,omitempty"`
	ScheduledDate  time.Time  `db:"scheduled_date" json:"scheduled_date"`
	ScheduledStart *time.Time `db:"scheduled_start" json:"scheduled_start,omitempty"`
	DataValidated  bool       `db:"data_validated" json:"data_validated"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}

// FacilityMilestone maps to the facility_milestones table. ExpectedMin and
// ExpectedMax bound the minutes since the previous milestone in display
// order; either side may be open.
type FacilityMilestone struct {
	ID           uuid.UUID `db:"id" json:"id"`
	FacilityID   uuid.UUID `db:"facility_id" json:"facility_id"`
	Name         string    `db:"name" json:"name"`
	DisplayOrder int       `db:"display_order" json:"display_order"`
	ExpectedMin  *float64  `db:"expected_min" json:"expected_min,omitempty"`
	ExpectedMax  *float64  `db:"expected_max" json:"expected_max,omitempty"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// CaseMilestone maps to the case_milestones table.
type CaseMilestone struct {
	ID                  uuid.UUID `db:"id" json:"id"`
	CaseID              uuid.UUID `db:"case_id" json:"case_id"`
	FacilityMilestoneID uuid.UUID `db:"facility_milestone_id" json:"facility_milestone_id"`
	MilestoneName       string    `db:"-" json:"milestone_name,omitempty"`
	RecordedAt          time.Time `db:"recorded_at" json:"recorded_at"`
	RecordedBy          *string   `db:"recorded_by" json:"recorded_by,omitempty"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
}
