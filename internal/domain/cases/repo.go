package cases

import (
	"context"

	"github.com/google/uuid"
)

type FacilityRepository interface {
	Create(ctx context.Context, f *Facility) error
	GetByID(ctx context.Context, id uuid.UUID) (*Facility, error)
	List(ctx context.Context, limit, offset int) ([]*Facility, int, error)
	Update(ctx context.Context, f *Facility) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type CaseRepository interface {
	Create(ctx context.Context, c *Case) error
	GetByID(ctx context.Context, id uuid.UUID) (*Case, error)
	// ListByFacility filters by status name when status is non-empty.
	ListByFacility(ctx context.Context, facilityID uuid.UUID, status string, limit, offset int) ([]*Case, int, error)
	Update(ctx context.Context, c *Case) error
	UpdateStatus(ctx context.Context, id, statusID uuid.UUID) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type StatusRepository interface {
	GetByName(ctx context.Context, name string) (*CaseStatus, error)
	List(ctx context.Context) ([]*CaseStatus, error)
}

type MilestoneRepository interface {
	CreateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error
	// ListFacilityMilestones returns the facility's milestones in display
	// order, including inactive ones.
	ListFacilityMilestones(ctx context.Context, facilityID uuid.UUID) ([]*FacilityMilestone, error)
	UpdateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error
	RecordCaseMilestone(ctx context.Context, m *CaseMilestone) error
	// ListCaseMilestones returns the case's milestones ordered by when they
	// were recorded.
	ListCaseMilestones(ctx context.Context, caseID uuid.UUID) ([]*CaseMilestone, error)
	DeleteCaseMilestone(ctx context.Context, id uuid.UUID) error
}
