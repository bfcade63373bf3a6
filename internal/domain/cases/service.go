package cases

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Service struct {
	facilities FacilityRepository
	cases      CaseRepository
	statuses   StatusRepository
	milestones MilestoneRepository
}

func NewService(facilities FacilityRepository, cases CaseRepository, statuses StatusRepository, milestones MilestoneRepository) *Service {
	return &Service{facilities: facilities, cases: cases, statuses: statuses, milestones: milestones}
}

// -- Facility --

func (s *Service) CreateFacility(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	f.IsActive = true
	return s.facilities.Create(ctx, f)
}

func (s *Service) GetFacility(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return s.facilities.GetByID(ctx, id)
}

func (s *Service) ListFacilities(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	return s.facilities.List(ctx, limit, offset)
}

func (s *Service) UpdateFacility(ctx context.Context, f *Facility) error {
	if f.Name == "" {
		return fmt.Errorf("name is required")
	}
	if f.Timezone == "" {
		f.Timezone = "UTC"
	}
	return s.facilities.Update(ctx, f)
}

func (s *Service) DeleteFacility(ctx context.Context, id uuid.UUID) error {
	return s.facilities.Delete(ctx, id)
}

// -- Case --

var validCaseStatuses = map[string]bool{
	StatusScheduled: true, StatusInProgress: true,
	StatusCompleted: true, StatusCancelled: true,
}

// CreateCase validates the case and resolves the status name to its id.
// New cases default to scheduled.
func (s *Service) CreateCase(ctx context.Context, c *Case) error {
	if c.FacilityID == uuid.Nil {
		return fmt.Errorf("facility_id is required")
	}
	if c.CaseNumber == "" {
		return fmt.Errorf("case_number is required")
	}
	if c.ScheduledDate.IsZero() {
		return fmt.Errorf("scheduled_date is required")
	}
	if c.Status == "" {
		c.Status = StatusScheduled
	}
	if !validCaseStatuses[c.Status] {
		return fmt.Errorf("invalid status: %s", c.Status)
	}
	status, err := s.statuses.GetByName(ctx, c.Status)
	if err != nil {
		return fmt.Errorf("status %s not configured", c.Status)
	}
	c.StatusID = status.ID
	return s.cases.Create(ctx, c)
}

func (s *Service) GetCase(ctx context.Context, id uuid.UUID) (*Case, error) {
	return s.cases.GetByID(ctx, id)
}

func (s *Service) ListCases(ctx context.Context, facilityID uuid.UUID, status string, limit, offset int) ([]*Case, int, error) {
	if status != "" && !validCaseStatuses[status] {
		return nil, 0, fmt.Errorf("invalid status: %s", status)
	}
	return s.cases.ListByFacility(ctx, facilityID, status, limit, offset)
}

func (s *Service) UpdateCase(ctx context.Context, c *Case) error {
	if c.CaseNumber == "" {
		return fmt.Errorf("case_number is required")
	}
	if c.ScheduledDate.IsZero() {
		return fmt.Errorf("scheduled_date is required")
	}
	return s.cases.Update(ctx, c)
}

// UpdateCaseStatus moves the case to the named status and returns the
// refreshed case.
func (s *Service) UpdateCaseStatus(ctx context.Context, id uuid.UUID, statusName string) (*Case, error) {
	if !validCaseStatuses[statusName] {
		return nil, fmt.Errorf("invalid status: %s", statusName)
	}
	if _, err := s.cases.GetByID(ctx, id); err != nil {
		return nil, fmt.Errorf("case not found")
	}
	status, err := s.statuses.GetByName(ctx, statusName)
	if err != nil {
		return nil, fmt.Errorf("status %s not configured", statusName)
	}
	if err := s.cases.UpdateStatus(ctx, id, status.ID); err != nil {
		return nil, err
	}
	return s.cases.GetByID(ctx, id)
}

func (s *Service) DeleteCase(ctx context.Context, id uuid.UUID) error {
	return s.cases.Delete(ctx, id)
}

func (s *Service) ListCaseStatuses(ctx context.Context) ([]*CaseStatus, error) {
	return s.statuses.List(ctx)
}

// -- Milestones --

func (s *Service) CreateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error {
	if m.FacilityID == uuid.Nil {
		return fmt.Errorf("facility_id is required")
	}
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.ExpectedMin != nil && m.ExpectedMax != nil && *m.ExpectedMin > *m.ExpectedMax {
		return fmt.Errorf("expected_min cannot exceed expected_max")
	}
	m.IsActive = true
	return s.milestones.CreateFacilityMilestone(ctx, m)
}

func (s *Service) ListFacilityMilestones(ctx context.Context, facilityID uuid.UUID) ([]*FacilityMilestone, error) {
	return s.milestones.ListFacilityMilestones(ctx, facilityID)
}

func (s *Service) UpdateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error {
	if m.Name == "" {
		return fmt.Errorf("name is required")
	}
	if m.ExpectedMin != nil && m.ExpectedMax != nil && *m.ExpectedMin > *m.ExpectedMax {
		return fmt.Errorf("expected_min cannot exceed expected_max")
	}
	return s.milestones.UpdateFacilityMilestone(ctx, m)
}

func (s *Service) RecordCaseMilestone(ctx context.Context, m *CaseMilestone) error {
	if m.CaseID == uuid.Nil {
		return fmt.Errorf("case_id is required")
	}
	if m.FacilityMilestoneID == uuid.Nil {
		return fmt.Errorf("facility_milestone_id is required")
	}
	if _, err := s.cases.GetByID(ctx, m.CaseID); err != nil {
		return fmt.Errorf("case not found")
	}
	if m.RecordedAt.IsZero() {
		m.RecordedAt = time.Now().UTC()
	}
	return s.milestones.RecordCaseMilestone(ctx, m)
}

func (s *Service) ListCaseMilestones(ctx context.Context, caseID uuid.UUID) ([]*CaseMilestone, error) {
	return s.milestones.ListCaseMilestones(ctx, caseID)
}

func (s *Service) DeleteCaseMilestone(ctx context.Context, id uuid.UUID) error {
	return s.milestones.DeleteCaseMilestone(ctx, id)
}
