package dataquality

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// IssueRepository manages the metric-issue lifecycle.
type IssueRepository interface {
	// Create inserts the issue unless an unresolved issue for the same
	// (case, issue type) already exists. It reports whether a row was
	// actually inserted.
	Create(ctx context.Context, issue *MetricIssue) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*MetricIssue, error)
	ListByFacility(ctx context.Context, facilityID uuid.UUID, unresolvedOnly bool, limit, offset int) ([]*MetricIssue, int, error)
	Resolve(ctx context.Context, id, resolutionTypeID uuid.UUID, resolvedBy, notes *string, resolvedAt time.Time) error
	Reopen(ctx context.Context, id uuid.UUID, expiresAt time.Time) error
	// ExpireDue resolves every unresolved issue in the facility whose
	// expires_at has passed, using the given resolution type. It returns
	// the number of issues expired.
	ExpireDue(ctx context.Context, facilityID, resolutionTypeID uuid.UUID, now time.Time) (int, error)
}

// TypeRepository looks up seeded issue and resolution types.
type TypeRepository interface {
	IssueTypeByName(ctx context.Context, name string) (*IssueType, error)
	ListIssueTypes(ctx context.Context) ([]*IssueType, error)
	ResolutionTypeByName(ctx context.Context, name string) (*ResolutionType, error)
}

// DetectionStore provides the case-side reads and writes the detection job
// needs. Queries take a cutoff computed by the caller so the job clock stays
// in one place.
type DetectionStore interface {
	ActiveFacilities(ctx context.Context) ([]FacilityRef, error)
	// UnvalidatedCompletedCases returns completed cases with
	// data_validated unset, milestones ordered by display order.
	UnvalidatedCompletedCases(ctx context.Context, facilityID uuid.UUID) ([]UnvalidatedCase, error)
	MarkValidated(ctx context.Context, caseIDs []uuid.UUID) error
	ClearValidated(ctx context.Context, caseID uuid.UUID) error
	// StaleInProgressCases returns in-progress cases whose earliest
	// milestone predates the cutoff.
	StaleInProgressCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error)
	// AbandonedScheduledCases returns cases still scheduled past the
	// cutoff date.
	AbandonedScheduledCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error)
	// InactiveCases returns in-progress cases whose latest milestone
	// predates the cutoff. Cases with no milestones are not reported.
	InactiveCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error)
}
