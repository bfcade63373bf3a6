package dataquality

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// reopenExpiry is how long a reopened issue stays open before the sweep
// auto-expires it again.
const reopenExpiry = 30 * 24 * time.Hour

var validResolutions = map[string]bool{
	ResolutionCorrected:         true,
	ResolutionConfirmedAccurate: true,
	ResolutionNotAnIssue:        true,
	ResolutionExpired:           true,
}

type Service struct {
	issues IssueRepository
	types  TypeRepository
}

func NewService(issues IssueRepository, types TypeRepository) *Service {
	return &Service{issues: issues, types: types}
}

type ResolveRequest struct {
	ResolutionType  string  `json:"resolution_type"`
	ResolvedBy      *string `json:"resolved_by,omitempty"`
	ResolutionNotes *string `json:"resolution_notes,omitempty"`
}

// BatchResolveResult reports which issues resolved and which failed, keyed
// by issue id.
type BatchResolveResult struct {
	Resolved []uuid.UUID       `json:"resolved"`
	Failed   map[string]string `json:"failed,omitempty"`
}

func (s *Service) GetIssue(ctx context.Context, id uuid.UUID) (*MetricIssue, error) {
	return s.issues.GetByID(ctx, id)
}

func (s *Service) ListIssues(ctx context.Context, facilityID uuid.UUID, unresolvedOnly bool, limit, offset int) ([]*MetricIssue, int, error) {
	return s.issues.ListByFacility(ctx, facilityID, unresolvedOnly, limit, offset)
}

func (s *Service) ListIssueTypes(ctx context.Context) ([]*IssueType, error) {
	return s.types.ListIssueTypes(ctx)
}

func (s *Service) ResolveIssue(ctx context.Context, id uuid.UUID, req ResolveRequest) (*MetricIssue, error) {
	if req.ResolutionType == "" {
		return nil, fmt.Errorf("resolution_type is required")
	}
	if !validResolutions[req.ResolutionType] {
		return nil, fmt.Errorf("invalid resolution_type: %s", req.ResolutionType)
	}

	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("issue not found")
	}
	if issue.Resolved() {
		return nil, fmt.Errorf("issue already resolved")
	}

	rt, err := s.types.ResolutionTypeByName(ctx, req.ResolutionType)
	if err != nil {
		return nil, fmt.Errorf("resolution type %s not configured", req.ResolutionType)
	}

	if err := s.issues.Resolve(ctx, id, rt.ID, req.ResolvedBy, req.ResolutionNotes, time.Now().UTC()); err != nil {
		return nil, err
	}
	return s.issues.GetByID(ctx, id)
}

// ResolveIssues resolves a batch with the same resolution. Failures are
// collected per issue instead of aborting the batch.
func (s *Service) ResolveIssues(ctx context.Context, ids []uuid.UUID, req ResolveRequest) (*BatchResolveResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("issue_ids is required")
	}

	out := &BatchResolveResult{Resolved: make([]uuid.UUID, 0, len(ids))}
	for _, id := range ids {
		if _, err := s.ResolveIssue(ctx, id, req); err != nil {
			if out.Failed == nil {
				out.Failed = make(map[string]string)
			}
			out.Failed[id.String()] = err.Error()
			continue
		}
		out.Resolved = append(out.Resolved, id)
	}
	return out, nil
}

// ReopenIssue clears the resolution and gives the issue a fresh expiry
// window.
func (s *Service) ReopenIssue(ctx context.Context, id uuid.UUID) (*MetricIssue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("issue not found")
	}
	if !issue.Resolved() {
		return nil, fmt.Errorf("issue is not resolved")
	}

	if err := s.issues.Reopen(ctx, id, time.Now().UTC().Add(reopenExpiry)); err != nil {
		return nil, err
	}
	return s.issues.GetByID(ctx, id)
}
