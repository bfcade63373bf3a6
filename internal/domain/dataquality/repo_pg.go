package dataquality

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/rdevine16/or-flow-app-sub009/internal/platform/db"
)

type queryable interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

const issueCols = `mi.id, mi.facility_id, mi.case_id, mi.issue_type_id, it.name,
	mi.facility_milestone_id, mi.detected_value, mi.expected_min, mi.expected_max,
	mi.resolution_type_id, mi.resolved_at, mi.resolved_by, mi.resolution_notes,
	mi.detected_at, mi.expires_at`

type issueRepoPG struct {
	pool *pgxpool.Pool
}

func NewIssueRepoPG(pool *pgxpool.Pool) IssueRepository {
	return &issueRepoPG{pool: pool}
}

func (r *issueRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func scanIssue(row pgx.Row) (*MetricIssue, error) {
	var i MetricIssue
	err := row.Scan(&i.ID, &i.FacilityID, &i.CaseID, &i.IssueTypeID, &i.IssueType,
		&i.FacilityMilestoneID, &i.DetectedValue, &i.ExpectedMin, &i.ExpectedMax,
		&i.ResolutionTypeID, &i.ResolvedAt, &i.ResolvedBy, &i.ResolutionNotes,
		&i.DetectedAt, &i.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

func (r *issueRepoPG) Create(ctx context.Context, issue *MetricIssue) (bool, error) {
	issue.ID = uuid.New()
	// The partial unique index on (case_id, issue_type_id) WHERE resolved_at
	// IS NULL makes re-detection a no-op while an issue is still open.
	tag, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO metric_issues (id, facility_id, case_id, issue_type_id,
			facility_milestone_id, detected_value, expected_min, expected_max,
			detected_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (case_id, issue_type_id) WHERE resolved_at IS NULL DO NOTHING`,
		issue.ID, issue.FacilityID, issue.CaseID, issue.IssueTypeID,
		issue.FacilityMilestoneID, issue.DetectedValue, issue.ExpectedMin, issue.ExpectedMax,
		issue.DetectedAt, issue.ExpiresAt)
	if err != nil {
		return false, fmt.Errorf("insert metric issue: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *issueRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MetricIssue, error) {
	row := r.conn(ctx).QueryRow(ctx, `
		SELECT `+issueCols+`
		FROM metric_issues mi
		JOIN metric_issue_types it ON it.id = mi.issue_type_id
		WHERE mi.id = $1`, id)
	return scanIssue(row)
}

func (r *issueRepoPG) ListByFacility(ctx context.Context, facilityID uuid.UUID, unresolvedOnly bool, limit, offset int) ([]*MetricIssue, int, error) {
	where := `WHERE mi.facility_id = $1`
	if unresolvedOnly {
		where += ` AND mi.resolved_at IS NULL`
	}

	var total int
	err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM metric_issues mi `+where, facilityID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count metric issues: %w", err)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+issueCols+`
		FROM metric_issues mi
		JOIN metric_issue_types it ON it.id = mi.issue_type_id
		`+where+`
		ORDER BY mi.detected_at DESC
		LIMIT $2 OFFSET $3`, facilityID, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list metric issues: %w", err)
	}
	defer rows.Close()

	issues := make([]*MetricIssue, 0)
	for rows.Next() {
		i, err := scanIssue(rows)
		if err != nil {
			return nil, 0, err
		}
		issues = append(issues, i)
	}
	return issues, total, rows.Err()
}

func (r *issueRepoPG) Resolve(ctx context.Context, id, resolutionTypeID uuid.UUID, resolvedBy, notes *string, resolvedAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE metric_issues
		SET resolution_type_id = $2, resolved_at = $3, resolved_by = $4, resolution_notes = $5
		WHERE id = $1`,
		id, resolutionTypeID, resolvedAt, resolvedBy, notes)
	if err != nil {
		return fmt.Errorf("resolve metric issue: %w", err)
	}
	return nil
}

func (r *issueRepoPG) Reopen(ctx context.Context, id uuid.UUID, expiresAt time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE metric_issues
		SET resolution_type_id = NULL, resolved_at = NULL, resolved_by = NULL,
			resolution_notes = NULL, expires_at = $2
		WHERE id = $1`, id, expiresAt)
	if err != nil {
		return fmt.Errorf("reopen metric issue: %w", err)
	}
	return nil
}

func (r *issueRepoPG) ExpireDue(ctx context.Context, facilityID, resolutionTypeID uuid.UUID, now time.Time) (int, error) {
	tag, err := r.conn(ctx).Exec(ctx, `
		UPDATE metric_issues
		SET resolution_type_id = $2, resolved_at = $3
		WHERE facility_id = $1 AND resolved_at IS NULL
			AND expires_at IS NOT NULL AND expires_at < $3`,
		facilityID, resolutionTypeID, now)
	if err != nil {
		return 0, fmt.Errorf("expire metric issues: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

type typeRepoPG struct {
	pool *pgxpool.Pool
}

func NewTypeRepoPG(pool *pgxpool.Pool) TypeRepository {
	return &typeRepoPG{pool: pool}
}

func (r *typeRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *typeRepoPG) IssueTypeByName(ctx context.Context, name string) (*IssueType, error) {
	var t IssueType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name, description FROM metric_issue_types WHERE name = $1`, name).
		Scan(&t.ID, &t.Name, &t.Description)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *typeRepoPG) ListIssueTypes(ctx context.Context) ([]*IssueType, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name, description FROM metric_issue_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list issue types: %w", err)
	}
	defer rows.Close()

	types := make([]*IssueType, 0)
	for rows.Next() {
		var t IssueType
		if err := rows.Scan(&t.ID, &t.Name, &t.Description); err != nil {
			return nil, err
		}
		types = append(types, &t)
	}
	return types, rows.Err()
}

func (r *typeRepoPG) ResolutionTypeByName(ctx context.Context, name string) (*ResolutionType, error) {
	var t ResolutionType
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name FROM metric_issue_resolution_types WHERE name = $1`, name).
		Scan(&t.ID, &t.Name)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

type detectionStorePG struct {
	pool *pgxpool.Pool
}

func NewDetectionStorePG(pool *pgxpool.Pool) DetectionStore {
	return &detectionStorePG{pool: pool}
}

func (r *detectionStorePG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *detectionStorePG) ActiveFacilities(ctx context.Context) ([]FacilityRef, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT id, name FROM facilities WHERE is_active = TRUE ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list active facilities: %w", err)
	}
	defer rows.Close()

	facilities := make([]FacilityRef, 0)
	for rows.Next() {
		var f FacilityRef
		if err := rows.Scan(&f.ID, &f.Name); err != nil {
			return nil, err
		}
		facilities = append(facilities, f)
	}
	return facilities, rows.Err()
}

func (r *detectionStorePG) UnvalidatedCompletedCases(ctx context.Context, facilityID uuid.UUID) ([]UnvalidatedCase, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT c.id, c.case_number, fm.id, fm.name, fm.display_order,
			fm.expected_min, fm.expected_max, cm.recorded_at
		FROM cases c
		JOIN case_statuses cs ON cs.id = c.status_id
		LEFT JOIN case_milestones cm ON cm.case_id = c.id
		LEFT JOIN facility_milestones fm ON fm.id = cm.facility_milestone_id
		WHERE c.facility_id = $1 AND cs.name = 'completed' AND c.data_validated = FALSE
		ORDER BY c.id, fm.display_order`, facilityID)
	if err != nil {
		return nil, fmt.Errorf("list unvalidated cases: %w", err)
	}
	defer rows.Close()

	cases := make([]UnvalidatedCase, 0)
	for rows.Next() {
		var (
			caseID       uuid.UUID
			caseNumber   string
			milestoneID  *uuid.UUID
			name         *string
			displayOrder *int
			expectedMin  *float64
			expectedMax  *float64
			recordedAt   *time.Time
		)
		err := rows.Scan(&caseID, &caseNumber, &milestoneID, &name, &displayOrder,
			&expectedMin, &expectedMax, &recordedAt)
		if err != nil {
			return nil, err
		}
		if len(cases) == 0 || cases[len(cases)-1].CaseID != caseID {
			cases = append(cases, UnvalidatedCase{CaseID: caseID, CaseNumber: caseNumber})
		}
		if milestoneID == nil || recordedAt == nil {
			continue
		}
		cur := &cases[len(cases)-1]
		cur.Milestones = append(cur.Milestones, CaseMilestoneRecord{
			FacilityMilestoneID: *milestoneID,
			Name:                *name,
			DisplayOrder:        *displayOrder,
			ExpectedMin:         expectedMin,
			ExpectedMax:         expectedMax,
			RecordedAt:          *recordedAt,
		})
	}
	return cases, rows.Err()
}

func (r *detectionStorePG) MarkValidated(ctx context.Context, caseIDs []uuid.UUID) error {
	if len(caseIDs) == 0 {
		return nil
	}
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE cases SET data_validated = TRUE, updated_at = NOW() WHERE id = ANY($1)`, caseIDs)
	if err != nil {
		return fmt.Errorf("mark cases validated: %w", err)
	}
	return nil
}

func (r *detectionStorePG) ClearValidated(ctx context.Context, caseID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx,
		`UPDATE cases SET data_validated = FALSE, updated_at = NOW() WHERE id = $1`, caseID)
	if err != nil {
		return fmt.Errorf("clear case validation: %w", err)
	}
	return nil
}

func (r *detectionStorePG) StaleInProgressCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error) {
	return r.staleQuery(ctx, `
		SELECT c.id, c.case_number, MIN(cm.recorded_at)
		FROM cases c
		JOIN case_statuses cs ON cs.id = c.status_id
		JOIN case_milestones cm ON cm.case_id = c.id
		WHERE c.facility_id = $1 AND cs.name = 'in_progress'
		GROUP BY c.id, c.case_number
		HAVING MIN(cm.recorded_at) < $2`, facilityID, cutoff)
}

func (r *detectionStorePG) AbandonedScheduledCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error) {
	return r.staleQuery(ctx, `
		SELECT c.id, c.case_number, c.scheduled_date
		FROM cases c
		JOIN case_statuses cs ON cs.id = c.status_id
		WHERE c.facility_id = $1 AND cs.name = 'scheduled' AND c.scheduled_date < $2`,
		facilityID, cutoff)
}

func (r *detectionStorePG) InactiveCases(ctx context.Context, facilityID uuid.UUID, cutoff time.Time) ([]StaleCase, error) {
	// Inner join keeps cases with zero milestones out of this rule.
	return r.staleQuery(ctx, `
		SELECT c.id, c.case_number, MAX(cm.recorded_at)
		FROM cases c
		JOIN case_statuses cs ON cs.id = c.status_id
		JOIN case_milestones cm ON cm.case_id = c.id
		WHERE c.facility_id = $1 AND cs.name = 'in_progress'
		GROUP BY c.id, c.case_number
		HAVING MAX(cm.recorded_at) < $2`, facilityID, cutoff)
}

func (r *detectionStorePG) staleQuery(ctx context.Context, sql string, args ...any) ([]StaleCase, error) {
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("stale case query: %w", err)
	}
	defer rows.Close()

	cases := make([]StaleCase, 0)
	for rows.Next() {
		var sc StaleCase
		if err := rows.Scan(&sc.CaseID, &sc.CaseNumber, &sc.Anchor); err != nil {
			return nil, err
		}
		cases = append(cases, sc)
	}
	return cases, rows.Err()
}
