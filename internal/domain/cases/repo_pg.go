package cases

import (
	"context"
	"fmt"

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

const facilityCols = `id, name, timezone, is_active, created_at, updated_at`

type facilityRepoPG struct {
	pool *pgxpool.Pool
}

func NewFacilityRepoPG(pool *pgxpool.Pool) FacilityRepository {
	return &facilityRepoPG{pool: pool}
}

func (r *facilityRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *facilityRepoPG) scanFacility(row pgx.Row) (*Facility, error) {
	var f Facility
	err := row.Scan(&f.ID, &f.Name, &f.Timezone, &f.IsActive, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *facilityRepoPG) Create(ctx context.Context, f *Facility) error {
	f.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO facilities (id, name, timezone, is_active)
		VALUES ($1,$2,$3,$4)`,
		f.ID, f.Name, f.Timezone, f.IsActive)
	return err
}

func (r *facilityRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Facility, error) {
	return r.scanFacility(r.conn(ctx).QueryRow(ctx,
		`SELECT `+facilityCols+` FROM facilities WHERE id = $1`, id))
}

func (r *facilityRepoPG) List(ctx context.Context, limit, offset int) ([]*Facility, int, error) {
	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*) FROM facilities`).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+facilityCols+` FROM facilities ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Facility
	for rows.Next() {
		f, err := r.scanFacility(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, f)
	}
	return items, total, nil
}

func (r *facilityRepoPG) Update(ctx context.Context, f *Facility) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE facilities SET name=$2, timezone=$3, is_active=$4, updated_at=NOW()
		WHERE id = $1`,
		f.ID, f.Name, f.Timezone, f.IsActive)
	return err
}

func (r *facilityRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	return err
}

const caseCols = `c.id, c.facility_id, c.case_number, c.or_room, c.surgeon_name,
	c.status_id, cs.name, c.scheduled_date, c.scheduled_start, c.data_validated,
	c.created_at, c.updated_at`

const caseFrom = ` FROM cases c JOIN case_statuses cs ON cs.id = c.status_id`

type caseRepoPG struct {
	pool *pgxpool.Pool
}

func NewCaseRepoPG(pool *pgxpool.Pool) CaseRepository {
	return &caseRepoPG{pool: pool}
}

func (r *caseRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *caseRepoPG) scanCase(row pgx.Row) (*Case, error) {
	var c Case
	err := row.Scan(&c.ID, &c.FacilityID, &c.CaseNumber, &c.ORRoom, &c.SurgeonName,
		&c.StatusID, &c.Status, &c.ScheduledDate, &c.ScheduledStart, &c.DataValidated,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *caseRepoPG) Create(ctx context.Context, c *Case) error {
	c.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO cases (id, facility_id, case_number, or_room, surgeon_name,
			status_id, scheduled_date, scheduled_start)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		c.ID, c.FacilityID, c.CaseNumber, c.ORRoom, c.SurgeonName,
		c.StatusID, c.ScheduledDate, c.ScheduledStart)
	return err
}

func (r *caseRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Case, error) {
	return r.scanCase(r.conn(ctx).QueryRow(ctx,
		`SELECT `+caseCols+caseFrom+` WHERE c.id = $1`, id))
}

func (r *caseRepoPG) ListByFacility(ctx context.Context, facilityID uuid.UUID, status string, limit, offset int) ([]*Case, int, error) {
	where := ` WHERE c.facility_id = $1`
	args := []any{facilityID}
	if status != "" {
		where += ` AND cs.name = $2`
		args = append(args, status)
	}

	var total int
	if err := r.conn(ctx).QueryRow(ctx, `SELECT COUNT(*)`+caseFrom+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := fmt.Sprintf(`SELECT `+caseCols+caseFrom+where+
		` ORDER BY c.scheduled_date DESC, c.case_number LIMIT $%d OFFSET $%d`,
		len(args)+1, len(args)+2)
	rows, err := r.conn(ctx).Query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Case
	for rows.Next() {
		c, err := r.scanCase(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, c)
	}
	return items, total, nil
}

// Update rewrites the editable fields and drops any earlier validation pass
// so the next detection run re-checks the case.
func (r *caseRepoPG) Update(ctx context.Context, c *Case) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET case_number=$2, or_room=$3, surgeon_name=$4,
			scheduled_date=$5, scheduled_start=$6, data_validated=FALSE, updated_at=NOW()
		WHERE id = $1`,
		c.ID, c.CaseNumber, c.ORRoom, c.SurgeonName, c.ScheduledDate, c.ScheduledStart)
	return err
}

func (r *caseRepoPG) UpdateStatus(ctx context.Context, id, statusID uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE cases SET status_id=$2, data_validated=FALSE, updated_at=NOW()
		WHERE id = $1`, id, statusID)
	return err
}

func (r *caseRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `DELETE FROM cases WHERE id = $1`, id)
	return err
}

type statusRepoPG struct {
	pool *pgxpool.Pool
}

func NewStatusRepoPG(pool *pgxpool.Pool) StatusRepository {
	return &statusRepoPG{pool: pool}
}

func (r *statusRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *statusRepoPG) GetByName(ctx context.Context, name string) (*CaseStatus, error) {
	var s CaseStatus
	err := r.conn(ctx).QueryRow(ctx,
		`SELECT id, name FROM case_statuses WHERE name = $1`, name).Scan(&s.ID, &s.Name)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *statusRepoPG) List(ctx context.Context) ([]*CaseStatus, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT id, name FROM case_statuses ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CaseStatus
	for rows.Next() {
		var s CaseStatus
		if err := rows.Scan(&s.ID, &s.Name); err != nil {
			return nil, err
		}
		items = append(items, &s)
	}
	return items, nil
}

const facilityMilestoneCols = `id, facility_id, name, display_order, expected_min, expected_max, is_active, created_at, updated_at`

type milestoneRepoPG struct {
	pool *pgxpool.Pool
}

func NewMilestoneRepoPG(pool *pgxpool.Pool) MilestoneRepository {
	return &milestoneRepoPG{pool: pool}
}

func (r *milestoneRepoPG) conn(ctx context.Context) queryable {
	if tx := db.TxFromContext(ctx); tx != nil {
		return tx
	}
	return r.pool
}

func (r *milestoneRepoPG) scanFacilityMilestone(row pgx.Row) (*FacilityMilestone, error) {
	var m FacilityMilestone
	err := row.Scan(&m.ID, &m.FacilityID, &m.Name, &m.DisplayOrder,
		&m.ExpectedMin, &m.ExpectedMax, &m.IsActive, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *milestoneRepoPG) CreateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO facility_milestones (id, facility_id, name, display_order,
			expected_min, expected_max, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7)`,
		m.ID, m.FacilityID, m.Name, m.DisplayOrder, m.ExpectedMin, m.ExpectedMax, m.IsActive)
	return err
}

func (r *milestoneRepoPG) ListFacilityMilestones(ctx context.Context, facilityID uuid.UUID) ([]*FacilityMilestone, error) {
	rows, err := r.conn(ctx).Query(ctx,
		`SELECT `+facilityMilestoneCols+` FROM facility_milestones
		WHERE facility_id = $1 ORDER BY display_order`, facilityID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*FacilityMilestone
	for rows.Next() {
		m, err := r.scanFacilityMilestone(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, nil
}

func (r *milestoneRepoPG) UpdateFacilityMilestone(ctx context.Context, m *FacilityMilestone) error {
	_, err := r.conn(ctx).Exec(ctx, `
		UPDATE facility_milestones SET name=$2, display_order=$3, expected_min=$4,
			expected_max=$5, is_active=$6, updated_at=NOW()
		WHERE id = $1`,
		m.ID, m.Name, m.DisplayOrder, m.ExpectedMin, m.ExpectedMax, m.IsActive)
	return err
}

// RecordCaseMilestone inserts the milestone and clears the case's validation
// flag in one statement so the two cannot drift apart.
func (r *milestoneRepoPG) RecordCaseMilestone(ctx context.Context, m *CaseMilestone) error {
	m.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		WITH ins AS (
			INSERT INTO case_milestones (id, case_id, facility_milestone_id, recorded_at, recorded_by)
			VALUES ($1,$2,$3,$4,$5)
			RETURNING case_id
		)
		UPDATE cases SET data_validated = FALSE, updated_at = NOW()
		WHERE id IN (SELECT case_id FROM ins)`,
		m.ID, m.CaseID, m.FacilityMilestoneID, m.RecordedAt, m.RecordedBy)
	return err
}

func (r *milestoneRepoPG) ListCaseMilestones(ctx context.Context, caseID uuid.UUID) ([]*CaseMilestone, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT cm.id, cm.case_id, cm.facility_milestone_id, fm.name, cm.recorded_at,
			cm.recorded_by, cm.created_at
		FROM case_milestones cm
		JOIN facility_milestones fm ON fm.id = cm.facility_milestone_id
		WHERE cm.case_id = $1
		ORDER BY cm.recorded_at`, caseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*CaseMilestone
	for rows.Next() {
		var m CaseMilestone
		err := rows.Scan(&m.ID, &m.CaseID, &m.FacilityMilestoneID, &m.MilestoneName,
			&m.RecordedAt, &m.RecordedBy, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		items = append(items, &m)
	}
	return items, nil
}

func (r *milestoneRepoPG) DeleteCaseMilestone(ctx context.Context, id uuid.UUID) error {
	_, err := r.conn(ctx).Exec(ctx, `
		WITH del AS (
			DELETE FROM case_milestones WHERE id = $1
			RETURNING case_id
		)
		UPDATE cases SET data_validated = FALSE, updated_at = NOW()
		WHERE id IN (SELECT case_id FROM del)`, id)
	return err
}
