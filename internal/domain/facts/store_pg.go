package facts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type storePG struct {
	pool *pgxpool.Pool
}

// NewStore returns a Store backed by Postgres.
func NewStore(pool *pgxpool.Pool) Store {
	return &storePG{pool: pool}
}

const branchCols = `id, name, city, bed_count, icu_beds, ventilator_count`

const episodeCols = `id, branch_id, department_id, admission_type, admitted_at, discharged_at, COALESCE(outcome_code, '')`

const snapshotCols = `s.branch_id, s.record_date, s.record_hour, s.beds_occupied, s.icu_occupied, s.ventilators_used,
	b.bed_count, b.icu_beds, b.ventilator_count`

// where accumulates SQL conditions with positional args.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	for _, a := range args {
		w.args = append(w.args, a)
		cond = strings.Replace(cond, "?", fmt.Sprintf("$%d", len(w.args)), 1)
	}
	w.conds = append(w.conds, cond)
}

func (w *where) clause() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// episodeWhere applies the cohort filter against the given column prefixes.
// The upper bound is inclusive through the end of the To day.
func episodeWhere(f CohortFilter, tsCol string) *where {
	w := &where{}
	if len(f.BranchIDs) > 0 {
		w.add("branch_id = ANY(?)", f.BranchIDs)
	}
	if len(f.DepartmentIDs) > 0 {
		w.add("department_id = ANY(?)", f.DepartmentIDs)
	}
	if !f.From.IsZero() {
		w.add(tsCol+" >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add(tsCol+" < ?", f.To.AddDate(0, 0, 1))
	}
	return w
}

func (s *storePG) Branches(ctx context.Context) ([]Branch, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+branchCols+` FROM hospital_branch ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Name, &b.City, &b.BedCount, &b.ICUBeds, &b.VentilatorCount); err != nil {
			return nil, err
		}
		branches = append(branches, b)
	}
	return branches, rows.Err()
}

func (s *storePG) Departments(ctx context.Context, branchIDs []uuid.UUID) ([]Department, error) {
	w := &where{}
	if len(branchIDs) > 0 {
		w.add("branch_id = ANY(?)", branchIDs)
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, branch_id, code, name FROM department`+w.clause()+` ORDER BY name`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var depts []Department
	for rows.Next() {
		var d Department
		if err := rows.Scan(&d.ID, &d.BranchID, &d.Code, &d.Name); err != nil {
			return nil, err
		}
		depts = append(depts, d)
	}
	return depts, rows.Err()
}

func (s *storePG) Episodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	w := episodeWhere(f, "admitted_at")
	return s.queryEpisodes(ctx, w)
}

func (s *storePG) ClosedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	w := episodeWhere(f, "admitted_at")
	w.add("discharged_at IS NOT NULL")
	return s.queryEpisodes(ctx, w)
}

func (s *storePG) DischargedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	w := episodeWhere(f, "discharged_at")
	w.add("discharged_at IS NOT NULL")
	return s.queryEpisodes(ctx, w)
}

func (s *storePG) queryEpisodes(ctx context.Context, w *where) ([]Episode, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+episodeCols+` FROM patient_episode`+w.clause()+` ORDER BY admitted_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectEpisodes(rows)
}

func (s *storePG) Snapshots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ResourceSnapshot, error) {
	w := &where{}
	if len(branchIDs) > 0 {
		w.add("s.branch_id = ANY(?)", branchIDs)
	}
	w.add("s.record_date >= ?", from)
	w.add("s.record_date <= ?", to)

	rows, err := s.pool.Query(ctx, `
		SELECT `+snapshotCols+`
		FROM resource_snapshot s
		JOIN hospital_branch b ON b.id = s.branch_id`+
		w.clause()+` ORDER BY s.record_date, s.record_hour`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []ResourceSnapshot
	for rows.Next() {
		var sn ResourceSnapshot
		if err := rows.Scan(&sn.BranchID, &sn.Date, &sn.Hour, &sn.BedsOccupied, &sn.ICUOccupied, &sn.VentilatorsUsed,
			&sn.BedCount, &sn.ICUBeds, &sn.VentilatorCount); err != nil {
			return nil, err
		}
		snaps = append(snaps, sn)
	}
	return snaps, rows.Err()
}

func (s *storePG) Procedures(ctx context.Context, f CohortFilter) ([]ProcedureRecord, error) {
	w := episodeWhere(f, "performed_at")
	rows, err := s.pool.Query(ctx, `
		SELECT id, episode_id, branch_id, department_id, performed_at, duration_minutes
		FROM procedure_record`+w.clause()+` ORDER BY performed_at`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var procs []ProcedureRecord
	for rows.Next() {
		var p ProcedureRecord
		if err := rows.Scan(&p.ID, &p.EpisodeID, &p.BranchID, &p.DepartmentID, &p.PerformedAt, &p.DurationMinutes); err != nil {
			return nil, err
		}
		procs = append(procs, p)
	}
	return procs, rows.Err()
}

func (s *storePG) Billing(ctx context.Context, f CohortFilter) ([]BillingRecord, error) {
	w := &where{}
	if len(f.BranchIDs) > 0 {
		w.add("b.branch_id = ANY(?)", f.BranchIDs)
	}
	if len(f.DepartmentIDs) > 0 {
		w.add("e.department_id = ANY(?)", f.DepartmentIDs)
	}
	if !f.From.IsZero() {
		w.add("e.admitted_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("e.admitted_at < ?", f.To.AddDate(0, 0, 1))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT b.episode_id, b.branch_id, b.total_amount
		FROM billing_record b
		JOIN patient_episode e ON e.id = b.episode_id`+w.clause(), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bills []BillingRecord
	for rows.Next() {
		var b BillingRecord
		if err := rows.Scan(&b.EpisodeID, &b.BranchID, &b.TotalAmount); err != nil {
			return nil, err
		}
		bills = append(bills, b)
	}
	return bills, rows.Err()
}

func (s *storePG) Readmissions(ctx context.Context, f CohortFilter) ([]ReadmissionLink, error) {
	w := &where{}
	if len(f.BranchIDs) > 0 {
		w.add("r.branch_id = ANY(?)", f.BranchIDs)
	}
	if len(f.DepartmentIDs) > 0 {
		w.add("e.department_id = ANY(?)", f.DepartmentIDs)
	}
	if !f.From.IsZero() {
		w.add("e.admitted_at >= ?", f.From)
	}
	if !f.To.IsZero() {
		w.add("e.admitted_at < ?", f.To.AddDate(0, 0, 1))
	}

	rows, err := s.pool.Query(ctx, `
		SELECT r.prior_episode_id, r.next_episode_id, r.branch_id, r.gap_days
		FROM readmission_link r
		JOIN patient_episode e ON e.id = r.prior_episode_id`+w.clause(), w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []ReadmissionLink
	for rows.Next() {
		var l ReadmissionLink
		if err := rows.Scan(&l.PriorEpisodeID, &l.NextEpisodeID, &l.BranchID, &l.GapDays); err != nil {
			return nil, err
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

func (s *storePG) ScheduleSlots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	w := &where{}
	if len(branchIDs) > 0 {
		w.add("branch_id = ANY(?)", branchIDs)
	}
	w.add("slot_date >= ?", from)
	w.add("slot_date <= ?", to)

	rows, err := s.pool.Query(ctx, `
		SELECT doctor_id, branch_id, slot_date, is_booked
		FROM doctor_schedule_slot`+w.clause()+` ORDER BY slot_date`, w.args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slots []ScheduleSlot
	for rows.Next() {
		var sl ScheduleSlot
		if err := rows.Scan(&sl.DoctorID, &sl.BranchID, &sl.SlotDate, &sl.Booked); err != nil {
			return nil, err
		}
		slots = append(slots, sl)
	}
	return slots, rows.Err()
}

func collectEpisodes(rows pgx.Rows) ([]Episode, error) {
	var eps []Episode
	for rows.Next() {
		var e Episode
		if err := rows.Scan(&e.ID, &e.BranchID, &e.DepartmentID, &e.AdmissionType, &e.AdmittedAt, &e.DischargedAt, &e.OutcomeCode); err != nil {
			return nil, err
		}
		eps = append(eps, e)
	}
	return eps, rows.Err()
}
