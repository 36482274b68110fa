package facts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MemStore is an in-memory Store over fixed row slices. It applies the same
// filter semantics as the Postgres store and lets callers inject per-source
// failures, which the engine packages use to exercise their soft-fail paths.
type MemStore struct {
	BranchRows      []Branch
	DepartmentRows  []Department
	EpisodeRows     []Episode
	SnapshotRows    []ResourceSnapshot
	ProcedureRows   []ProcedureRecord
	BillingRows     []BillingRecord
	ReadmissionRows []ReadmissionLink
	ScheduleRows    []ScheduleSlot

	BranchesErr     error
	DepartmentsErr  error
	EpisodesErr     error
	SnapshotsErr    error
	ProceduresErr   error
	BillingErr      error
	ReadmissionsErr error
	SchedulesErr    error
}

var _ Store = (*MemStore)(nil)

func (m *MemStore) Branches(ctx context.Context) ([]Branch, error) {
	if m.BranchesErr != nil {
		return nil, m.BranchesErr
	}
	return append([]Branch(nil), m.BranchRows...), nil
}

func (m *MemStore) Departments(ctx context.Context, branchIDs []uuid.UUID) ([]Department, error) {
	if m.DepartmentsErr != nil {
		return nil, m.DepartmentsErr
	}
	var out []Department
	for _, d := range m.DepartmentRows {
		if matchScope(branchIDs, d.BranchID) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *MemStore) Episodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	if m.EpisodesErr != nil {
		return nil, m.EpisodesErr
	}
	var out []Episode
	for _, e := range m.EpisodeRows {
		if f.HasBranch(e.BranchID) && f.HasDepartment(e.DepartmentID) && f.InRange(e.AdmittedAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) ClosedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	eps, err := m.Episodes(ctx, f)
	if err != nil {
		return nil, err
	}
	var out []Episode
	for _, e := range eps {
		if e.Closed() {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) DischargedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error) {
	if m.EpisodesErr != nil {
		return nil, m.EpisodesErr
	}
	var out []Episode
	for _, e := range m.EpisodeRows {
		if !e.Closed() {
			continue
		}
		if f.HasBranch(e.BranchID) && f.HasDepartment(e.DepartmentID) && f.InRange(*e.DischargedAt) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *MemStore) Snapshots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ResourceSnapshot, error) {
	if m.SnapshotsErr != nil {
		return nil, m.SnapshotsErr
	}
	var out []ResourceSnapshot
	for _, s := range m.SnapshotRows {
		if matchScope(branchIDs, s.BranchID) && !s.Date.Before(from) && !s.Date.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) Procedures(ctx context.Context, f CohortFilter) ([]ProcedureRecord, error) {
	if m.ProceduresErr != nil {
		return nil, m.ProceduresErr
	}
	var out []ProcedureRecord
	for _, p := range m.ProcedureRows {
		if f.HasBranch(p.BranchID) && f.HasDepartment(p.DepartmentID) && f.InRange(p.PerformedAt) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *MemStore) Billing(ctx context.Context, f CohortFilter) ([]BillingRecord, error) {
	if m.BillingErr != nil {
		return nil, m.BillingErr
	}
	admitted := m.admittedSet(f)
	var out []BillingRecord
	for _, b := range m.BillingRows {
		if _, ok := admitted[b.EpisodeID]; ok {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *MemStore) Readmissions(ctx context.Context, f CohortFilter) ([]ReadmissionLink, error) {
	if m.ReadmissionsErr != nil {
		return nil, m.ReadmissionsErr
	}
	admitted := m.admittedSet(f)
	var out []ReadmissionLink
	for _, l := range m.ReadmissionRows {
		if _, ok := admitted[l.PriorEpisodeID]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *MemStore) ScheduleSlots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ScheduleSlot, error) {
	if m.SchedulesErr != nil {
		return nil, m.SchedulesErr
	}
	var out []ScheduleSlot
	for _, s := range m.ScheduleRows {
		if matchScope(branchIDs, s.BranchID) && !s.SlotDate.Before(from) && !s.SlotDate.After(to) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (m *MemStore) admittedSet(f CohortFilter) map[uuid.UUID]struct{} {
	set := make(map[uuid.UUID]struct{})
	for _, e := range m.EpisodeRows {
		if f.HasBranch(e.BranchID) && f.HasDepartment(e.DepartmentID) && f.InRange(e.AdmittedAt) {
			set[e.ID] = struct{}{}
		}
	}
	return set
}
