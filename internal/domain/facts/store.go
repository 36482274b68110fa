package facts

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the fact store accessor. Implementations return typed row sets
// scoped by filter; all metric derivation happens in the engine packages so
// the same reductions run against any backing store.
type Store interface {
	// Branches returns every branch with its capacity columns.
	Branches(ctx context.Context) ([]Branch, error)

	// Departments returns departments, scoped to branchIDs when non-empty.
	Departments(ctx context.Context, branchIDs []uuid.UUID) ([]Department, error)

	// Episodes returns every episode admitted inside the filter range,
	// open ones included.
	Episodes(ctx context.Context, f CohortFilter) ([]Episode, error)

	// ClosedEpisodes returns episodes admitted inside the filter range that
	// also have a discharge.
	ClosedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error)

	// DischargedEpisodes returns episodes whose discharge falls inside the
	// filter range regardless of when they were admitted.
	DischargedEpisodes(ctx context.Context, f CohortFilter) ([]Episode, error)

	// Snapshots returns hourly occupancy rows with branch capacities joined
	// in, for dates in [from, to].
	Snapshots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ResourceSnapshot, error)

	// Procedures returns procedures performed inside the filter range.
	Procedures(ctx context.Context, f CohortFilter) ([]ProcedureRecord, error)

	// Billing returns billing rows for episodes admitted inside the filter
	// range.
	Billing(ctx context.Context, f CohortFilter) ([]BillingRecord, error)

	// Readmissions returns readmission links whose prior episode was admitted
	// inside the filter range.
	Readmissions(ctx context.Context, f CohortFilter) ([]ReadmissionLink, error)

	// ScheduleSlots returns doctor slots dated in [from, to].
	ScheduleSlots(ctx context.Context, branchIDs []uuid.UUID, from, to time.Time) ([]ScheduleSlot, error)
}
