package facts

import (
	"time"

	"github.com/google/uuid"
)

// Operation identifies an engine entrypoint for lookback resolution.
type Operation string

const (
	OpKPISummary        Operation = "kpi_summary"
	OpTrends            Operation = "trends"
	OpComparison        Operation = "comparison"
	OpPeakHours         Operation = "peak_hours"
	OpBottlenecks       Operation = "bottlenecks"
	OpOccupancyForecast Operation = "occupancy_forecast"
	OpResourceAlerts    Operation = "resource_alerts"
	OpThresholdAlerts   Operation = "threshold_alerts"
)

// defaultLookbackDays holds the per-operation window applied when a caller
// omits the date range. Resource alerts always use their fixed window even
// when dates are supplied.
var defaultLookbackDays = map[Operation]int{
	OpKPISummary:        90,
	OpTrends:            90,
	OpComparison:        365,
	OpPeakHours:         30,
	OpBottlenecks:       30,
	OpOccupancyForecast: 14,
	OpResourceAlerts:    14,
	OpThresholdAlerts:   7,
}

// DefaultLookback returns the default window in days for an operation,
// falling back to 90 for an unknown key.
func DefaultLookback(op Operation) int {
	if d, ok := defaultLookbackDays[op]; ok {
		return d
	}
	return 90
}

// CohortFilter scopes a fact query. Zero From/To means "use the operation
// default"; empty ID slices mean "all branches" / "all departments".
type CohortFilter struct {
	BranchIDs     []uuid.UUID
	DepartmentIDs []uuid.UUID
	From          time.Time
	To            time.Time
}

// WithDefaults fills missing range bounds from the operation's lookback,
// anchored at now. A filter with both bounds set is returned unchanged.
func (f CohortFilter) WithDefaults(op Operation, now time.Time) CohortFilter {
	if f.To.IsZero() {
		f.To = now
	}
	if f.From.IsZero() {
		f.From = f.To.AddDate(0, 0, -DefaultLookback(op))
	}
	return f
}

// HasBranch reports whether id passes the branch scope.
func (f CohortFilter) HasBranch(id uuid.UUID) bool {
	return matchScope(f.BranchIDs, id)
}

// HasDepartment reports whether id passes the department scope.
func (f CohortFilter) HasDepartment(id uuid.UUID) bool {
	return matchScope(f.DepartmentIDs, id)
}

// InRange reports whether t falls inside [From, To]. The upper bound is
// inclusive through the end of To's calendar day.
func (f CohortFilter) InRange(t time.Time) bool {
	if !f.From.IsZero() && t.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && !t.Before(f.To.AddDate(0, 0, 1)) {
		return false
	}
	return true
}

func matchScope(scope []uuid.UUID, id uuid.UUID) bool {
	if len(scope) == 0 {
		return true
	}
	for _, s := range scope {
		if s == id {
			return true
		}
	}
	return false
}
