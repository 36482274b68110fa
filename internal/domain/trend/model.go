package trend

import (
	"time"

	"github.com/google/uuid"
)

// TrendPoint is one bucket in a trend series. Admissions count episodes
// admitted inside the bucket; Discharges count discharge events landing in
// the bucket, so the two can diverge for stays spanning bucket boundaries.
type TrendPoint struct {
	Period       string    `json:"period"`
	PeriodStart  time.Time `json:"period_start"`
	Admissions   int       `json:"admissions"`
	Discharges   int       `json:"discharges"`
	AvgLOSDays   float64   `json:"avg_los_days"`
	OccupancyPct float64   `json:"occupancy_pct"`
}

// DepartmentRow is one department's rollup in a comparison. Departments with
// no matching episodes still get a row.
type DepartmentRow struct {
	DepartmentID        uuid.UUID `json:"department_id"`
	BranchID            uuid.UUID `json:"branch_id"`
	Name                string    `json:"name"`
	Admissions          int       `json:"admissions"`
	AvgLOSDays          float64   `json:"avg_los_days"`
	ProcedureVolume     int       `json:"procedure_volume"`
	EmergencyAdmissions int       `json:"emergency_admissions"`
}

// BranchRow is one branch's rollup in a comparison.
type BranchRow struct {
	BranchID           uuid.UUID `json:"branch_id"`
	Name               string    `json:"name"`
	Admissions         int       `json:"admissions"`
	AvgLOSDays         float64   `json:"avg_los_days"`
	CostPerDischarge   float64   `json:"cost_per_discharge"`
	ReadmissionRatePct float64   `json:"readmission_rate_pct"`
	BedOccupancyPct    float64   `json:"bed_occupancy_pct"`
}

// PeakHourRow is one cell of the admission histogram. DayOfWeek is nil when
// the caller asked for hour-only grouping; 0 is Sunday.
type PeakHourRow struct {
	Hour       int  `json:"hour"`
	DayOfWeek  *int `json:"day_of_week,omitempty"`
	Admissions int  `json:"admissions"`
}
