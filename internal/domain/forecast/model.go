package forecast

import (
	"time"

	"github.com/google/uuid"
)

// Alert types emitted by the threshold and resource checks.
const (
	AlertHighBedOccupancy       = "high_bed_occupancy"
	AlertHighICUUtilization     = "high_icu_utilization"
	AlertDoctorOverutilization  = "doctor_overutilization"
	AlertICUShortageRisk        = "icu_shortage_risk"
	AlertVentilatorShortageRisk = "ventilator_shortage_risk"
)

// Alert severities.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Alert is a derived signal, never stored. Value carries full precision;
// the message rounds to 2 decimals.
type Alert struct {
	Type         string     `json:"type"`
	Severity     string     `json:"severity"`
	Message      string     `json:"message"`
	BranchID     uuid.UUID  `json:"branch_id"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Value        float64    `json:"value"`
	Threshold    float64    `json:"threshold"`
	ValidFrom    time.Time  `json:"valid_from"`
	ValidTo      time.Time  `json:"valid_to"`
}

// AdmissionPoint is one day in the admission moving-average series.
type AdmissionPoint struct {
	Date       string  `json:"date"`
	Admissions int     `json:"admissions"`
	MovingAvg  float64 `json:"moving_avg"`
}

// OccupancyPoint is one day in a branch occupancy series. AboveThreshold
// compares the raw daily occupancy, not the trailing average, so a single
// spiking day is flagged even while the average lags behind.
type OccupancyPoint struct {
	Date           string  `json:"date"`
	OccupancyPct   float64 `json:"occupancy_pct"`
	MovingAvg      float64 `json:"moving_avg"`
	AboveThreshold bool    `json:"above_threshold"`
}

// BranchOccupancySeries is the per-branch occupancy forecast. The forecast
// value is the last trailing average; no extrapolation happens beyond the
// observed window.
type BranchOccupancySeries struct {
	BranchID   uuid.UUID        `json:"branch_id"`
	BranchName string           `json:"branch_name"`
	Forecast   float64          `json:"forecast"`
	Points     []OccupancyPoint `json:"points"`
}

// Thresholds carries the configurable alert cutoffs. Comparisons are
// inclusive: a value exactly at the cutoff triggers.
type Thresholds struct {
	BedOccupancyPct      float64
	ICUOccupancyPct      float64
	DoctorUtilizationPct float64
}

// DefaultThresholds are applied when a caller leaves a cutoff unset.
var DefaultThresholds = Thresholds{
	BedOccupancyPct:      85,
	ICUOccupancyPct:      90,
	DoctorUtilizationPct: 95,
}
