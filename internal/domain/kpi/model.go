package kpi

import "time"

// OutcomeCounts buckets discharges by outcome code. Codes without a
// dedicated bucket land in Other, so the buckets always sum to the
// discharge total.
type OutcomeCounts struct {
	Recovered   int `json:"recovered"`
	Improved    int `json:"improved"`
	Transferred int `json:"transferred"`
	Deceased    int `json:"deceased"`
	Other       int `json:"other"`
}

// Sources marks which optional fact sources were readable for this summary.
// A false flag means the corresponding fields are zero because the source
// could not be queried, not because the cohort was empty.
type Sources struct {
	Occupancy    bool `json:"occupancy"`
	Utilization  bool `json:"utilization"`
	Procedures   bool `json:"procedures"`
	Readmissions bool `json:"readmissions"`
	Billing      bool `json:"billing"`
}

// Summary is the single-record KPI rollup for a cohort. Percentages are
// rounded to 2 decimals; counts are exact.
type Summary struct {
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`

	TotalAdmissions int `json:"total_admissions"`
	TotalDischarges int `json:"total_discharges"`

	AvgLengthOfStayDays  float64 `json:"avg_length_of_stay_days"`
	BedOccupancyPct      float64 `json:"bed_occupancy_pct"`
	DoctorUtilizationPct float64 `json:"doctor_utilization_pct"`
	ReadmissionRatePct   float64 `json:"readmission_rate_pct"`
	CostPerDischarge     float64 `json:"cost_per_discharge"`

	ProcedureVolume     int `json:"procedure_volume"`
	EmergencyAdmissions int `json:"emergency_admissions"`
	ScheduledAdmissions int `json:"scheduled_admissions"`

	Outcomes OutcomeCounts `json:"outcomes"`
	Sources  Sources       `json:"sources"`
}
