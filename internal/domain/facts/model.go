package facts

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Admission types recorded on an episode.
const (
	AdmissionEmergency = "Emergency"
	AdmissionScheduled = "Scheduled"
	AdmissionTransfer  = "Transfer"
)

// Outcome codes with dedicated KPI buckets. Anything else lands in "other".
const (
	OutcomeRecovered   = "Recovered"
	OutcomeImproved    = "Improved"
	OutcomeTransferred = "Transferred"
	OutcomeDeceased    = "Deceased"
	OutcomeLAMA        = "LAMA"
)

// Branch maps to the hospital_branch table, capacity columns included.
type Branch struct {
	ID              uuid.UUID `db:"id" json:"id"`
	Name            string    `db:"name" json:"name"`
	City            string    `db:"city" json:"city"`
	BedCount        int       `db:"bed_count" json:"bed_count"`
	ICUBeds         int       `db:"icu_beds" json:"icu_beds"`
	VentilatorCount int       `db:"ventilator_count" json:"ventilator_count"`
}

// Department maps to the department table.
type Department struct {
	ID       uuid.UUID `db:"id" json:"id"`
	BranchID uuid.UUID `db:"branch_id" json:"branch_id"`
	Code     string    `db:"code" json:"code"`
	Name     string    `db:"name" json:"name"`
}

// Episode is one admission paired with at most one discharge. It is immutable
// for analytics purposes once closed.
type Episode struct {
	ID            uuid.UUID  `db:"id" json:"id"`
	BranchID      uuid.UUID  `db:"branch_id" json:"branch_id"`
	DepartmentID  uuid.UUID  `db:"department_id" json:"department_id"`
	AdmissionType string     `db:"admission_type" json:"admission_type"`
	AdmittedAt    time.Time  `db:"admitted_at" json:"admitted_at"`
	DischargedAt  *time.Time `db:"discharged_at" json:"discharged_at,omitempty"`
	OutcomeCode   string     `db:"outcome_code" json:"outcome_code,omitempty"`
}

// Closed reports whether the episode has a discharge.
func (e *Episode) Closed() bool { return e.DischargedAt != nil }

// LengthOfStayDays returns discharge minus admission in fractional days,
// 0 for an open episode.
func (e *Episode) LengthOfStayDays() float64 {
	if e.DischargedAt == nil {
		return 0
	}
	return e.DischargedAt.Sub(e.AdmittedAt).Hours() / 24
}

// ResourceSnapshot is one hourly occupancy observation for a branch, with the
// branch capacity columns joined in so ratios can be derived without a second
// lookup. Occupied counts above capacity are tolerated here and clipped at
// render time.
type ResourceSnapshot struct {
	BranchID        uuid.UUID `db:"branch_id" json:"branch_id"`
	Date            time.Time `db:"record_date" json:"record_date"`
	Hour            int       `db:"record_hour" json:"record_hour"`
	BedsOccupied    int       `db:"beds_occupied" json:"beds_occupied"`
	ICUOccupied     int       `db:"icu_occupied" json:"icu_occupied"`
	VentilatorsUsed int       `db:"ventilators_used" json:"ventilators_used"`
	BedCount        int       `db:"bed_count" json:"bed_count"`
	ICUBeds         int       `db:"icu_beds" json:"icu_beds"`
	VentilatorCount int       `db:"ventilator_count" json:"ventilator_count"`
}

// BedOccupancyPct returns occupied/capacity*100; ok is false when the branch
// has zero bed capacity and the snapshot must be excluded from means.
func (s *ResourceSnapshot) BedOccupancyPct() (float64, bool) {
	return ratioPct(s.BedsOccupied, s.BedCount)
}

// ICUOccupancyPct returns the ICU ratio; ok is false for zero-ICU branches.
func (s *ResourceSnapshot) ICUOccupancyPct() (float64, bool) {
	return ratioPct(s.ICUOccupied, s.ICUBeds)
}

// VentilatorUsePct returns the ventilator ratio; ok is false when the branch
// owns no ventilators.
func (s *ResourceSnapshot) VentilatorUsePct() (float64, bool) {
	return ratioPct(s.VentilatorsUsed, s.VentilatorCount)
}

func ratioPct(occupied, capacity int) (float64, bool) {
	if capacity <= 0 {
		return 0, false
	}
	return float64(occupied) * 100 / float64(capacity), true
}

// ProcedureRecord ties a performed procedure to its parent episode. The
// engine only counts volume; duration is carried for completeness.
type ProcedureRecord struct {
	ID              uuid.UUID `db:"id" json:"id"`
	EpisodeID       uuid.UUID `db:"episode_id" json:"episode_id"`
	BranchID        uuid.UUID `db:"branch_id" json:"branch_id"`
	DepartmentID    uuid.UUID `db:"department_id" json:"department_id"`
	PerformedAt     time.Time `db:"performed_at" json:"performed_at"`
	DurationMinutes int       `db:"duration_minutes" json:"duration_minutes"`
}

// BillingRecord is the billed total for one episode.
type BillingRecord struct {
	EpisodeID   uuid.UUID `db:"episode_id" json:"episode_id"`
	BranchID    uuid.UUID `db:"branch_id" json:"branch_id"`
	TotalAmount float64   `db:"total_amount" json:"total_amount"`
}

// ReadmissionLink connects a prior episode to a subsequent one for the same
// patient with a gap of 1-30 days. BranchID is the prior episode's branch.
type ReadmissionLink struct {
	PriorEpisodeID uuid.UUID `db:"prior_episode_id" json:"prior_episode_id"`
	NextEpisodeID  uuid.UUID `db:"next_episode_id" json:"next_episode_id"`
	BranchID       uuid.UUID `db:"branch_id" json:"branch_id"`
	GapDays        int       `db:"gap_days" json:"gap_days"`
}

// ScheduleSlot is one doctor slot on one date with its booked flag, carrying
// the branch of the doctor's department.
type ScheduleSlot struct {
	DoctorID uuid.UUID `db:"doctor_id" json:"doctor_id"`
	BranchID uuid.UUID `db:"branch_id" json:"branch_id"`
	SlotDate time.Time `db:"slot_date" json:"slot_date"`
	Booked   bool      `db:"is_booked" json:"is_booked"`
}

// Round2 rounds a percentage or money value to 2 decimal places. Every
// numeric ratio leaves the engine through this.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
