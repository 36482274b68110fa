// Package seed generates reproducible synthetic hospital fact data for demo
// environments and local development. Volumes are shaped so the derived
// analytics look plausible: weekday admission peaks, a small share of open
// episodes, occupancy that tracks admissions.
package seed

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

// Config controls the volume and shape of generated data.
type Config struct {
	Branches             int
	DepartmentsPerBranch int
	EpisodesPerBranch    int
	DoctorsPerBranch     int
	DaysOfHistory        int
	Seed                 int64
}

// DefaultConfig returns volumes sized for a demo instance.
func DefaultConfig() Config {
	return Config{
		Branches:             4,
		DepartmentsPerBranch: 6,
		EpisodesPerBranch:    400,
		DoctorsPerBranch:     25,
		DaysOfHistory:        120,
	}
}

// Dataset holds one generated set of fact rows.
type Dataset struct {
	Branches     []facts.Branch
	Departments  []facts.Department
	Episodes     []facts.Episode
	Snapshots    []facts.ResourceSnapshot
	Procedures   []facts.ProcedureRecord
	Billing      []facts.BillingRecord
	Readmissions []facts.ReadmissionLink
	Schedules    []facts.ScheduleSlot
}

// Result summarizes a seed run.
type Result struct {
	Branches     int           `json:"branches"`
	Departments  int           `json:"departments"`
	Episodes     int           `json:"episodes"`
	Snapshots    int           `json:"snapshots"`
	Procedures   int           `json:"procedures"`
	Billing      int           `json:"billing"`
	Readmissions int           `json:"readmissions"`
	Schedules    int           `json:"schedules"`
	Duration     time.Duration `json:"duration"`
}

var (
	branchNames = []string{
		"Mercy General", "St. Luke's Medical Center", "Riverside Community",
		"Northside Health Campus", "Summit Regional", "Lakewood Memorial",
		"Valley Care Hospital", "Beacon Medical Center",
	}
	branchCities = []string{
		"Chicago", "Houston", "Phoenix", "Columbus", "Charlotte",
		"Denver", "Portland", "Nashville",
	}
	departmentPool = []struct {
		Code string
		Name string
	}{
		{"ER", "Emergency"},
		{"ICU", "Intensive Care"},
		{"CARD", "Cardiology"},
		{"ORTHO", "Orthopedics"},
		{"PED", "Pediatrics"},
		{"ONC", "Oncology"},
		{"NEURO", "Neurology"},
		{"GEN", "General Medicine"},
	}
	admissionTypes = []string{
		facts.AdmissionEmergency, facts.AdmissionEmergency,
		facts.AdmissionScheduled, facts.AdmissionScheduled,
		facts.AdmissionScheduled, facts.AdmissionTransfer,
	}
	outcomeCodes = []string{
		facts.OutcomeRecovered, facts.OutcomeRecovered, facts.OutcomeRecovered,
		facts.OutcomeImproved, facts.OutcomeImproved,
		facts.OutcomeTransferred, facts.OutcomeDeceased, facts.OutcomeLAMA,
	}
)

// Generator produces one deterministic Dataset per call.
type Generator struct {
	cfg Config
	rng *rand.Rand
	now time.Time
}

// NewGenerator returns a generator anchored at now. A zero cfg.Seed picks a
// time-based seed, giving a different dataset per run.
func NewGenerator(cfg Config, now time.Time) *Generator {
	seed := cfg.Seed
	if seed == 0 {
		seed = now.UnixNano()
	}
	return &Generator{
		cfg: cfg,
		rng: rand.New(rand.NewSource(seed)),
		now: now,
	}
}

// Generate builds a full dataset according to the config.
func (g *Generator) Generate() *Dataset {
	ds := &Dataset{}

	for i := 0; i < g.cfg.Branches; i++ {
		branch := facts.Branch{
			ID:              g.uuid(),
			Name:            branchNames[i%len(branchNames)],
			City:            branchCities[i%len(branchCities)],
			BedCount:        150 + g.rng.Intn(250),
			ICUBeds:         10 + g.rng.Intn(30),
			VentilatorCount: 8 + g.rng.Intn(20),
		}
		ds.Branches = append(ds.Branches, branch)

		depts := g.departments(branch.ID)
		ds.Departments = append(ds.Departments, depts...)

		episodes := g.episodes(branch.ID, depts)
		ds.Episodes = append(ds.Episodes, episodes...)

		ds.Snapshots = append(ds.Snapshots, g.snapshots(branch)...)
		ds.Schedules = append(ds.Schedules, g.schedules(branch.ID)...)

		procs, bills, readms := g.clinicalRecords(branch.ID, episodes)
		ds.Procedures = append(ds.Procedures, procs...)
		ds.Billing = append(ds.Billing, bills...)
		ds.Readmissions = append(ds.Readmissions, readms...)
	}

	return ds
}

func (g *Generator) uuid() uuid.UUID {
	var b [16]byte
	g.rng.Read(b[:])
	b[6] = (b[6] & 0x0f) | 0x40
	b[8] = (b[8] & 0x3f) | 0x80
	return uuid.UUID(b)
}

func (g *Generator) departments(branchID uuid.UUID) []facts.Department {
	n := g.cfg.DepartmentsPerBranch
	if n > len(departmentPool) {
		n = len(departmentPool)
	}
	out := make([]facts.Department, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, facts.Department{
			ID:       g.uuid(),
			BranchID: branchID,
			Code:     departmentPool[i].Code,
			Name:     departmentPool[i].Name,
		})
	}
	return out
}

func (g *Generator) episodes(branchID uuid.UUID, depts []facts.Department) []facts.Episode {
	out := make([]facts.Episode, 0, g.cfg.EpisodesPerBranch)
	for i := 0; i < g.cfg.EpisodesPerBranch; i++ {
		admitted := g.admissionTime()
		ep := facts.Episode{
			ID:            g.uuid(),
			BranchID:      branchID,
			DepartmentID:  depts[g.rng.Intn(len(depts))].ID,
			AdmissionType: admissionTypes[g.rng.Intn(len(admissionTypes))],
			AdmittedAt:    admitted,
		}
		// Roughly 1 in 12 episodes stays open.
		if g.rng.Intn(12) != 0 {
			stayHours := 12 + g.rng.Intn(24*9)
			if g.rng.Intn(20) == 0 {
				// Occasional long-stay outlier
				stayHours += 24 * (10 + g.rng.Intn(15))
			}
			discharged := admitted.Add(time.Duration(stayHours) * time.Hour)
			if discharged.Before(g.now) {
				ep.DischargedAt = &discharged
				ep.OutcomeCode = outcomeCodes[g.rng.Intn(len(outcomeCodes))]
			}
		}
		out = append(out, ep)
	}
	return out
}

// admissionTime biases admissions toward weekdays and the 08:00-20:00 window.
func (g *Generator) admissionTime() time.Time {
	day := g.now.AddDate(0, 0, -g.rng.Intn(g.cfg.DaysOfHistory))
	if wd := day.Weekday(); (wd == time.Saturday || wd == time.Sunday) && g.rng.Intn(3) != 0 {
		day = day.AddDate(0, 0, -int(wd)%5-1)
	}
	hour := 8 + g.rng.Intn(12)
	if g.rng.Intn(4) == 0 {
		hour = g.rng.Intn(24)
	}
	return time.Date(day.Year(), day.Month(), day.Day(), hour, g.rng.Intn(60), 0, 0, time.UTC)
}

func (g *Generator) snapshots(branch facts.Branch) []facts.ResourceSnapshot {
	out := make([]facts.ResourceSnapshot, 0, g.cfg.DaysOfHistory*4)
	base := 0.55 + g.rng.Float64()*0.25
	for d := g.cfg.DaysOfHistory; d >= 0; d-- {
		day := g.now.AddDate(0, 0, -d)
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		for _, hour := range []int{0, 6, 12, 18} {
			load := base + (g.rng.Float64()-0.5)*0.2
			if hour == 12 || hour == 18 {
				load += 0.1
			}
			if load > 1 {
				load = 1
			}
			if load < 0.2 {
				load = 0.2
			}
			out = append(out, facts.ResourceSnapshot{
				BranchID:        branch.ID,
				Date:            date,
				Hour:            hour,
				BedsOccupied:    int(load * float64(branch.BedCount)),
				ICUOccupied:     int(load * float64(branch.ICUBeds)),
				VentilatorsUsed: int(load * 0.7 * float64(branch.VentilatorCount)),
				BedCount:        branch.BedCount,
				ICUBeds:         branch.ICUBeds,
				VentilatorCount: branch.VentilatorCount,
			})
		}
	}
	return out
}

func (g *Generator) schedules(branchID uuid.UUID) []facts.ScheduleSlot {
	doctors := make([]uuid.UUID, g.cfg.DoctorsPerBranch)
	for i := range doctors {
		doctors[i] = g.uuid()
	}
	out := make([]facts.ScheduleSlot, 0, len(doctors)*g.cfg.DaysOfHistory/2)
	for d := g.cfg.DaysOfHistory; d >= 0; d-- {
		day := g.now.AddDate(0, 0, -d)
		if day.Weekday() == time.Sunday {
			continue
		}
		date := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
		for _, doc := range doctors {
			out = append(out, facts.ScheduleSlot{
				DoctorID: doc,
				BranchID: branchID,
				SlotDate: date,
				Booked:   g.rng.Float64() < 0.72,
			})
		}
	}
	return out
}

func (g *Generator) clinicalRecords(branchID uuid.UUID, episodes []facts.Episode) ([]facts.ProcedureRecord, []facts.BillingRecord, []facts.ReadmissionLink) {
	var procs []facts.ProcedureRecord
	var bills []facts.BillingRecord
	var readms []facts.ReadmissionLink

	for i, ep := range episodes {
		for j := 0; j < g.rng.Intn(3); j++ {
			procs = append(procs, facts.ProcedureRecord{
				ID:              g.uuid(),
				EpisodeID:       ep.ID,
				BranchID:        branchID,
				DepartmentID:    ep.DepartmentID,
				PerformedAt:     ep.AdmittedAt.Add(time.Duration(2+g.rng.Intn(48)) * time.Hour),
				DurationMinutes: 20 + g.rng.Intn(160),
			})
		}

		if ep.Closed() {
			amount := 800 + g.rng.Float64()*12000
			if ep.AdmissionType == facts.AdmissionEmergency {
				amount *= 1.4
			}
			bills = append(bills, facts.BillingRecord{
				EpisodeID:   ep.ID,
				BranchID:    branchID,
				TotalAmount: facts.Round2(amount),
			})
		}

		// Roughly 8% of closed episodes get a readmission within 30 days.
		if ep.Closed() && g.rng.Intn(12) == 0 && i+1 < len(episodes) {
			readms = append(readms, facts.ReadmissionLink{
				PriorEpisodeID: ep.ID,
				NextEpisodeID:  episodes[i+1].ID,
				BranchID:       branchID,
				GapDays:        1 + g.rng.Intn(30),
			})
		}
	}
	return procs, bills, readms
}

// Fill loads the dataset into an in-memory store, replacing its contents.
func (ds *Dataset) Fill(ms *facts.MemStore) {
	ms.BranchRows = ds.Branches
	ms.DepartmentRows = ds.Departments
	ms.EpisodeRows = ds.Episodes
	ms.SnapshotRows = ds.Snapshots
	ms.ProcedureRows = ds.Procedures
	ms.BillingRows = ds.Billing
	ms.ReadmissionRows = ds.Readmissions
	ms.ScheduleRows = ds.Schedules
}

// Result tallies the dataset row counts.
func (ds *Dataset) Result(duration time.Duration) Result {
	return Result{
		Branches:     len(ds.Branches),
		Departments:  len(ds.Departments),
		Episodes:     len(ds.Episodes),
		Snapshots:    len(ds.Snapshots),
		Procedures:   len(ds.Procedures),
		Billing:      len(ds.Billing),
		Readmissions: len(ds.Readmissions),
		Schedules:    len(ds.Schedules),
		Duration:     duration,
	}
}

// Apply writes the dataset to the database inside one transaction, using
// COPY for the bulk tables. Existing fact rows are removed first.
func Apply(ctx context.Context, pool *pgxpool.Pool, ds *Dataset) (Result, error) {
	start := time.Now()

	tx, err := pool.Begin(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("begin seed transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	truncate := []string{
		"readmission_link", "billing_record", "procedure_record",
		"doctor_schedule_slot", "resource_snapshot", "patient_episode",
		"department", "hospital_branch",
	}
	for _, table := range truncate {
		if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
			return Result{}, fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, b := range ds.Branches {
		_, err := tx.Exec(ctx,
			`INSERT INTO hospital_branch (id, name, city, bed_count, icu_beds, ventilator_count)
			 VALUES ($1, $2, $3, $4, $5, $6)`,
			b.ID, b.Name, b.City, b.BedCount, b.ICUBeds, b.VentilatorCount)
		if err != nil {
			return Result{}, fmt.Errorf("insert branch: %w", err)
		}
	}
	for _, d := range ds.Departments {
		_, err := tx.Exec(ctx,
			`INSERT INTO department (id, branch_id, code, name) VALUES ($1, $2, $3, $4)`,
			d.ID, d.BranchID, d.Code, d.Name)
		if err != nil {
			return Result{}, fmt.Errorf("insert department: %w", err)
		}
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"patient_episode"},
		[]string{"id", "branch_id", "department_id", "admission_type", "admitted_at", "discharged_at", "outcome_code"},
		pgx.CopyFromSlice(len(ds.Episodes), func(i int) ([]any, error) {
			e := ds.Episodes[i]
			var outcome any
			if e.OutcomeCode != "" {
				outcome = e.OutcomeCode
			}
			return []any{e.ID, e.BranchID, e.DepartmentID, e.AdmissionType, e.AdmittedAt, e.DischargedAt, outcome}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy episodes: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"resource_snapshot"},
		[]string{"branch_id", "record_date", "record_hour", "beds_occupied", "icu_occupied", "ventilators_used"},
		pgx.CopyFromSlice(len(ds.Snapshots), func(i int) ([]any, error) {
			s := ds.Snapshots[i]
			return []any{s.BranchID, s.Date, s.Hour, s.BedsOccupied, s.ICUOccupied, s.VentilatorsUsed}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy snapshots: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"procedure_record"},
		[]string{"id", "episode_id", "branch_id", "department_id", "performed_at", "duration_minutes"},
		pgx.CopyFromSlice(len(ds.Procedures), func(i int) ([]any, error) {
			p := ds.Procedures[i]
			return []any{p.ID, p.EpisodeID, p.BranchID, p.DepartmentID, p.PerformedAt, p.DurationMinutes}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy procedures: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"billing_record"},
		[]string{"episode_id", "branch_id", "total_amount"},
		pgx.CopyFromSlice(len(ds.Billing), func(i int) ([]any, error) {
			b := ds.Billing[i]
			return []any{b.EpisodeID, b.BranchID, b.TotalAmount}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy billing: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"readmission_link"},
		[]string{"prior_episode_id", "next_episode_id", "branch_id", "gap_days"},
		pgx.CopyFromSlice(len(ds.Readmissions), func(i int) ([]any, error) {
			r := ds.Readmissions[i]
			return []any{r.PriorEpisodeID, r.NextEpisodeID, r.BranchID, r.GapDays}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy readmissions: %w", err)
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"doctor_schedule_slot"},
		[]string{"doctor_id", "branch_id", "slot_date", "is_booked"},
		pgx.CopyFromSlice(len(ds.Schedules), func(i int) ([]any, error) {
			s := ds.Schedules[i]
			return []any{s.DoctorID, s.BranchID, s.SlotDate, s.Booked}, nil
		}))
	if err != nil {
		return Result{}, fmt.Errorf("copy schedules: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return Result{}, fmt.Errorf("commit seed transaction: %w", err)
	}
	return ds.Result(time.Since(start)), nil
}
