package kpi

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

func newService(store facts.Store, now time.Time) *Service {
	s := NewService(store, zerolog.Nop())
	s.now = func() time.Time { return now }
	return s
}

func closedEpisode(branch, dept uuid.UUID, admitted time.Time, losDays float64, outcome, admissionType string) facts.Episode {
	out := admitted.Add(time.Duration(losDays * 24 * float64(time.Hour)))
	return facts.Episode{
		ID:            uuid.New(),
		BranchID:      branch,
		DepartmentID:  dept,
		AdmissionType: admissionType,
		AdmittedAt:    admitted,
		DischargedAt:  &out,
		OutcomeCode:   outcome,
	}
}

func TestSummarize_TwoEpisodeCohort(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	store := &facts.MemStore{
		EpisodeRows: []facts.Episode{
			closedEpisode(branch, dept, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, facts.OutcomeRecovered, facts.AdmissionEmergency),
			closedEpisode(branch, dept, time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC), 7, facts.OutcomeDeceased, facts.AdmissionScheduled),
		},
	}
	svc := newService(store, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalAdmissions != 2 || sum.TotalDischarges != 2 {
		t.Errorf("expected 2 admissions and 2 discharges, got %d/%d", sum.TotalAdmissions, sum.TotalDischarges)
	}
	if sum.AvgLengthOfStayDays != 5.0 {
		t.Errorf("expected avg LOS 5.0, got %v", sum.AvgLengthOfStayDays)
	}
	if sum.Outcomes.Recovered != 1 || sum.Outcomes.Deceased != 1 || sum.Outcomes.Other != 0 {
		t.Errorf("unexpected outcome buckets: %+v", sum.Outcomes)
	}
	if sum.EmergencyAdmissions != 1 || sum.ScheduledAdmissions != 1 {
		t.Errorf("unexpected admission split: %d emergency, %d scheduled", sum.EmergencyAdmissions, sum.ScheduledAdmissions)
	}
	if sum.BedOccupancyPct != 0 || sum.DoctorUtilizationPct != 0 || sum.ReadmissionRatePct != 0 || sum.CostPerDischarge != 0 {
		t.Errorf("expected zero percentages with no optional facts, got %+v", sum)
	}
}

func TestSummarize_OpenEpisodesExcludedFromCounts(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	store := &facts.MemStore{
		EpisodeRows: []facts.Episode{
			closedEpisode(branch, dept, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, facts.OutcomeRecovered, facts.AdmissionScheduled),
			{
				ID: uuid.New(), BranchID: branch, DepartmentID: dept,
				AdmissionType: facts.AdmissionEmergency,
				AdmittedAt:    time.Date(2024, 1, 20, 0, 0, 0, 0, time.UTC),
			},
		},
	}
	svc := newService(store, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.TotalAdmissions != 1 {
		t.Errorf("open episode must not count as an admission, got %d", sum.TotalAdmissions)
	}
	if sum.EmergencyAdmissions != 0 || sum.ScheduledAdmissions != 1 {
		t.Errorf("open episode must not enter the admission split: %d emergency, %d scheduled",
			sum.EmergencyAdmissions, sum.ScheduledAdmissions)
	}
	if sum.TotalDischarges != 1 {
		t.Errorf("expected 1 discharge, got %d", sum.TotalDischarges)
	}
}

func TestSummarize_EmptyCohort(t *testing.T) {
	svc := newService(&facts.MemStore{}, time.Now())

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("empty cohort should not error: %v", err)
	}
	if sum.TotalAdmissions != 0 || sum.TotalDischarges != 0 || sum.AvgLengthOfStayDays != 0 {
		t.Errorf("expected all-zero summary, got %+v", sum)
	}
}

func TestSummarize_OutcomesSumToDischarges(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	store := &facts.MemStore{
		EpisodeRows: []facts.Episode{
			closedEpisode(branch, dept, base, 2, facts.OutcomeRecovered, facts.AdmissionEmergency),
			closedEpisode(branch, dept, base.AddDate(0, 0, 1), 4, facts.OutcomeImproved, facts.AdmissionScheduled),
			closedEpisode(branch, dept, base.AddDate(0, 0, 2), 1, facts.OutcomeTransferred, facts.AdmissionTransfer),
			closedEpisode(branch, dept, base.AddDate(0, 0, 3), 3, facts.OutcomeLAMA, facts.AdmissionEmergency),
			closedEpisode(branch, dept, base.AddDate(0, 0, 4), 5, "Unknown", facts.AdmissionScheduled),
		},
	}
	svc := newService(store, base.AddDate(0, 0, 30))

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	o := sum.Outcomes
	if got := o.Recovered + o.Improved + o.Transferred + o.Deceased + o.Other; got != sum.TotalDischarges {
		t.Errorf("outcome buckets sum %d, want %d", got, sum.TotalDischarges)
	}
	if o.Other != 2 {
		t.Errorf("LAMA and unknown codes should land in Other, got %d", o.Other)
	}
}

func TestSummarize_OptionalSourceFailsSoft(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	store := &facts.MemStore{
		EpisodeRows: []facts.Episode{
			closedEpisode(branch, dept, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), 3, facts.OutcomeRecovered, facts.AdmissionEmergency),
		},
		SnapshotsErr: errors.New("relation does not exist"),
		BillingErr:   errors.New("relation does not exist"),
	}
	svc := newService(store, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC))

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("optional source failure must not propagate: %v", err)
	}
	if sum.BedOccupancyPct != 0 || sum.CostPerDischarge != 0 {
		t.Errorf("failed sources should default to 0, got %+v", sum)
	}
	if sum.Sources.Occupancy || sum.Sources.Billing {
		t.Error("failed sources should be marked unavailable")
	}
	if !sum.Sources.Procedures || !sum.Sources.Readmissions || !sum.Sources.Utilization {
		t.Error("healthy sources should be marked available")
	}
}

func TestSummarize_EpisodeReadFailureIsFatal(t *testing.T) {
	store := &facts.MemStore{EpisodesErr: errors.New("connection refused")}
	svc := newService(store, time.Now())

	if _, err := svc.Summarize(context.Background(), facts.CohortFilter{}); err == nil {
		t.Fatal("expected error when the episode read fails")
	}
}

func TestSummarize_RatesAndOccupancy(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	base := time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)

	e1 := closedEpisode(branch, dept, base, 2, facts.OutcomeRecovered, facts.AdmissionEmergency)
	e2 := closedEpisode(branch, dept, base.AddDate(0, 0, 2), 3, facts.OutcomeImproved, facts.AdmissionScheduled)
	e3 := closedEpisode(branch, dept, base.AddDate(0, 0, 4), 1, facts.OutcomeRecovered, facts.AdmissionScheduled)
	e4 := closedEpisode(branch, dept, base.AddDate(0, 0, 6), 4, facts.OutcomeImproved, facts.AdmissionEmergency)

	store := &facts.MemStore{
		EpisodeRows: []facts.Episode{e1, e2, e3, e4},
		ReadmissionRows: []facts.ReadmissionLink{
			{PriorEpisodeID: e1.ID, NextEpisodeID: e3.ID, BranchID: branch, GapDays: 3},
		},
		BillingRows: []facts.BillingRecord{
			{EpisodeID: e1.ID, BranchID: branch, TotalAmount: 1200},
			{EpisodeID: e2.ID, BranchID: branch, TotalAmount: 1800},
		},
		SnapshotRows: []facts.ResourceSnapshot{
			{BranchID: branch, Date: base, Hour: 8, BedsOccupied: 40, BedCount: 50},
			{BranchID: branch, Date: base, Hour: 9, BedsOccupied: 45, BedCount: 50},
		},
		ScheduleRows: []facts.ScheduleSlot{
			{DoctorID: uuid.New(), BranchID: branch, SlotDate: base, Booked: true},
			{DoctorID: uuid.New(), BranchID: branch, SlotDate: base, Booked: true},
			{DoctorID: uuid.New(), BranchID: branch, SlotDate: base, Booked: false},
			{DoctorID: uuid.New(), BranchID: branch, SlotDate: base, Booked: false},
		},
	}
	svc := newService(store, base.AddDate(0, 0, 30))

	sum, err := svc.Summarize(context.Background(), facts.CohortFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sum.ReadmissionRatePct != 25 {
		t.Errorf("expected readmission rate 25, got %v", sum.ReadmissionRatePct)
	}
	if sum.CostPerDischarge != 1500 {
		t.Errorf("expected cost per discharge 1500, got %v", sum.CostPerDischarge)
	}
	if sum.BedOccupancyPct != 85 {
		t.Errorf("expected mean occupancy 85, got %v", sum.BedOccupancyPct)
	}
	if sum.DoctorUtilizationPct != 50 {
		t.Errorf("expected utilization 50, got %v", sum.DoctorUtilizationPct)
	}
}
