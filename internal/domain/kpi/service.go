package kpi

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

// Service computes the KPI summary for a cohort. The cohort episode reads
// are fatal; every optional sub-aggregate fails soft to zero with its
// Sources flag cleared.
type Service struct {
	store facts.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store facts.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Summarize reduces the cohort's fact rows into a single Summary. An empty
// cohort yields an all-zero summary, not an error.
func (s *Service) Summarize(ctx context.Context, f facts.CohortFilter) (*Summary, error) {
	f = f.WithDefaults(facts.OpKPISummary, s.now())

	// The admission-side counts run over closed episodes admitted in range;
	// open stays are excluded from the summary entirely.
	admitted, err := s.store.ClosedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}
	discharged, err := s.store.DischargedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read discharged episodes: %w", err)
	}

	sum := &Summary{PeriodStart: f.From, PeriodEnd: f.To}
	sum.TotalAdmissions = len(admitted)
	sum.TotalDischarges = len(discharged)

	for i := range admitted {
		if admitted[i].AdmissionType == facts.AdmissionEmergency {
			sum.EmergencyAdmissions++
		} else {
			sum.ScheduledAdmissions++
		}
	}

	var losTotal float64
	for i := range discharged {
		e := &discharged[i]
		losTotal += e.LengthOfStayDays()
		switch e.OutcomeCode {
		case facts.OutcomeRecovered:
			sum.Outcomes.Recovered++
		case facts.OutcomeImproved:
			sum.Outcomes.Improved++
		case facts.OutcomeTransferred:
			sum.Outcomes.Transferred++
		case facts.OutcomeDeceased:
			sum.Outcomes.Deceased++
		default:
			sum.Outcomes.Other++
		}
	}
	if len(discharged) > 0 {
		sum.AvgLengthOfStayDays = facts.Round2(losTotal / float64(len(discharged)))
	}

	sum.BedOccupancyPct, sum.Sources.Occupancy = s.occupancy(ctx, f)
	sum.DoctorUtilizationPct, sum.Sources.Utilization = s.utilization(ctx, f)
	sum.ProcedureVolume, sum.Sources.Procedures = s.procedureVolume(ctx, f)
	sum.ReadmissionRatePct, sum.Sources.Readmissions = s.readmissionRate(ctx, f, sum.TotalDischarges)
	sum.CostPerDischarge, sum.Sources.Billing = s.costPerDischarge(ctx, f)

	return sum, nil
}

func (s *Service) occupancy(ctx context.Context, f facts.CohortFilter) (float64, bool) {
	snaps, err := s.store.Snapshots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		s.log.Warn().Err(err).Msg("occupancy source unavailable, defaulting to 0")
		return 0, false
	}
	var total float64
	var n int
	for i := range snaps {
		if pct, ok := snaps[i].BedOccupancyPct(); ok {
			total += pct
			n++
		}
	}
	if n == 0 {
		return 0, true
	}
	return facts.Round2(total / float64(n)), true
}

func (s *Service) utilization(ctx context.Context, f facts.CohortFilter) (float64, bool) {
	slots, err := s.store.ScheduleSlots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		s.log.Warn().Err(err).Msg("schedule source unavailable, defaulting to 0")
		return 0, false
	}
	if len(slots) == 0 {
		return 0, true
	}
	booked := 0
	for i := range slots {
		if slots[i].Booked {
			booked++
		}
	}
	return facts.Round2(float64(booked) * 100 / float64(len(slots))), true
}

func (s *Service) procedureVolume(ctx context.Context, f facts.CohortFilter) (int, bool) {
	procs, err := s.store.Procedures(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("procedure source unavailable, defaulting to 0")
		return 0, false
	}
	return len(procs), true
}

func (s *Service) readmissionRate(ctx context.Context, f facts.CohortFilter, discharges int) (float64, bool) {
	links, err := s.store.Readmissions(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("readmission source unavailable, defaulting to 0")
		return 0, false
	}
	if discharges == 0 {
		return 0, true
	}
	prior := make(map[uuid.UUID]struct{}, len(links))
	for i := range links {
		prior[links[i].PriorEpisodeID] = struct{}{}
	}
	return facts.Round2(float64(len(prior)) * 100 / float64(discharges)), true
}

func (s *Service) costPerDischarge(ctx context.Context, f facts.CohortFilter) (float64, bool) {
	bills, err := s.store.Billing(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("billing source unavailable, defaulting to 0")
		return 0, false
	}
	if len(bills) == 0 {
		return 0, true
	}
	var total float64
	episodes := make(map[uuid.UUID]struct{}, len(bills))
	for i := range bills {
		total += bills[i].TotalAmount
		episodes[bills[i].EpisodeID] = struct{}{}
	}
	return facts.Round2(total / float64(len(episodes))), true
}
