package trend

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

// Service produces time-bucketed trend series and comparison rollups. The
// episode read backing each operation is fatal; occupancy and the other
// secondary sub-aggregates fail soft.
type Service struct {
	store facts.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store facts.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

type bucketAcc struct {
	start      time.Time
	admissions int
	discharges int
	losTotal   float64
	losCount   int
	occTotal   float64
	occCount   int
}

// Trends buckets the cohort's episodes by calendar period and left-merges
// mean occupancy per bucket. Points come back in chronological order and
// each period appears exactly once.
func (s *Service) Trends(ctx context.Context, g Granularity, f facts.CohortFilter) ([]TrendPoint, error) {
	f = f.WithDefaults(facts.OpTrends, s.now())

	admitted, err := s.store.ClosedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}
	discharged, err := s.store.DischargedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read discharged episodes: %w", err)
	}

	buckets := map[time.Time]*bucketAcc{}
	get := func(at time.Time) *bucketAcc {
		start := BucketStart(at.UTC(), g)
		b, ok := buckets[start]
		if !ok {
			b = &bucketAcc{start: start}
			buckets[start] = b
		}
		return b
	}

	for i := range admitted {
		e := &admitted[i]
		b := get(e.AdmittedAt)
		b.admissions++
		b.losTotal += e.LengthOfStayDays()
		b.losCount++
	}
	for i := range discharged {
		get(*discharged[i].DischargedAt).discharges++
	}

	s.mergeOccupancy(ctx, g, f, buckets)

	points := make([]TrendPoint, 0, len(buckets))
	for _, b := range buckets {
		p := TrendPoint{
			Period:      BucketLabel(b.start, g),
			PeriodStart: b.start,
			Admissions:  b.admissions,
			Discharges:  b.discharges,
		}
		if b.losCount > 0 {
			p.AvgLOSDays = facts.Round2(b.losTotal / float64(b.losCount))
		}
		if b.occCount > 0 {
			p.OccupancyPct = facts.Round2(b.occTotal / float64(b.occCount))
		}
		points = append(points, p)
	}
	sort.Slice(points, func(i, j int) bool { return points[i].PeriodStart.Before(points[j].PeriodStart) })
	return points, nil
}

// mergeOccupancy folds snapshot occupancy means into existing buckets only.
// A failed snapshot read leaves every occupancy at zero.
func (s *Service) mergeOccupancy(ctx context.Context, g Granularity, f facts.CohortFilter, buckets map[time.Time]*bucketAcc) {
	snaps, err := s.store.Snapshots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		s.log.Warn().Err(err).Msg("occupancy source unavailable, trend occupancy defaults to 0")
		return
	}
	for i := range snaps {
		pct, ok := snaps[i].BedOccupancyPct()
		if !ok {
			continue
		}
		start := BucketStart(snaps[i].Date.UTC(), g)
		if b, exists := buckets[start]; exists {
			b.occTotal += pct
			b.occCount++
		}
	}
}

// DepartmentComparison returns one row per department in scope, including
// departments with no matching episodes.
func (s *Service) DepartmentComparison(ctx context.Context, f facts.CohortFilter) ([]DepartmentRow, error) {
	f = f.WithDefaults(facts.OpComparison, s.now())

	depts, err := s.store.Departments(ctx, f.BranchIDs)
	if err != nil {
		return nil, fmt.Errorf("read departments: %w", err)
	}
	episodes, err := s.store.ClosedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}

	rows := make([]DepartmentRow, 0, len(depts))
	index := make(map[uuid.UUID]int, len(depts))
	for _, d := range depts {
		if !f.HasDepartment(d.ID) {
			continue
		}
		index[d.ID] = len(rows)
		rows = append(rows, DepartmentRow{DepartmentID: d.ID, BranchID: d.BranchID, Name: d.Name})
	}

	losTotals := make([]float64, len(rows))
	for i := range episodes {
		e := &episodes[i]
		ri, ok := index[e.DepartmentID]
		if !ok {
			continue
		}
		rows[ri].Admissions++
		losTotals[ri] += e.LengthOfStayDays()
		if e.AdmissionType == facts.AdmissionEmergency {
			rows[ri].EmergencyAdmissions++
		}
	}
	for i := range rows {
		if rows[i].Admissions > 0 {
			rows[i].AvgLOSDays = facts.Round2(losTotals[i] / float64(rows[i].Admissions))
		}
	}

	if procs, err := s.store.Procedures(ctx, f); err != nil {
		s.log.Warn().Err(err).Msg("procedure source unavailable, department volumes default to 0")
	} else {
		for i := range procs {
			if ri, ok := index[procs[i].DepartmentID]; ok {
				rows[ri].ProcedureVolume++
			}
		}
	}
	return rows, nil
}

// BranchComparison returns one row per branch over the date range. Every
// derived metric is sub-queried independently and defaults to 0 on failure
// or division by zero.
func (s *Service) BranchComparison(ctx context.Context, f facts.CohortFilter) ([]BranchRow, error) {
	f = f.WithDefaults(facts.OpComparison, s.now())

	branches, err := s.store.Branches(ctx)
	if err != nil {
		return nil, fmt.Errorf("read branches: %w", err)
	}
	episodes, err := s.store.ClosedEpisodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}

	rows := make([]BranchRow, 0, len(branches))
	index := make(map[uuid.UUID]int, len(branches))
	for _, b := range branches {
		if !f.HasBranch(b.ID) {
			continue
		}
		index[b.ID] = len(rows)
		rows = append(rows, BranchRow{BranchID: b.ID, Name: b.Name})
	}

	losTotals := make([]float64, len(rows))
	for i := range episodes {
		e := &episodes[i]
		ri, ok := index[e.BranchID]
		if !ok {
			continue
		}
		rows[ri].Admissions++
		losTotals[ri] += e.LengthOfStayDays()
	}
	for i := range rows {
		if rows[i].Admissions > 0 {
			rows[i].AvgLOSDays = facts.Round2(losTotals[i] / float64(rows[i].Admissions))
		}
	}

	s.mergeBranchCosts(ctx, f, rows, index)
	s.mergeBranchReadmissions(ctx, f, rows, index)
	s.mergeBranchOccupancy(ctx, f, rows, index)
	return rows, nil
}

func (s *Service) mergeBranchCosts(ctx context.Context, f facts.CohortFilter, rows []BranchRow, index map[uuid.UUID]int) {
	bills, err := s.store.Billing(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("billing source unavailable, branch costs default to 0")
		return
	}
	totals := make([]float64, len(rows))
	episodes := make([]map[uuid.UUID]struct{}, len(rows))
	for i := range bills {
		ri, ok := index[bills[i].BranchID]
		if !ok {
			continue
		}
		totals[ri] += bills[i].TotalAmount
		if episodes[ri] == nil {
			episodes[ri] = map[uuid.UUID]struct{}{}
		}
		episodes[ri][bills[i].EpisodeID] = struct{}{}
	}
	for i := range rows {
		if n := len(episodes[i]); n > 0 {
			rows[i].CostPerDischarge = facts.Round2(totals[i] / float64(n))
		}
	}
}

func (s *Service) mergeBranchReadmissions(ctx context.Context, f facts.CohortFilter, rows []BranchRow, index map[uuid.UUID]int) {
	links, err := s.store.Readmissions(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("readmission source unavailable, branch rates default to 0")
		return
	}
	discharged, err := s.store.DischargedEpisodes(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("discharge read failed, branch readmission rates default to 0")
		return
	}
	prior := make([]map[uuid.UUID]struct{}, len(rows))
	for i := range links {
		ri, ok := index[links[i].BranchID]
		if !ok {
			continue
		}
		if prior[ri] == nil {
			prior[ri] = map[uuid.UUID]struct{}{}
		}
		prior[ri][links[i].PriorEpisodeID] = struct{}{}
	}
	discharges := make([]int, len(rows))
	for i := range discharged {
		if ri, ok := index[discharged[i].BranchID]; ok {
			discharges[ri]++
		}
	}
	for i := range rows {
		if discharges[i] > 0 {
			rows[i].ReadmissionRatePct = facts.Round2(float64(len(prior[i])) * 100 / float64(discharges[i]))
		}
	}
}

func (s *Service) mergeBranchOccupancy(ctx context.Context, f facts.CohortFilter, rows []BranchRow, index map[uuid.UUID]int) {
	snaps, err := s.store.Snapshots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		s.log.Warn().Err(err).Msg("occupancy source unavailable, branch occupancy defaults to 0")
		return
	}
	totals := make([]float64, len(rows))
	counts := make([]int, len(rows))
	for i := range snaps {
		ri, ok := index[snaps[i].BranchID]
		if !ok {
			continue
		}
		if pct, ok := snaps[i].BedOccupancyPct(); ok {
			totals[ri] += pct
			counts[ri]++
		}
	}
	for i := range rows {
		if counts[i] > 0 {
			rows[i].BedOccupancyPct = facts.Round2(totals[i] / float64(counts[i]))
		}
	}
}

// PeakHours groups admissions by hour of day, optionally split by weekday,
// and returns rows sorted by admission count descending.
func (s *Service) PeakHours(ctx context.Context, f facts.CohortFilter, byDayOfWeek bool) ([]PeakHourRow, error) {
	f = f.WithDefaults(facts.OpPeakHours, s.now())

	episodes, err := s.store.Episodes(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}

	type cell struct{ hour, dow int }
	counts := map[cell]int{}
	for i := range episodes {
		at := episodes[i].AdmittedAt.UTC()
		c := cell{hour: at.Hour()}
		if byDayOfWeek {
			c.dow = int(at.Weekday())
		}
		counts[c]++
	}

	rows := make([]PeakHourRow, 0, len(counts))
	for c, n := range counts {
		row := PeakHourRow{Hour: c.hour, Admissions: n}
		if byDayOfWeek {
			dow := c.dow
			row.DayOfWeek = &dow
		}
		rows = append(rows, row)
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Admissions != rows[j].Admissions {
			return rows[i].Admissions > rows[j].Admissions
		}
		if rows[i].Hour != rows[j].Hour {
			return rows[i].Hour < rows[j].Hour
		}
		return deref(rows[i].DayOfWeek) < deref(rows[j].DayOfWeek)
	})
	return rows, nil
}

func deref(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
