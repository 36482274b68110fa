package forecast

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

const (
	// defaultWindowDays is the trailing moving-average window.
	defaultWindowDays = 7

	// criticalOccupancyPct escalates a bed occupancy alert to critical
	// regardless of the configured threshold.
	criticalOccupancyPct = 95.0
)

// Service computes moving averages and threshold alerts. The snapshot read
// behind each occupancy operation is fatal; the doctor schedule check fails
// soft.
type Service struct {
	store facts.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store facts.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// movingAverage returns the trailing mean for each position. The window
// covers windowDays-1 prior values plus the current one and shrinks at the
// series start, so position 0's average equals its raw value.
func movingAverage(values []float64, windowDays int) []float64 {
	if windowDays < 1 {
		windowDays = 1
	}
	out := make([]float64, len(values))
	var sum float64
	for i, v := range values {
		sum += v
		if i >= windowDays {
			sum -= values[i-windowDays]
		}
		n := i + 1
		if n > windowDays {
			n = windowDays
		}
		out[i] = sum / float64(n)
	}
	return out
}

// AdmissionMovingAverage returns a dense daily series of admission counts
// with a trailing moving average, zero-filling days without admissions.
func (s *Service) AdmissionMovingAverage(ctx context.Context, branchIDs []uuid.UUID, days, windowDays int) ([]AdmissionPoint, error) {
	if days <= 0 {
		days = facts.DefaultLookback(facts.OpTrends)
	}
	if windowDays <= 0 {
		windowDays = defaultWindowDays
	}
	to := s.now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -days)

	episodes, err := s.store.Episodes(ctx, facts.CohortFilter{BranchIDs: branchIDs, From: from, To: to})
	if err != nil {
		return nil, fmt.Errorf("read episodes: %w", err)
	}

	counts := map[time.Time]int{}
	for i := range episodes {
		at := episodes[i].AdmittedAt.UTC()
		day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
		counts[day]++
	}

	n := days + 1
	points := make([]AdmissionPoint, n)
	values := make([]float64, n)
	for i := 0; i < n; i++ {
		day := from.AddDate(0, 0, i)
		points[i] = AdmissionPoint{Date: day.Format("2006-01-02"), Admissions: counts[day]}
		values[i] = float64(counts[day])
	}
	for i, avg := range movingAverage(values, windowDays) {
		points[i].MovingAvg = facts.Round2(avg)
	}
	return points, nil
}

// OccupancyForecast builds a per-branch daily occupancy series with a
// trailing 7-day average. The forecast is the most recent trailing average;
// AboveThreshold compares each day's raw occupancy, inclusive against
// threshold.
func (s *Service) OccupancyForecast(ctx context.Context, branchIDs []uuid.UUID, lookbackDays int, threshold float64) ([]BranchOccupancySeries, error) {
	if lookbackDays <= 0 {
		lookbackDays = facts.DefaultLookback(facts.OpOccupancyForecast)
	}
	if threshold <= 0 {
		threshold = DefaultThresholds.BedOccupancyPct
	}
	to := s.now().UTC().Truncate(24 * time.Hour)
	from := to.AddDate(0, 0, -lookbackDays)

	snaps, err := s.store.Snapshots(ctx, branchIDs, from, to)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	names := s.branchNames(ctx)

	daily := dailyBedOccupancy(snaps)
	branches := make([]uuid.UUID, 0, len(daily))
	for id := range daily {
		branches = append(branches, id)
	}
	sort.Slice(branches, func(i, j int) bool { return branches[i].String() < branches[j].String() })

	var out []BranchOccupancySeries
	for _, id := range branches {
		days := sortedDays(daily[id])
		values := make([]float64, len(days))
		for i, d := range days {
			values[i] = daily[id][d]
		}
		avgs := movingAverage(values, defaultWindowDays)

		series := BranchOccupancySeries{BranchID: id, BranchName: names[id]}
		for i, d := range days {
			series.Points = append(series.Points, OccupancyPoint{
				Date:           d.Format("2006-01-02"),
				OccupancyPct:   facts.Round2(values[i]),
				MovingAvg:      facts.Round2(avgs[i]),
				AboveThreshold: values[i] >= threshold,
			})
		}
		if len(avgs) > 0 {
			series.Forecast = facts.Round2(avgs[len(avgs)-1])
		}
		out = append(out, series)
	}
	return out, nil
}

// ThresholdAlerts emits one warning alert per (branch, date) whose mean bed
// or ICU occupancy meets its threshold, plus one range-level info alert per
// branch whose doctor utilization meets the doctor threshold.
func (s *Service) ThresholdAlerts(ctx context.Context, f facts.CohortFilter, th Thresholds) ([]Alert, error) {
	f = f.WithDefaults(facts.OpThresholdAlerts, s.now())
	th = th.withDefaults()

	snaps, err := s.store.Snapshots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	names := s.branchNames(ctx)

	var alerts []Alert

	bedDaily := dailyBedOccupancy(snaps)
	for id, days := range bedDaily {
		for _, d := range sortedDays(days) {
			if pct := days[d]; pct >= th.BedOccupancyPct {
				alerts = append(alerts, Alert{
					Type:     AlertHighBedOccupancy,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("%s bed occupancy at %.2f%% on %s (threshold %.2f%%)",
						names[id], facts.Round2(pct), d.Format("2006-01-02"), th.BedOccupancyPct),
					BranchID:  id,
					Value:     pct,
					Threshold: th.BedOccupancyPct,
					ValidFrom: d,
					ValidTo:   d,
				})
			}
		}
	}

	icuDaily := dailyICUOccupancy(snaps)
	for id, days := range icuDaily {
		for _, d := range sortedDays(days) {
			if pct := days[d]; pct >= th.ICUOccupancyPct {
				alerts = append(alerts, Alert{
					Type:     AlertHighICUUtilization,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("%s ICU occupancy at %.2f%% on %s (threshold %.2f%%)",
						names[id], facts.Round2(pct), d.Format("2006-01-02"), th.ICUOccupancyPct),
					BranchID:  id,
					Value:     pct,
					Threshold: th.ICUOccupancyPct,
					ValidFrom: d,
					ValidTo:   d,
				})
			}
		}
	}

	alerts = append(alerts, s.doctorAlerts(ctx, f, th, names)...)
	return alerts, nil
}

// doctorAlerts checks mean utilization per branch over the whole range.
// A failed schedule read drops the check without failing the call.
func (s *Service) doctorAlerts(ctx context.Context, f facts.CohortFilter, th Thresholds, names map[uuid.UUID]string) []Alert {
	slots, err := s.store.ScheduleSlots(ctx, f.BranchIDs, f.From, f.To)
	if err != nil {
		s.log.Warn().Err(err).Msg("schedule source unavailable, skipping doctor utilization alerts")
		return nil
	}
	total := map[uuid.UUID]int{}
	booked := map[uuid.UUID]int{}
	for i := range slots {
		total[slots[i].BranchID]++
		if slots[i].Booked {
			booked[slots[i].BranchID]++
		}
	}
	var alerts []Alert
	for id, n := range total {
		if n == 0 {
			continue
		}
		pct := float64(booked[id]) * 100 / float64(n)
		if pct >= th.DoctorUtilizationPct {
			alerts = append(alerts, Alert{
				Type:     AlertDoctorOverutilization,
				Severity: SeverityInfo,
				Message: fmt.Sprintf("%s doctor utilization at %.2f%% (threshold %.2f%%)",
					names[id], facts.Round2(pct), th.DoctorUtilizationPct),
				BranchID:  id,
				Value:     pct,
				Threshold: th.DoctorUtilizationPct,
				ValidFrom: f.From,
				ValidTo:   f.To,
			})
		}
	}
	return alerts
}

// ResourceAlerts evaluates trailing 14-day average occupancy per branch,
// independent of any caller-supplied range. The alert window [today,
// today+daysAhead] is presentational; the signal is current-state.
func (s *Service) ResourceAlerts(ctx context.Context, branchIDs []uuid.UUID, daysAhead int, occupancyThreshold, utilizationThreshold float64) ([]Alert, error) {
	if daysAhead <= 0 {
		daysAhead = defaultWindowDays
	}
	if occupancyThreshold <= 0 {
		occupancyThreshold = DefaultThresholds.BedOccupancyPct
	}
	if utilizationThreshold <= 0 {
		utilizationThreshold = DefaultThresholds.ICUOccupancyPct
	}
	today := s.now().UTC().Truncate(24 * time.Hour)
	from := today.AddDate(0, 0, -facts.DefaultLookback(facts.OpResourceAlerts))

	snaps, err := s.store.Snapshots(ctx, branchIDs, from, today)
	if err != nil {
		return nil, fmt.Errorf("read snapshots: %w", err)
	}
	names := s.branchNames(ctx)
	validTo := today.AddDate(0, 0, daysAhead)

	type acc struct {
		bedTotal, icuTotal, ventTotal float64
		bedN, icuN, ventN             int
	}
	byBranch := map[uuid.UUID]*acc{}
	for i := range snaps {
		a, ok := byBranch[snaps[i].BranchID]
		if !ok {
			a = &acc{}
			byBranch[snaps[i].BranchID] = a
		}
		if pct, ok := snaps[i].BedOccupancyPct(); ok {
			a.bedTotal += pct
			a.bedN++
		}
		if pct, ok := snaps[i].ICUOccupancyPct(); ok {
			a.icuTotal += pct
			a.icuN++
		}
		if pct, ok := snaps[i].VentilatorUsePct(); ok {
			a.ventTotal += pct
			a.ventN++
		}
	}

	var alerts []Alert
	for id, a := range byBranch {
		if a.bedN > 0 {
			pct := a.bedTotal / float64(a.bedN)
			if pct >= occupancyThreshold {
				severity := SeverityWarning
				if pct >= criticalOccupancyPct {
					severity = SeverityCritical
				}
				alerts = append(alerts, Alert{
					Type:     AlertHighBedOccupancy,
					Severity: severity,
					Message: fmt.Sprintf("%s average bed occupancy at %.2f%% over the last %d days",
						names[id], facts.Round2(pct), facts.DefaultLookback(facts.OpResourceAlerts)),
					BranchID:  id,
					Value:     pct,
					Threshold: occupancyThreshold,
					ValidFrom: today,
					ValidTo:   validTo,
				})
			}
		}
		if a.icuN > 0 {
			pct := a.icuTotal / float64(a.icuN)
			if pct >= utilizationThreshold {
				alerts = append(alerts, Alert{
					Type:     AlertICUShortageRisk,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("%s average ICU occupancy at %.2f%% over the last %d days",
						names[id], facts.Round2(pct), facts.DefaultLookback(facts.OpResourceAlerts)),
					BranchID:  id,
					Value:     pct,
					Threshold: utilizationThreshold,
					ValidFrom: today,
					ValidTo:   validTo,
				})
			}
		}
		if a.ventN > 0 {
			pct := a.ventTotal / float64(a.ventN)
			if pct >= utilizationThreshold {
				alerts = append(alerts, Alert{
					Type:     AlertVentilatorShortageRisk,
					Severity: SeverityWarning,
					Message: fmt.Sprintf("%s average ventilator use at %.2f%% over the last %d days",
						names[id], facts.Round2(pct), facts.DefaultLookback(facts.OpResourceAlerts)),
					BranchID:  id,
					Value:     pct,
					Threshold: utilizationThreshold,
					ValidFrom: today,
					ValidTo:   validTo,
				})
			}
		}
	}
	return alerts, nil
}

func (th Thresholds) withDefaults() Thresholds {
	if th.BedOccupancyPct <= 0 {
		th.BedOccupancyPct = DefaultThresholds.BedOccupancyPct
	}
	if th.ICUOccupancyPct <= 0 {
		th.ICUOccupancyPct = DefaultThresholds.ICUOccupancyPct
	}
	if th.DoctorUtilizationPct <= 0 {
		th.DoctorUtilizationPct = DefaultThresholds.DoctorUtilizationPct
	}
	return th
}

// branchNames is best effort; an unreadable branch table falls back to raw
// ids in alert messages.
func (s *Service) branchNames(ctx context.Context) map[uuid.UUID]string {
	names := map[uuid.UUID]string{}
	branches, err := s.store.Branches(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("branch names unavailable for alert messages")
		return names
	}
	for _, b := range branches {
		names[b.ID] = b.Name
	}
	return names
}

// dailyBedOccupancy averages snapshot bed occupancy per branch per date.
func dailyBedOccupancy(snaps []facts.ResourceSnapshot) map[uuid.UUID]map[time.Time]float64 {
	return dailyOccupancy(snaps, func(s *facts.ResourceSnapshot) (float64, bool) { return s.BedOccupancyPct() })
}

// dailyICUOccupancy averages ICU occupancy, skipping zero-ICU branches.
func dailyICUOccupancy(snaps []facts.ResourceSnapshot) map[uuid.UUID]map[time.Time]float64 {
	return dailyOccupancy(snaps, func(s *facts.ResourceSnapshot) (float64, bool) { return s.ICUOccupancyPct() })
}

func dailyOccupancy(snaps []facts.ResourceSnapshot, pct func(*facts.ResourceSnapshot) (float64, bool)) map[uuid.UUID]map[time.Time]float64 {
	type acc struct {
		total float64
		n     int
	}
	sums := map[uuid.UUID]map[time.Time]*acc{}
	for i := range snaps {
		v, ok := pct(&snaps[i])
		if !ok {
			continue
		}
		id := snaps[i].BranchID
		d := snaps[i].Date.UTC().Truncate(24 * time.Hour)
		if sums[id] == nil {
			sums[id] = map[time.Time]*acc{}
		}
		if sums[id][d] == nil {
			sums[id][d] = &acc{}
		}
		sums[id][d].total += v
		sums[id][d].n++
	}
	out := map[uuid.UUID]map[time.Time]float64{}
	for id, days := range sums {
		out[id] = map[time.Time]float64{}
		for d, a := range days {
			out[id][d] = a.total / float64(a.n)
		}
	}
	return out
}

func sortedDays(m map[time.Time]float64) []time.Time {
	days := make([]time.Time, 0, len(m))
	for d := range m {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	return days
}
