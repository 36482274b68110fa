package bottleneck

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard/internal/domain/facts"
)

// Heuristic cutoffs. Arbitrary but interpretable: two weeks marks a stay as
// long, five such stays in one unit marks a discharge problem, and an hour
// taking more than double its fair share of admissions marks a surge.
const (
	longStayDays     = 14
	minLongStayCount = 5
	surplusFactor    = 2.0
)

// Flag types.
const (
	FlagDelayedDischarge = "delayed_discharge"
	FlagPeakHourSurplus  = "peak_hour_surplus"
)

// Flag is one detected operational anomaly.
type Flag struct {
	Type         string     `json:"type"`
	BranchID     uuid.UUID  `json:"branch_id,omitempty"`
	DepartmentID *uuid.UUID `json:"department_id,omitempty"`
	Hour         *int       `json:"hour,omitempty"`
	Count        int        `json:"count"`
	AvgLOSDays   float64    `json:"avg_los_days,omitempty"`
	MeanHourly   float64    `json:"mean_hourly,omitempty"`
	Message      string     `json:"message"`
}

// Service runs the two bottleneck heuristics. Each is best effort; a failed
// read drops that heuristic's flags without failing the call, and a call
// where both reads fail still returns an empty set.
type Service struct {
	store facts.Store
	log   zerolog.Logger
	now   func() time.Time
}

func NewService(store facts.Store, log zerolog.Logger) *Service {
	return &Service{store: store, log: log, now: time.Now}
}

// Detect is a pure function of the fact rows at call time; no state is kept
// between invocations.
func (s *Service) Detect(ctx context.Context, f facts.CohortFilter) ([]Flag, error) {
	f = f.WithDefaults(facts.OpBottlenecks, s.now())

	flags := []Flag{}
	flags = append(flags, s.delayedDischarges(ctx, f)...)
	flags = append(flags, s.peakHourSurplus(ctx, f)...)
	return flags, nil
}

// delayedDischarges flags (branch, department) groups holding at least
// minLongStayCount closed episodes longer than longStayDays.
func (s *Service) delayedDischarges(ctx context.Context, f facts.CohortFilter) []Flag {
	episodes, err := s.store.ClosedEpisodes(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("episode source unavailable, skipping delayed discharge detection")
		return nil
	}

	type key struct{ branch, dept uuid.UUID }
	type acc struct {
		count    int
		losTotal float64
	}
	groups := map[key]*acc{}
	for i := range episodes {
		los := episodes[i].LengthOfStayDays()
		if los <= longStayDays {
			continue
		}
		k := key{episodes[i].BranchID, episodes[i].DepartmentID}
		a, ok := groups[k]
		if !ok {
			a = &acc{}
			groups[k] = a
		}
		a.count++
		a.losTotal += los
	}

	keys := make([]key, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].branch != keys[j].branch {
			return keys[i].branch.String() < keys[j].branch.String()
		}
		return keys[i].dept.String() < keys[j].dept.String()
	})

	var flags []Flag
	for _, k := range keys {
		a := groups[k]
		if a.count < minLongStayCount {
			continue
		}
		avg := facts.Round2(a.losTotal / float64(a.count))
		dept := k.dept
		flags = append(flags, Flag{
			Type:         FlagDelayedDischarge,
			BranchID:     k.branch,
			DepartmentID: &dept,
			Count:        a.count,
			AvgLOSDays:   avg,
			Message: fmt.Sprintf("%d episodes exceeding %d days (avg %.2f days)",
				a.count, longStayDays, avg),
		})
	}
	return flags
}

// peakHourSurplus flags every hour whose admission count strictly exceeds
// surplusFactor times the mean hourly count, where the mean divides the
// range total by 24 rather than by hours with data.
func (s *Service) peakHourSurplus(ctx context.Context, f facts.CohortFilter) []Flag {
	episodes, err := s.store.Episodes(ctx, f)
	if err != nil {
		s.log.Warn().Err(err).Msg("episode source unavailable, skipping peak hour detection")
		return nil
	}
	if len(episodes) == 0 {
		return nil
	}

	var hourly [24]int
	for i := range episodes {
		hourly[episodes[i].AdmittedAt.UTC().Hour()]++
	}
	mean := float64(len(episodes)) / 24

	var flags []Flag
	for h := 0; h < 24; h++ {
		if float64(hourly[h]) > surplusFactor*mean {
			hour := h
			flags = append(flags, Flag{
				Type:       FlagPeakHourSurplus,
				Hour:       &hour,
				Count:      hourly[h],
				MeanHourly: facts.Round2(mean),
				Message: fmt.Sprintf("hour %02d:00 saw %d admissions against an hourly mean of %.2f",
					h, hourly[h], mean),
			})
		}
	}
	return flags
}
