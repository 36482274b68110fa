package forecast

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

func TestMovingAverage_ShrinksAtSeriesStart(t *testing.T) {
	values := []float64{10, 20, 30, 40, 50, 60, 70, 80}
	avgs := movingAverage(values, 7)

	if avgs[0] != 10 {
		t.Errorf("day 1 average should equal its raw value, got %v", avgs[0])
	}
	if avgs[1] != 15 {
		t.Errorf("day 2 average should be 15, got %v", avgs[1])
	}
	if avgs[6] != 40 {
		t.Errorf("day 7 average should be 40, got %v", avgs[6])
	}
	// Full window: mean of 20..80.
	if avgs[7] != 50 {
		t.Errorf("day 8 average should be 50, got %v", avgs[7])
	}
}

func TestAdmissionMovingAverage_DenseDailySeries(t *testing.T) {
	branch := uuid.New()
	dept := uuid.New()
	now := time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC)

	var eps []facts.Episode
	for i := 0; i < 3; i++ {
		eps = append(eps, facts.Episode{
			ID: uuid.New(), BranchID: branch, DepartmentID: dept,
			AdmissionType: facts.AdmissionEmergency,
			AdmittedAt:    time.Date(2026, 2, 8, 9+i, 0, 0, 0, time.UTC),
		})
	}
	eps = append(eps, facts.Episode{
		ID: uuid.New(), BranchID: branch, DepartmentID: dept,
		AdmissionType: facts.AdmissionScheduled,
		AdmittedAt:    time.Date(2026, 2, 10, 7, 0, 0, 0, time.UTC),
	})
	store := &facts.MemStore{EpisodeRows: eps}
	svc := newService(store, now)

	points, err := svc.AdmissionMovingAverage(context.Background(), nil, 4, 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(points) != 5 {
		t.Fatalf("expected 5 daily points, got %d", len(points))
	}
	if points[0].Date != "2026-02-06" || points[4].Date != "2026-02-10" {
		t.Errorf("unexpected date span: %s .. %s", points[0].Date, points[4].Date)
	}
	if points[2].Admissions != 3 {
		t.Errorf("expected 3 admissions on the 8th, got %d", points[2].Admissions)
	}
	if points[1].Admissions != 0 {
		t.Errorf("quiet days should zero-fill, got %d", points[1].Admissions)
	}
	if points[0].MovingAvg != 0 {
		t.Errorf("first point average should equal its raw value, got %v", points[0].MovingAvg)
	}
	// 0,0,3,0,1 over 5 days.
	if points[4].MovingAvg != 0.8 {
		t.Errorf("expected trailing average 0.8, got %v", points[4].MovingAvg)
	}
}

func snapshotDay(branch uuid.UUID, day time.Time, occupiedPct int) facts.ResourceSnapshot {
	return facts.ResourceSnapshot{
		BranchID:     branch,
		Date:         day,
		Hour:         12,
		BedsOccupied: occupiedPct,
		BedCount:     100,
	}
}

func TestThresholdAlerts_InclusiveComparison(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -7)

	occupancies := []int{90, 92, 88, 95, 80, 70, 60}
	store := &facts.MemStore{
		BranchRows: []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
	}
	for i, pct := range occupancies {
		store.SnapshotRows = append(store.SnapshotRows, snapshotDay(branch, start.AddDate(0, 0, i), pct))
	}
	svc := newService(store, now)

	alerts, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{BedOccupancyPct: 85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 4 {
		t.Fatalf("expected 4 alerts for 90,92,88,95, got %d", len(alerts))
	}
	for _, a := range alerts {
		if a.Type != AlertHighBedOccupancy || a.Severity != SeverityWarning {
			t.Errorf("unexpected alert: %+v", a)
		}
		if a.Value < 85 {
			t.Errorf("alert value %v below threshold", a.Value)
		}
		if a.Threshold != 85 {
			t.Errorf("alert should embed its threshold, got %v", a.Threshold)
		}
	}
}

func TestThresholdAlerts_ExactThresholdTriggers(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &facts.MemStore{
		BranchRows:   []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
		SnapshotRows: []facts.ResourceSnapshot{snapshotDay(branch, now.AddDate(0, 0, -1), 85)},
	}
	svc := newService(store, now)

	alerts, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{BedOccupancyPct: 85})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("value exactly at threshold must trigger, got %d alerts", len(alerts))
	}
}

func TestThresholdAlerts_ICUAndDoctor(t *testing.T) {
	branch := uuid.New()
	noICU := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -1)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{
			{ID: branch, Name: "Central", BedCount: 100, ICUBeds: 10},
			{ID: noICU, Name: "Clinic", BedCount: 20},
		},
		SnapshotRows: []facts.ResourceSnapshot{
			{BranchID: branch, Date: day, Hour: 9, ICUOccupied: 9, ICUBeds: 10, BedsOccupied: 10, BedCount: 100},
			{BranchID: noICU, Date: day, Hour: 9, ICUOccupied: 5, ICUBeds: 0, BedsOccupied: 5, BedCount: 20},
		},
	}
	for i := 0; i < 9; i++ {
		store.ScheduleRows = append(store.ScheduleRows, facts.ScheduleSlot{
			DoctorID: uuid.New(), BranchID: branch, SlotDate: day, Booked: true,
		})
	}
	store.ScheduleRows = append(store.ScheduleRows, facts.ScheduleSlot{
		DoctorID: uuid.New(), BranchID: branch, SlotDate: day, Booked: false,
	})
	svc := newService(store, now)

	alerts, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{DoctorUtilizationPct: 90})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var icu, doctor int
	for _, a := range alerts {
		switch a.Type {
		case AlertHighICUUtilization:
			icu++
			if a.BranchID != branch {
				t.Errorf("ICU alert for wrong branch: %+v", a)
			}
		case AlertDoctorOverutilization:
			doctor++
			if a.Severity != SeverityInfo {
				t.Errorf("doctor alert should be info severity: %+v", a)
			}
			if a.Value != 90 {
				t.Errorf("expected utilization 90, got %v", a.Value)
			}
		}
	}
	if icu != 1 {
		t.Errorf("expected 1 ICU alert (zero-ICU branch excluded), got %d", icu)
	}
	if doctor != 1 {
		t.Errorf("expected 1 doctor alert, got %d", doctor)
	}
}

func TestThresholdAlerts_ScheduleFailureSoft(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	store := &facts.MemStore{
		BranchRows:   []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
		SnapshotRows: []facts.ResourceSnapshot{snapshotDay(branch, now.AddDate(0, 0, -1), 90)},
		SchedulesErr: errors.New("relation does not exist"),
	}
	svc := newService(store, now)

	alerts, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{})
	if err != nil {
		t.Fatalf("schedule failure must not propagate: %v", err)
	}
	if len(alerts) != 1 || alerts[0].Type != AlertHighBedOccupancy {
		t.Errorf("expected only the bed alert, got %+v", alerts)
	}
}

func TestThresholdAlerts_SnapshotFailureFatal(t *testing.T) {
	store := &facts.MemStore{SnapshotsErr: errors.New("connection refused")}
	svc := newService(store, time.Now())

	if _, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{}); err == nil {
		t.Fatal("expected error when the snapshot read fails")
	}
}

func TestOccupancyForecast_TrailingAverage(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -3)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
		SnapshotRows: []facts.ResourceSnapshot{
			snapshotDay(branch, start, 80),
			snapshotDay(branch, start.AddDate(0, 0, 1), 90),
			snapshotDay(branch, start.AddDate(0, 0, 2), 100),
		},
	}
	svc := newService(store, now)

	series, err := svc.OccupancyForecast(context.Background(), nil, 30, 85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 {
		t.Fatalf("expected one branch series, got %d", len(series))
	}
	s := series[0]
	if s.BranchName != "Central" || len(s.Points) != 3 {
		t.Fatalf("unexpected series: %+v", s)
	}
	if s.Points[0].MovingAvg != 80 || s.Points[1].MovingAvg != 85 || s.Points[2].MovingAvg != 90 {
		t.Errorf("unexpected trailing averages: %+v", s.Points)
	}
	if s.Forecast != 90 {
		t.Errorf("forecast should be the last trailing average, got %v", s.Forecast)
	}
	if s.Points[0].AboveThreshold {
		t.Error("80%% day should not be above an 85 threshold")
	}
	if !s.Points[1].AboveThreshold || !s.Points[2].AboveThreshold {
		t.Error("days at 90%% and 100%% should be above an 85 threshold")
	}
}

func TestOccupancyForecast_FlagsSpikingDayDespiteLaggingAverage(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	start := now.AddDate(0, 0, -7)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
	}
	for i := 0; i < 6; i++ {
		store.SnapshotRows = append(store.SnapshotRows, snapshotDay(branch, start.AddDate(0, 0, i), 60))
	}
	store.SnapshotRows = append(store.SnapshotRows, snapshotDay(branch, start.AddDate(0, 0, 6), 95))
	svc := newService(store, now)

	series, err := svc.OccupancyForecast(context.Background(), nil, 30, 85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || len(series[0].Points) != 7 {
		t.Fatalf("unexpected series shape: %+v", series)
	}
	last := series[0].Points[6]
	if last.OccupancyPct != 95 || last.MovingAvg != 65 {
		t.Fatalf("unexpected last point: %+v", last)
	}
	if !last.AboveThreshold {
		t.Error("a 95%% day must be flagged even while its trailing average is 65%%")
	}
	for _, p := range series[0].Points[:6] {
		if p.AboveThreshold {
			t.Errorf("60%% day must not be flagged: %+v", p)
		}
	}
}

func TestOccupancyForecast_DefaultLookbackIsFourteenDays(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
		SnapshotRows: []facts.ResourceSnapshot{
			snapshotDay(branch, now.AddDate(0, 0, -20), 70),
			snapshotDay(branch, now.AddDate(0, 0, -5), 80),
		},
	}
	svc := newService(store, now)

	series, err := svc.OccupancyForecast(context.Background(), nil, 0, 85)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(series) != 1 || len(series[0].Points) != 1 {
		t.Fatalf("expected only the snapshot inside the 14 day window, got %+v", series)
	}
	if series[0].Points[0].OccupancyPct != 80 {
		t.Errorf("unexpected point: %+v", series[0].Points[0])
	}
}

func TestThresholdAlerts_DoctorDefaultThresholdIs95(t *testing.T) {
	branch := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -1)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{{ID: branch, Name: "Central", BedCount: 100}},
	}
	// 19 of 20 slots booked: exactly 95% utilization.
	for i := 0; i < 20; i++ {
		store.ScheduleRows = append(store.ScheduleRows, facts.ScheduleSlot{
			DoctorID: uuid.New(), BranchID: branch, SlotDate: day, Booked: i < 19,
		})
	}
	svc := newService(store, now)

	alerts, err := svc.ThresholdAlerts(context.Background(), facts.CohortFilter{}, Thresholds{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var doctor int
	for _, a := range alerts {
		if a.Type == AlertDoctorOverutilization {
			doctor++
			if a.Threshold != 95 {
				t.Errorf("expected default threshold 95, got %v", a.Threshold)
			}
		}
	}
	if doctor != 1 {
		t.Fatalf("95%% utilization must meet the default cutoff inclusively, got %d alerts", doctor)
	}
}

func TestResourceAlerts_CriticalEscalation(t *testing.T) {
	hot := uuid.New()
	warm := uuid.New()
	calm := uuid.New()
	now := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	day := now.AddDate(0, 0, -2)

	store := &facts.MemStore{
		BranchRows: []facts.Branch{
			{ID: hot, Name: "Central", BedCount: 100, ICUBeds: 10, VentilatorCount: 10},
			{ID: warm, Name: "North", BedCount: 100},
			{ID: calm, Name: "South", BedCount: 100},
		},
		SnapshotRows: []facts.ResourceSnapshot{
			{BranchID: hot, Date: day, Hour: 9, BedsOccupied: 96, BedCount: 100, ICUOccupied: 9, ICUBeds: 10, VentilatorsUsed: 2, VentilatorCount: 10},
			{BranchID: warm, Date: day, Hour: 9, BedsOccupied: 88, BedCount: 100},
			{BranchID: calm, Date: day, Hour: 9, BedsOccupied: 40, BedCount: 100},
		},
	}
	svc := newService(store, now)

	alerts, err := svc.ResourceAlerts(context.Background(), nil, 7, 85, 90)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	byBranch := map[uuid.UUID][]Alert{}
	for _, a := range alerts {
		byBranch[a.BranchID] = append(byBranch[a.BranchID], a)
	}

	var hotBed, hotICU bool
	for _, a := range byBranch[hot] {
		switch a.Type {
		case AlertHighBedOccupancy:
			hotBed = true
			if a.Severity != SeverityCritical {
				t.Errorf("96%% occupancy should be critical, got %s", a.Severity)
			}
		case AlertICUShortageRisk:
			hotICU = true
		case AlertVentilatorShortageRisk:
			t.Error("20% ventilator use should not alert")
		}
	}
	if !hotBed || !hotICU {
		t.Errorf("expected bed and ICU alerts for the hot branch, got %+v", byBranch[hot])
	}

	if len(byBranch[warm]) != 1 || byBranch[warm][0].Severity != SeverityWarning {
		t.Errorf("88%% occupancy should raise a single warning, got %+v", byBranch[warm])
	}
	if len(byBranch[calm]) != 0 {
		t.Errorf("calm branch should not alert, got %+v", byBranch[calm])
	}

	a := byBranch[warm][0]
	if !a.ValidFrom.Equal(now) || !a.ValidTo.Equal(now.AddDate(0, 0, 7)) {
		t.Errorf("unexpected validity window: %v .. %v", a.ValidFrom, a.ValidTo)
	}
}
