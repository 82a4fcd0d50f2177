package aggregate

import (
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

func date(value string) time.Time {
	t, err := time.Parse(domain.DateKeyLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestAggregator() *Aggregator {
	return NewAggregator(7, 3.5, 95, 85, 70)
}

func workingDays(values ...string) []time.Time {
	days := make([]time.Time, 0, len(values))
	for _, value := range values {
		days = append(days, date(value))
	}
	return days
}

func TestHoursFor(t *testing.T) {
	agg := newTestAggregator()

	if got := agg.HoursFor(domain.StatusFullDay); got != 7 {
		t.Errorf("Expected 7 hours for a full day, got %v", got)
	}
	if got := agg.HoursFor(domain.StatusHalfDay); got != 3.5 {
		t.Errorf("Expected 3.5 hours for a half day, got %v", got)
	}
	if got := agg.HoursFor(domain.StatusAbsent); got != 0 {
		t.Errorf("Expected 0 hours for an absence, got %v", got)
	}
	if got := agg.HoursFor(domain.StatusCode("garbage")); got != 0 {
		t.Errorf("Expected 0 hours for an unknown code, got %v", got)
	}
}

func TestSummarizeMember_FullyFilledWeek(t *testing.T) {
	agg := newTestAggregator()

	days := workingDays("2025-08-03", "2025-08-04", "2025-08-05", "2025-08-06", "2025-08-07")
	entries := map[string]domain.ScheduleEntry{
		"2025-08-03": {Value: domain.StatusFullDay},
		"2025-08-04": {Value: domain.StatusFullDay},
		"2025-08-05": {Value: domain.StatusHalfDay, Reason: "病假"},
		"2025-08-06": {Value: domain.StatusAbsent, Reason: "年假"},
		"2025-08-07": {Value: domain.StatusFullDay},
	}

	summary := agg.SummarizeMember(42, entries, days)

	if summary.MemberID != 42 {
		t.Errorf("Expected member id 42, got %d", summary.MemberID)
	}
	if summary.ActualHours != 24.5 {
		t.Errorf("Expected 24.5 actual hours, got %v", summary.ActualHours)
	}
	if summary.PotentialHours != 35 {
		t.Errorf("Expected 35 potential hours, got %v", summary.PotentialHours)
	}
	// 缺勤也算已提交，所以完成度是 100 而不是 80
	if summary.CompletionPercentage != 100 {
		t.Errorf("Expected 100%% completion, got %d%%", summary.CompletionPercentage)
	}
	if summary.UtilizationPercentage != 70 {
		t.Errorf("Expected 70%% utilization, got %d%%", summary.UtilizationPercentage)
	}
	if summary.Status != domain.SummaryStatusExcellent {
		t.Errorf("Expected status excellent, got %s", summary.Status)
	}
}

func TestSummarizeMember_IgnoresEntriesOutsideWindow(t *testing.T) {
	agg := newTestAggregator()

	days := workingDays("2025-08-03", "2025-08-04")
	entries := map[string]domain.ScheduleEntry{
		"2025-08-03": {Value: domain.StatusFullDay},
		"2025-08-04": {Value: domain.StatusFullDay},
		"2025-07-01": {Value: domain.StatusFullDay},
	}

	summary := agg.SummarizeMember(1, entries, days)

	if summary.ActualHours != 14 {
		t.Errorf("Expected 14 actual hours, got %v", summary.ActualHours)
	}
	if summary.CompletionPercentage != 100 {
		t.Errorf("Expected 100%% completion, got %d%%", summary.CompletionPercentage)
	}
}

func TestSummarizeMember_NoWorkingDays(t *testing.T) {
	agg := newTestAggregator()

	summary := agg.SummarizeMember(1, map[string]domain.ScheduleEntry{}, nil)

	if summary.ActualHours != 0 || summary.PotentialHours != 0 {
		t.Errorf("Expected zero hours, got actual=%v potential=%v", summary.ActualHours, summary.PotentialHours)
	}
	if summary.CompletionPercentage != 0 {
		t.Errorf("Expected 0%% completion, got %d%%", summary.CompletionPercentage)
	}
	if summary.Status != domain.SummaryStatusCritical {
		t.Errorf("Expected status critical, got %s", summary.Status)
	}
}

func TestSummarizeMember_RepeatedCallsAreStable(t *testing.T) {
	agg := newTestAggregator()

	days := workingDays("2025-08-03", "2025-08-04", "2025-08-05")
	entries := map[string]domain.ScheduleEntry{
		"2025-08-03": {Value: domain.StatusHalfDay, Reason: "调休"},
	}

	first := agg.SummarizeMember(7, entries, days)
	second := agg.SummarizeMember(7, entries, days)

	if first != second {
		t.Errorf("Expected identical summaries, got %+v and %+v", first, second)
	}
}

func TestStatusBands_InclusiveLowerBounds(t *testing.T) {
	agg := newTestAggregator()

	days := make([]time.Time, 0, 20)
	day := date("2025-08-01")
	for i := 0; i < 20; i++ {
		days = append(days, day)
		day = day.AddDate(0, 0, 1)
	}

	fill := func(n int) map[string]domain.ScheduleEntry {
		entries := make(map[string]domain.ScheduleEntry)
		for i := 0; i < n; i++ {
			entries[domain.DateKey(days[i])] = domain.ScheduleEntry{Value: domain.StatusFullDay}
		}
		return entries
	}

	cases := []struct {
		filled     int
		completion int
		status     domain.SummaryStatus
	}{
		{20, 100, domain.SummaryStatusExcellent},
		{19, 95, domain.SummaryStatusExcellent},
		{18, 90, domain.SummaryStatusGood},
		{17, 85, domain.SummaryStatusGood},
		{16, 80, domain.SummaryStatusWarning},
		{14, 70, domain.SummaryStatusWarning},
		{13, 65, domain.SummaryStatusCritical},
		{0, 0, domain.SummaryStatusCritical},
	}

	for _, tc := range cases {
		summary := agg.SummarizeMember(1, fill(tc.filled), days)
		if summary.CompletionPercentage != tc.completion {
			t.Errorf("filled=%d: expected %d%% completion, got %d%%", tc.filled, tc.completion, summary.CompletionPercentage)
		}
		if summary.Status != tc.status {
			t.Errorf("filled=%d: expected status %s, got %s", tc.filled, tc.status, summary.Status)
		}
	}
}

func TestSummarizeTeam(t *testing.T) {
	agg := newTestAggregator()

	summaries := []domain.MemberSummary{
		{MemberID: 1, ActualHours: 35, PotentialHours: 35},
		{MemberID: 2, ActualHours: 24.5, PotentialHours: 35},
		{MemberID: 3, ActualHours: 0, PotentialHours: 35},
	}

	team := agg.SummarizeTeam(summaries)

	if team.TotalMembers != 3 {
		t.Errorf("Expected 3 members, got %d", team.TotalMembers)
	}
	if team.MaxCapacityHours != 105 {
		t.Errorf("Expected 105 capacity hours, got %v", team.MaxCapacityHours)
	}
	if team.ActualHours != 59.5 {
		t.Errorf("Expected 59.5 actual hours, got %v", team.ActualHours)
	}
	// 59.5 / 105 ≈ 56.67%，四舍五入到 57
	if team.UtilizationPercentage != 57 {
		t.Errorf("Expected 57%% utilization, got %d%%", team.UtilizationPercentage)
	}
}

func TestSummarizeTeam_NoMembers(t *testing.T) {
	agg := newTestAggregator()

	team := agg.SummarizeTeam(nil)

	if team.TotalMembers != 0 || team.MaxCapacityHours != 0 || team.ActualHours != 0 || team.UtilizationPercentage != 0 {
		t.Errorf("Expected all-zero summary, got %+v", team)
	}
}
