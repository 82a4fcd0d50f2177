package sprint

import (
	"testing"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

func date(value string) time.Time {
	t, err := time.Parse(domain.DateKeyLayout, value)
	if err != nil {
		panic(err)
	}
	return t
}

func newTestResolver(t *testing.T) *Resolver {
	t.Helper()
	cal, err := calendar.New([]int{5, 6})
	if err != nil {
		t.Fatalf("calendar.New failed: %v", err)
	}
	resolver, err := NewResolver(cal, "2025-07-27", 2, 200)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}
	return resolver
}

func sprintNav(offset int) domain.NavigationState {
	return domain.NavigationState{Mode: domain.NavigationModeSprint, Offset: offset}
}

func TestNewResolver_RejectsBadConfig(t *testing.T) {
	cal, err := calendar.New([]int{5, 6})
	if err != nil {
		t.Fatalf("calendar.New failed: %v", err)
	}

	if _, err := NewResolver(cal, "not-a-date", 2, 200); err == nil {
		t.Error("Expected error for malformed anchor date, got nil")
	}
	if _, err := NewResolver(cal, "2025-07-27", 0, 200); err == nil {
		t.Error("Expected error for zero sprint length, got nil")
	}
	if _, err := NewResolver(cal, "2025-07-27", 2, 0); err == nil {
		t.Error("Expected error for zero iteration cap, got nil")
	}
}

func TestResolveActiveWindow_AuthoritativeDefinition(t *testing.T) {
	resolver := newTestResolver(t)

	definition := &domain.SprintDefinition{
		SprintNumber: 3,
		StartDate:    date("2025-07-27"),
		EndDate:      date("2025-08-07"),
	}

	days := resolver.ResolveActiveWindow(definition, sprintNav(0), date("2025-08-05"))

	if len(days) != 10 {
		t.Fatalf("Expected 10 working days, got %d", len(days))
	}
	if !days[0].Equal(date("2025-07-27")) {
		t.Errorf("Expected window to start on 2025-07-27, got %s", domain.DateKey(days[0]))
	}
	if !days[len(days)-1].Equal(date("2025-08-07")) {
		t.Errorf("Expected window to end on 2025-08-07, got %s", domain.DateKey(days[len(days)-1]))
	}
}

func TestResolveActiveWindow_AuthoritativeDefinitionWithOffset(t *testing.T) {
	resolver := newTestResolver(t)

	definition := &domain.SprintDefinition{
		SprintNumber: 3,
		StartDate:    date("2025-07-27"),
		EndDate:      date("2025-08-07"),
	}

	// 定义跨 12 个日历天，向后偏移一个冲刺就是整段平移 12 天
	days := resolver.ResolveActiveWindow(definition, sprintNav(1), date("2025-08-05"))

	if len(days) == 0 {
		t.Fatal("Expected non-empty window")
	}
	if !days[0].Equal(date("2025-08-10")) {
		t.Errorf("Expected shifted window to start on 2025-08-10, got %s", domain.DateKey(days[0]))
	}
	if !days[len(days)-1].Equal(date("2025-08-19")) {
		t.Errorf("Expected shifted window to end on 2025-08-19, got %s", domain.DateKey(days[len(days)-1]))
	}
}

func TestResolveActiveWindow_SyntheticAnchor(t *testing.T) {
	resolver := newTestResolver(t)

	// 没有任何权威定义，从锚点 2025-07-27 推算两周（10 个工作日）的窗口
	days := resolver.ResolveActiveWindow(nil, sprintNav(0), date("2025-08-05"))

	if len(days) != 10 {
		t.Fatalf("Expected 10 working days, got %d", len(days))
	}
	if !days[0].Equal(date("2025-07-27")) {
		t.Errorf("Expected window to start on 2025-07-27, got %s", domain.DateKey(days[0]))
	}
	if !days[len(days)-1].Equal(date("2025-08-07")) {
		t.Errorf("Expected window to end on 2025-08-07, got %s", domain.DateKey(days[len(days)-1]))
	}
}

func TestResolveActiveWindow_SyntheticAnchorLaterSprint(t *testing.T) {
	resolver := newTestResolver(t)

	// 今天已经跑到锚点之后好几个冲刺，推算也要落到包含今天的那一段
	today := date("2025-10-15")
	days := resolver.ResolveActiveWindow(nil, sprintNav(0), today)

	if len(days) != 10 {
		t.Fatalf("Expected 10 working days, got %d", len(days))
	}
	if today.Before(days[0]) || today.After(days[len(days)-1]) {
		t.Errorf("Expected window [%s, %s] to contain today %s",
			domain.DateKey(days[0]), domain.DateKey(days[len(days)-1]), domain.DateKey(today))
	}
}

func TestResolveActiveWindow_StaleDefinitionFallsBack(t *testing.T) {
	resolver := newTestResolver(t)

	// 定义早就结束了，不能再拿它当权威边界
	definition := &domain.SprintDefinition{
		SprintNumber: 1,
		StartDate:    date("2025-06-01"),
		EndDate:      date("2025-06-12"),
	}

	today := date("2025-08-05")
	days := resolver.ResolveActiveWindow(definition, sprintNav(0), today)

	if len(days) == 0 {
		t.Fatal("Expected non-empty fallback window")
	}
	if today.Before(days[0]) || today.After(days[len(days)-1]) {
		t.Errorf("Expected fallback window [%s, %s] to contain today %s",
			domain.DateKey(days[0]), domain.DateKey(days[len(days)-1]), domain.DateKey(today))
	}
	if days[0].Before(date("2025-07-01")) {
		t.Errorf("Fallback window should not reuse the stale definition, got start %s", domain.DateKey(days[0]))
	}
}

func TestResolveActiveWindow_SyntheticAnchorWithOffset(t *testing.T) {
	resolver := newTestResolver(t)

	current := resolver.ResolveActiveWindow(nil, sprintNav(0), date("2025-08-05"))
	previous := resolver.ResolveActiveWindow(nil, sprintNav(-1), date("2025-08-05"))

	if len(previous) == 0 {
		t.Fatal("Expected non-empty window for offset -1")
	}

	// 偏移一个冲刺就是整段平移 lengthWeeks*7 个日历天
	expectedStart := current[0].AddDate(0, 0, -14)
	if !previous[0].Equal(expectedStart) {
		t.Errorf("Expected previous window to start on %s, got %s",
			domain.DateKey(expectedStart), domain.DateKey(previous[0]))
	}
}

func TestResolveActiveWindow_WeekMode(t *testing.T) {
	resolver := newTestResolver(t)

	// 2025-08-05 周二，所在周从周日 2025-08-03 开始，工作日到周四 2025-08-07
	nav := domain.NavigationState{Mode: domain.NavigationModeWeek, Offset: 0}
	days := resolver.ResolveActiveWindow(nil, nav, date("2025-08-05"))

	if len(days) != 5 {
		t.Fatalf("Expected 5 working days in week mode, got %d", len(days))
	}
	if !days[0].Equal(date("2025-08-03")) {
		t.Errorf("Expected week window to start on 2025-08-03, got %s", domain.DateKey(days[0]))
	}
	if !days[len(days)-1].Equal(date("2025-08-07")) {
		t.Errorf("Expected week window to end on 2025-08-07, got %s", domain.DateKey(days[len(days)-1]))
	}
}

func TestResolveActiveWindow_WeekModeWithOffset(t *testing.T) {
	resolver := newTestResolver(t)

	nav := domain.NavigationState{Mode: domain.NavigationModeWeek, Offset: 1}
	days := resolver.ResolveActiveWindow(nil, nav, date("2025-08-05"))

	if len(days) != 5 {
		t.Fatalf("Expected 5 working days, got %d", len(days))
	}
	if !days[0].Equal(date("2025-08-10")) {
		t.Errorf("Expected next week window to start on 2025-08-10, got %s", domain.DateKey(days[0]))
	}
}

func TestResolveActiveWindow_FutureAnchorFallsBackToWeek(t *testing.T) {
	cal, err := calendar.New([]int{5, 6})
	if err != nil {
		t.Fatalf("calendar.New failed: %v", err)
	}
	resolver, err := NewResolver(cal, "2030-01-06", 2, 200)
	if err != nil {
		t.Fatalf("NewResolver failed: %v", err)
	}

	// 锚点在未来，推算永远追不上今天，必须退回到按周解析
	today := date("2025-08-05")
	days := resolver.ResolveActiveWindow(nil, sprintNav(0), today)

	if len(days) != 5 {
		t.Fatalf("Expected week-sized fallback window, got %d days", len(days))
	}
	if today.Before(days[0]) || today.After(days[len(days)-1]) {
		t.Errorf("Expected fallback window to contain today %s", domain.DateKey(today))
	}
}
