package sprint

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// Resolver 负责确定当前冲刺窗口包含哪些工作日
//
// 解析按三层降级：
//  1. 有权威冲刺定义且今天在范围内，按偏移量平移定义的边界
//  2. 定义缺失或者过期，从配置的合成锚点开始推算冲刺边界
//  3. 推算失败（配置损坏），退回到包含今天的日历周
//
// 权威元数据是管理员手工维护的，新部署时可能没有，也可能今天已经
// 跑出了它的范围，所以不管输入多糟糕，解析都必须给出一个可用的窗口
type Resolver struct {
	cal           *calendar.Calendar
	anchor        time.Time
	lengthWeeks   int
	maxIterations int
}

func NewResolver(cal *calendar.Calendar, anchorDate string, lengthWeeks int, maxIterations int) (*Resolver, error) {
	anchor, err := time.Parse(domain.DateKeyLayout, anchorDate)
	if err != nil {
		return nil, fmt.Errorf("非法的锚点日期 %q: %w", anchorDate, err)
	}
	if lengthWeeks < 1 {
		return nil, fmt.Errorf("冲刺周数必须大于等于 1，当前为 %d", lengthWeeks)
	}
	if maxIterations < 1 {
		return nil, fmt.Errorf("推算迭代上限必须大于等于 1，当前为 %d", maxIterations)
	}

	return &Resolver{
		cal:           cal,
		anchor:        domain.DateOnly(anchor),
		lengthWeeks:   lengthWeeks,
		maxIterations: maxIterations,
	}, nil
}

// ResolveActiveWindow 返回导航状态对应的冲刺窗口内的所有工作日
// 对合法的日期输入永远不会失败，最坏情况下返回按周解析的结果
func (r *Resolver) ResolveActiveWindow(definition *domain.SprintDefinition, nav domain.NavigationState, today time.Time) []time.Time {
	today = domain.DateOnly(today)

	// 按周导航不需要冲刺元数据，直接按日历周解析
	if nav.Mode == domain.NavigationModeWeek {
		return r.weekWindow(today, nav.Offset)
	}

	// 第一层：权威定义可用
	if definition != nil && definition.Contains(today) {
		start := domain.DateOnly(definition.StartDate)
		end := domain.DateOnly(definition.EndDate)
		// 冲刺长度按日历天数算，偏移时整段平移
		lengthDays := int(end.Sub(start).Hours()/24) + 1
		shift := nav.Offset * lengthDays
		return r.cal.WorkingDays(start.AddDate(0, 0, shift), end.AddDate(0, 0, shift))
	}

	// 第二层：合成锚点推算
	days, ok := r.syntheticWindow(today, nav.Offset)
	if ok && len(days) > 0 {
		return days
	}

	// 第三层：兜底，保证界面永远有一个窗口可以显示
	return r.weekWindow(today, nav.Offset)
}

// syntheticWindow 从锚点开始逐个冲刺往后推，直到找到包含今天的那一个
// 边界按工作日数推进，而不是日历天数，这样锚点落在休息日上也不会让
// 每个冲刺的工作日数量漂移
func (r *Resolver) syntheticWindow(today time.Time, offset int) ([]time.Time, bool) {
	workingDaysPerSprint := r.lengthWeeks * r.cal.WorkingDaysPerWeek()
	if workingDaysPerSprint < 1 {
		return nil, false
	}

	start := r.anchor
	var end time.Time

	found := false
	for i := 0; i < r.maxIterations; i++ {
		end = r.cal.NthWorkingDayFrom(start, workingDaysPerSprint)

		if !today.Before(start) && !today.After(end) {
			found = true
			break
		}
		if start.After(today) {
			// 锚点被配置到了未来，继续往后推只会越走越远
			break
		}

		start = end.AddDate(0, 0, 1)
	}

	if !found {
		slog.Error("合成锚点推算没有找到包含今天的冲刺，降级为按周解析",
			"anchor", domain.DateKey(r.anchor), "today", domain.DateKey(today), "max_iterations", r.maxIterations)
		return nil, false
	}

	// 偏移按日历天数应用在解析出来的边界上
	shift := offset * r.lengthWeeks * 7
	return r.cal.WorkingDays(start.AddDate(0, 0, shift), end.AddDate(0, 0, shift)), true
}

// weekWindow 返回包含今天的日历周按 offset 周平移后的工作日
func (r *Resolver) weekWindow(today time.Time, offset int) []time.Time {
	start, end := r.cal.WeekContaining(today)
	shift := offset * 7
	return r.cal.WorkingDays(start.AddDate(0, 0, shift), end.AddDate(0, 0, shift))
}
