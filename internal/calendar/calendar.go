package calendar

import (
	"fmt"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// Calendar 负责纯粹的工作日历运算
// 休息日由配置注入，不同地区的团队休息日不一样（比如周五周六），不能写死
type Calendar struct {
	weekend   map[time.Weekday]bool
	weekStart time.Weekday
}

func New(weekendDays []int) (*Calendar, error) {
	weekend := make(map[time.Weekday]bool)
	for _, day := range weekendDays {
		if day < 0 || day > 6 {
			return nil, fmt.Errorf("非法的休息日 %d，取值范围应该是 0~6", day)
		}
		weekend[time.Weekday(day)] = true
	}

	if len(weekend) >= 7 {
		return nil, fmt.Errorf("休息日不能覆盖整周")
	}

	return &Calendar{
		weekend:   weekend,
		weekStart: firstDayAfterWeekend(weekend),
	}, nil
}

// firstDayAfterWeekend 推算每周的起始日：取第一个前一天是休息日的工作日
// 没有配置休息日时按周一算
func firstDayAfterWeekend(weekend map[time.Weekday]bool) time.Weekday {
	if len(weekend) == 0 {
		return time.Monday
	}
	for day := 0; day < 7; day++ {
		current := time.Weekday(day)
		previous := time.Weekday((day + 6) % 7)
		if !weekend[current] && weekend[previous] {
			return current
		}
	}
	return time.Monday
}

// WeekStart 返回配置推算出来的每周起始日
func (c *Calendar) WeekStart() time.Weekday {
	return c.weekStart
}

// IsWorkingDay 判断某一天是不是工作日
func (c *Calendar) IsWorkingDay(day time.Time) bool {
	return !c.weekend[day.Weekday()]
}

// WorkingDays 返回 [start, end] 闭区间内的所有工作日，按日期升序
// start 晚于 end 时返回空切片而不是报错，因为调用方的范围可能是从偏移量算出来的
func (c *Calendar) WorkingDays(start time.Time, end time.Time) []time.Time {
	days := make([]time.Time, 0)

	startDate := domain.DateOnly(start)
	endDate := domain.DateOnly(end)

	for day := startDate; !day.After(endDate); day = day.AddDate(0, 0, 1) {
		if c.IsWorkingDay(day) {
			days = append(days, day)
		}
	}

	return days
}

// GroupByWeek 把日期序列按周分桶，遇到每周起始日就开新桶
// 保持输入顺序，同一天不会被拆到两个桶里
func (c *Calendar) GroupByWeek(days []time.Time) [][]time.Time {
	weeks := make([][]time.Time, 0)

	for _, day := range days {
		if len(weeks) == 0 || day.Weekday() == c.weekStart {
			weeks = append(weeks, []time.Time{})
		}
		weeks[len(weeks)-1] = append(weeks[len(weeks)-1], day)
	}

	return weeks
}

// NthWorkingDayFrom 从 from 开始（含 from）向后数第 n 个工作日
// n 小于等于 0 时直接返回 from
func (c *Calendar) NthWorkingDayFrom(from time.Time, n int) time.Time {
	day := domain.DateOnly(from)
	if n <= 0 {
		return day
	}

	count := 0
	for {
		if c.IsWorkingDay(day) {
			count++
			if count == n {
				return day
			}
		}
		day = day.AddDate(0, 0, 1)
	}
}

// WorkingDaysPerWeek 返回每周的工作日数量
func (c *Calendar) WorkingDaysPerWeek() int {
	return 7 - len(c.weekend)
}

// WeekContaining 返回包含 day 的日历周的起止日期（闭区间，共 7 天）
func (c *Calendar) WeekContaining(day time.Time) (time.Time, time.Time) {
	date := domain.DateOnly(day)
	daysSinceWeekStart := (int(date.Weekday()) - int(c.weekStart) + 7) % 7
	start := date.AddDate(0, 0, -daysSinceWeekStart)
	return start, start.AddDate(0, 0, 6)
}
