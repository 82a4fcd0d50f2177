package domain

import "time"

// SprintDefinition 为管理员配置的冲刺周期
// 它是权威的冲刺元数据，但允许缺失或者过期（今天不在任何冲刺的范围内），
// 这两种情况下引擎会退回到合成锚点推算
type SprintDefinition struct {
	ID           int64     `json:"id"`
	SprintNumber int32     `json:"sprintNumber"` // 从 1 开始编号
	StartDate    time.Time `json:"startDate"`
	EndDate      time.Time `json:"endDate"` // 闭区间，包含这一天
	CreatedAt    time.Time `json:"createdAt"`
	Version      int32     `json:"-"`
}

// Contains 判断 day 是否落在冲刺范围内（按日期比较，忽略时间部分）
func (sd *SprintDefinition) Contains(day time.Time) bool {
	d := DateOnly(day)
	return !d.Before(DateOnly(sd.StartDate)) && !d.After(DateOnly(sd.EndDate))
}

type NavigationMode string

const (
	NavigationModeSprint NavigationMode = "sprint"
	NavigationModeWeek   NavigationMode = "week"
)

// NavigationState 为看板的翻页状态
// Offset 为 0 时表示包含今天的当前周期，负数向过去翻页，正数向未来翻页
type NavigationState struct {
	Mode   NavigationMode `json:"mode"`
	Offset int            `json:"offset"`
}
