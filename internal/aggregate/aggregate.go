package aggregate

import (
	"math"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// Aggregator 把稀疏的每日状态条目汇总成组员和小组的统计数据
// 所有方法都是纯函数，每次读取时重新计算，不做缓存
type Aggregator struct {
	fullDayHours       float64
	halfDayHours       float64
	excellentThreshold int
	goodThreshold      int
	warningThreshold   int
}

func NewAggregator(fullDayHours float64, halfDayHours float64, excellentThreshold int, goodThreshold int, warningThreshold int) *Aggregator {
	return &Aggregator{
		fullDayHours:       fullDayHours,
		halfDayHours:       halfDayHours,
		excellentThreshold: excellentThreshold,
		goodThreshold:      goodThreshold,
		warningThreshold:   warningThreshold,
	}
}

// HoursFor 返回某个状态码对应的工时，非法状态码按 0 算
func (a *Aggregator) HoursFor(value domain.StatusCode) float64 {
	switch value {
	case domain.StatusFullDay:
		return a.fullDayHours
	case domain.StatusHalfDay:
		return a.halfDayHours
	default:
		return 0
	}
}

// SummarizeMember 汇总某个组员在窗口内的工时和完成度
//
// 完成度统计的是提交情况而不是出勤情况：半天和缺勤只要填了就算已提交。
// 窗口外的条目直接忽略。窗口里没有工作日时完成度为 0、分档为 critical，
// 这是给界面的"需要关注"信号，不是错误
func (a *Aggregator) SummarizeMember(memberID int64, entries map[string]domain.ScheduleEntry, workingDays []time.Time) domain.MemberSummary {
	potentialHours := float64(len(workingDays)) * a.fullDayHours

	actualHours := 0.0
	filledDays := 0
	for _, day := range workingDays {
		entry, ok := entries[domain.DateKey(day)]
		if !ok {
			continue
		}
		filledDays++
		actualHours += a.HoursFor(entry.Value)
	}

	completionPercentage := 0
	if len(workingDays) > 0 {
		completionPercentage = int(math.Round(float64(filledDays) / float64(len(workingDays)) * 100))
	}

	utilizationPercentage := 0
	if potentialHours > 0 {
		utilizationPercentage = int(math.Round(actualHours / potentialHours * 100))
	}

	return domain.MemberSummary{
		MemberID:              memberID,
		ActualHours:           actualHours,
		PotentialHours:        potentialHours,
		CompletionPercentage:  completionPercentage,
		UtilizationPercentage: utilizationPercentage,
		Status:                a.statusFor(completionPercentage),
	}
}

// statusFor 按完成度分档，每一档的下界是闭区间
func (a *Aggregator) statusFor(completionPercentage int) domain.SummaryStatus {
	switch {
	case completionPercentage >= a.excellentThreshold:
		return domain.SummaryStatusExcellent
	case completionPercentage >= a.goodThreshold:
		return domain.SummaryStatusGood
	case completionPercentage >= a.warningThreshold:
		return domain.SummaryStatusWarning
	default:
		return domain.SummaryStatusCritical
	}
}

// SummarizeTeam 把组员的汇总叠加成小组汇总，没有组员时返回全零
func (a *Aggregator) SummarizeTeam(memberSummaries []domain.MemberSummary) domain.TeamSummary {
	summary := domain.TeamSummary{
		TotalMembers: len(memberSummaries),
	}

	for _, ms := range memberSummaries {
		summary.MaxCapacityHours += ms.PotentialHours
		summary.ActualHours += ms.ActualHours
	}

	if summary.MaxCapacityHours > 0 {
		summary.UtilizationPercentage = int(math.Round(summary.ActualHours / summary.MaxCapacityHours * 100))
	}

	return summary
}
