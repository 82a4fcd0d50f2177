package domain

// SummaryStatus 为完成度的分档，只由完成度百分比决定
type SummaryStatus string

const (
	SummaryStatusExcellent SummaryStatus = "excellent"
	SummaryStatusGood      SummaryStatus = "good"
	SummaryStatusWarning   SummaryStatus = "warning"
	SummaryStatusCritical  SummaryStatus = "critical"
)

// MemberSummary 为派生数据，不落库，每次读取时重新计算
type MemberSummary struct {
	MemberID              int64         `json:"memberID"`
	ActualHours           float64       `json:"actualHours"`
	PotentialHours        float64       `json:"potentialHours"`
	CompletionPercentage  int           `json:"completionPercentage"`
	UtilizationPercentage int           `json:"utilizationPercentage"`
	Status                SummaryStatus `json:"status"`
}

// TeamSummary 为整个小组在当前窗口内的汇总
type TeamSummary struct {
	TotalMembers          int     `json:"totalMembers"`
	MaxCapacityHours      float64 `json:"maxCapacityHours"`
	ActualHours           float64 `json:"actualHours"`
	UtilizationPercentage int     `json:"utilizationPercentage"`
}
