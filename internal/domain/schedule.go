package domain

import "time"

// StatusCode 为组员提交的每日状态
type StatusCode string

const (
	StatusFullDay StatusCode = "1"
	StatusHalfDay StatusCode = "0.5"
	StatusAbsent  StatusCode = "X"
)

// IsValid 判断状态码是否为三个合法取值之一
func (s StatusCode) IsValid() bool {
	return s == StatusFullDay || s == StatusHalfDay || s == StatusAbsent
}

const DateKeyLayout = "2006-01-02"

// DateOnly 去掉时间部分，所有日期比较都应该先经过这个函数
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateKey 为快照使用的日期键
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// ScheduleEntry 为某个组员在某一天提交的状态
// 上游会保证 value 为 0.5 或 X 时 reason 非空，但引擎不依赖这一点，
// reason 缺失时照常计算
type ScheduleEntry struct {
	ID        int64      `json:"id"`
	MemberID  int64      `json:"memberID"`
	Date      time.Time  `json:"date"`
	Value     StatusCode `json:"value"`
	Reason    string     `json:"reason"`
	CreatedAt time.Time  `json:"createdAt"`
	Version   int32      `json:"-"`
}

// ScheduleSnapshot 为某个 (小组, 日期范围) 会话的内存视图
// memberID -> dateKey -> entry，条目是不可变的值，更新时整个替换
type ScheduleSnapshot map[int64]map[string]ScheduleEntry

// Get 返回某个组员某天的条目
func (s ScheduleSnapshot) Get(memberID int64, day time.Time) (ScheduleEntry, bool) {
	entries, ok := s[memberID]
	if !ok {
		return ScheduleEntry{}, false
	}
	entry, ok := entries[DateKey(day)]
	return entry, ok
}

// Set 替换某个组员某天的条目
func (s ScheduleSnapshot) Set(entry ScheduleEntry) {
	if _, ok := s[entry.MemberID]; !ok {
		s[entry.MemberID] = make(map[string]ScheduleEntry)
	}
	s[entry.MemberID][DateKey(entry.Date)] = entry
}

// Delete 删除某个组员某天的条目（对应清除状态的写入）
func (s ScheduleSnapshot) Delete(memberID int64, day time.Time) {
	if entries, ok := s[memberID]; ok {
		delete(entries, DateKey(day))
	}
}

// Clone 深拷贝快照，协调器对外暴露视图时使用，防止调用方改动内部状态
func (s ScheduleSnapshot) Clone() ScheduleSnapshot {
	cloned := make(ScheduleSnapshot, len(s))
	for memberID, entries := range s {
		clonedEntries := make(map[string]ScheduleEntry, len(entries))
		for key, entry := range entries {
			clonedEntries[key] = entry
		}
		cloned[memberID] = clonedEntries
	}
	return cloned
}
