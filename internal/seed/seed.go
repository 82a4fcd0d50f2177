package seed

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/repository"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/sprint"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/utils"
)

// SeedSprintDefinitions 从包含今天的日历周开始插入 n 个连续的冲刺定义
func SeedSprintDefinitions(cfg *config.Config, repo *repository.Repository, cal *calendar.Calendar, n int) {
	lengthDays := cfg.Sprint.LengthWeeks * 7
	start, _ := cal.WeekContaining(time.Now())

	cnt := 0
	for i := 0; i < n; i++ {
		definition := &domain.SprintDefinition{
			SprintNumber: int32(i + 1),
			StartDate:    start,
			EndDate:      start.AddDate(0, 0, lengthDays-1),
		}

		if err := repo.CreateSprintDefinition(definition); err != nil {
			slog.Error("无法插入冲刺定义", "sprint_number", definition.SprintNumber, "error", err)
		} else {
			cnt++
		}

		start = start.AddDate(0, 0, lengthDays)
	}

	slog.Info("插入冲刺定义成功", "count", cnt)
}

// SeedScheduleEntries 为某个小组的所有组员在当前冲刺窗口内随机填写每日状态
func SeedScheduleEntries(repo *repository.Repository, resolver *sprint.Resolver, teamID int64) {
	today := time.Now()

	definition, err := repo.GetSprintDefinitionForDate(today)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Error("无法获取冲刺定义", "error", err)
			return
		}
		definition = nil
	}

	days := resolver.ResolveActiveWindow(definition, domain.NavigationState{Mode: domain.NavigationModeSprint}, today)
	if len(days) == 0 {
		slog.Error("当前窗口没有工作日，无法插入状态")
		return
	}

	members, err := repo.GetUsersByTeamID(teamID)
	if err != nil {
		slog.Error("无法获取小组成员", "team_id", teamID, "error", err)
		return
	}

	cnt := 0
	for _, member := range members {
		for _, day := range days {
			value, reason := utils.GenerateRandomStatus()
			if err := repo.WriteEntry(context.Background(), teamID, member.ID, day, value, reason); err != nil {
				slog.Error("无法插入状态", "member_id", member.ID, "date", domain.DateKey(day), "error", err)
				continue
			}
			cnt++
		}
	}

	slog.Info("插入状态成功", "count", cnt)
}
