package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

// navigationFromQuery 从查询参数解析看板的导航状态，缺省为当前冲刺
func (h *Handler) navigationFromQuery(r *http.Request) (domain.NavigationState, error) {
	nav := domain.NavigationState{
		Mode:   domain.NavigationModeSprint,
		Offset: 0,
	}

	if mode := r.URL.Query().Get("mode"); mode != "" {
		switch domain.NavigationMode(mode) {
		case domain.NavigationModeSprint, domain.NavigationModeWeek:
			nav.Mode = domain.NavigationMode(mode)
		default:
			return nav, errors.New("无效的导航模式")
		}
	}

	if offsetParam := r.URL.Query().Get("offset"); offsetParam != "" {
		offset, err := strconv.Atoi(offsetParam)
		if err != nil {
			return nav, errors.New("无效的偏移量")
		}
		nav.Offset = offset
	}

	return nav, nil
}

// currentSprintDefinition 获取包含今天的权威冲刺定义
// 元数据缺失或者查询失败都按"没有定义"处理，解析器会自己降级，
// 看板宁可显示推算出来的窗口也不能空白
func (h *Handler) currentSprintDefinition(today time.Time) *domain.SprintDefinition {
	definition, err := h.repository.GetSprintDefinitionForDate(today)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			slog.Warn("获取冲刺定义失败，按元数据缺失处理", "error", err)
		}
		return nil
	}
	return definition
}

func (h *Handler) GetBoard(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	nav, err := h.navigationFromQuery(r)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	today := time.Now()
	definition := h.currentSprintDefinition(today)
	days := h.resolver.ResolveActiveWindow(definition, nav, today)
	if len(days) == 0 {
		// 窗口里一个工作日都没有（比如偏移指到了全是休息日的区间）
		h.successResponse(w, r, "当前窗口没有工作日", map[string]any{
			"navigation": nav,
			"dates":      []string{},
		})
		return
	}

	coordinator, err := h.sessions.Acquire(r.Context(), team.ID, days[0], days[len(days)-1])
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	snapshot := coordinator.Snapshot()

	members, err := h.repository.GetUsersByTeamID(team.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	memberSummaries := make([]domain.MemberSummary, 0, len(members))
	for _, member := range members {
		memberSummaries = append(memberSummaries, h.aggregator.SummarizeMember(member.ID, snapshot[member.ID], days))
	}
	teamSummary := h.aggregator.SummarizeTeam(memberSummaries)

	dates := make([]string, 0, len(days))
	for _, day := range days {
		dates = append(dates, domain.DateKey(day))
	}

	weeks := make([][]string, 0)
	for _, week := range h.calendar.GroupByWeek(days) {
		weekDates := make([]string, 0, len(week))
		for _, day := range week {
			weekDates = append(weekDates, domain.DateKey(day))
		}
		weeks = append(weeks, weekDates)
	}

	data := map[string]any{
		"navigation":      nav,
		"startDate":       dates[0],
		"endDate":         dates[len(dates)-1],
		"dates":           dates,
		"weeks":           weeks,
		"entries":         snapshot,
		"members":         members,
		"memberSummaries": memberSummaries,
		"teamSummary":     teamSummary,
	}

	// 重载失败时旧快照照常返回，只附带一个错误标记
	if loadErr := coordinator.LoadError(); loadErr != nil {
		data["loadError"] = loadErr.Error()
	}

	h.successResponse(w, r, "获取看板成功", data)
}

func (h *Handler) PutBoardEntry(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)
	myInfo := r.Context().Value(MyInfoCtx).(*domain.User)

	var req struct {
		MemberID *int64 `json:"memberID"`
		Date     string `json:"date" validate:"required"`
		Value    string `json:"value" validate:"omitempty,oneof=1 0.5 X"`
		Reason   string `json:"reason"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	day, err := time.Parse(domain.DateKeyLayout, req.Date)
	if err != nil {
		h.errorResponse(w, r, "日期格式无效")
		return
	}

	// 引擎本身容忍缺失的原因，但提交入口要求半天和缺勤必须说明原因
	value := domain.StatusCode(req.Value)
	if (value == domain.StatusHalfDay || value == domain.StatusAbsent) && req.Reason == "" {
		h.errorResponse(w, r, "半天或缺勤必须填写原因")
		return
	}

	memberID := myInfo.ID
	if req.MemberID != nil && *req.MemberID != myInfo.ID {
		// 只有组长和主管可以代别人填写
		if myInfo.Role == domain.RoleMember {
			h.errorResponse(w, r, "权限不足")
			return
		}
		memberID = *req.MemberID
	}

	member, err := h.repository.GetUserByID(memberID)
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "组员不存在")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}
	if member.TeamID == nil || *member.TeamID != team.ID {
		h.errorResponse(w, r, "组员不属于该小组")
		return
	}

	nav, err := h.navigationFromQuery(r)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	today := time.Now()
	days := h.resolver.ResolveActiveWindow(h.currentSprintDefinition(today), nav, today)
	if len(days) == 0 {
		h.errorResponse(w, r, "当前窗口没有工作日")
		return
	}

	day = domain.DateOnly(day)
	if day.Before(days[0]) || day.After(days[len(days)-1]) {
		h.errorResponse(w, r, "日期不在当前窗口内")
		return
	}

	coordinator, err := h.sessions.Acquire(r.Context(), team.ID, days[0], days[len(days)-1])
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	// 乐观写入：内存快照立刻更新，落库在后台进行，失败由下一次重载纠正
	if err := coordinator.ApplyLocalWrite(memberID, day, value, req.Reason); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "提交状态成功", map[string]any{
		"memberID": memberID,
		"date":     domain.DateKey(day),
		"value":    req.Value,
		"reason":   req.Reason,
	})
}

func (h *Handler) RemindIncompleteMembers(w http.ResponseWriter, r *http.Request) {
	team := r.Context().Value(TeamCtx).(*domain.Team)

	nav, err := h.navigationFromQuery(r)
	if err != nil {
		h.errorResponse(w, r, err.Error())
		return
	}

	today := time.Now()
	days := h.resolver.ResolveActiveWindow(h.currentSprintDefinition(today), nav, today)
	if len(days) == 0 {
		h.errorResponse(w, r, "当前窗口没有工作日")
		return
	}

	coordinator, err := h.sessions.Acquire(r.Context(), team.ID, days[0], days[len(days)-1])
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}
	snapshot := coordinator.Snapshot()

	members, err := h.repository.GetUsersByTeamID(team.ID)
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	remindedCount := 0
	for _, member := range members {
		if !member.IsActive {
			continue
		}

		summary := h.aggregator.SummarizeMember(member.ID, snapshot[member.ID], days)
		if summary.Status != domain.SummaryStatusWarning && summary.Status != domain.SummaryStatusCritical {
			continue
		}

		filledDays := 0
		for _, day := range days {
			if _, ok := snapshot.Get(member.ID, day); ok {
				filledDays++
			}
		}

		mailMessage := domain.MailMessage{
			Type: "completion_reminder",
			To:   member.Email,
			Data: domain.CompletionReminderMailData{
				FullName:             member.FullName,
				TeamName:             team.Name,
				CompletionPercentage: summary.CompletionPercentage,
				MissingDays:          len(days) - filledDays,
			},
		}

		mailData, err := json.Marshal(mailMessage)
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), time.Duration(h.config.RabbitMQ.PublishTimeout)*time.Second)
		err = h.mailChannel.PublishWithContext(
			ctx,
			"",
			"email_queue",
			true,
			false,
			amqp.Publishing{
				ContentType: "application/json",
				Body:        mailData,
			},
		)
		cancel()
		if err != nil {
			h.internalServerError(w, r, err)
			return
		}

		remindedCount++
	}

	h.successResponse(w, r, "提醒已发送", map[string]any{
		"remindedCount": remindedCount,
	})
}
