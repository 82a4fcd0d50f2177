package handler

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
)

func (h *Handler) CreateSprintDefinition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SprintNumber int32  `json:"sprintNumber" validate:"required,min=1"`
		StartDate    string `json:"startDate" validate:"required"`
		EndDate      string `json:"endDate" validate:"required"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	startDate, err := time.Parse(domain.DateKeyLayout, req.StartDate)
	if err != nil {
		h.errorResponse(w, r, "开始日期格式无效")
		return
	}
	endDate, err := time.Parse(domain.DateKeyLayout, req.EndDate)
	if err != nil {
		h.errorResponse(w, r, "结束日期格式无效")
		return
	}
	if startDate.After(endDate) {
		h.errorResponse(w, r, "开始日期不能晚于结束日期")
		return
	}

	definition := &domain.SprintDefinition{
		SprintNumber: req.SprintNumber,
		StartDate:    startDate,
		EndDate:      endDate,
	}

	if err := h.repository.CreateSprintDefinition(definition); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "sprint_definitions_sprint_number_key":
				h.errorResponse(w, r, "冲刺编号已存在")
			default:
				h.internalServerError(w, r, err)
			}
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "创建冲刺成功", definition)
}

func (h *Handler) GetAllSprintDefinitions(w http.ResponseWriter, r *http.Request) {
	definitions, err := h.repository.GetAllSprintDefinitions()
	if err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "获取冲刺列表成功", definitions)
}

func (h *Handler) GetCurrentSprintDefinition(w http.ResponseWriter, r *http.Request) {
	definition, err := h.repository.GetSprintDefinitionForDate(time.Now())
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			// 元数据缺失不是错误，看板会走合成锚点推算
			h.successResponse(w, r, "当前没有配置冲刺", nil)
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "获取当前冲刺成功", definition)
}

func (h *Handler) GetSprintDefinition(w http.ResponseWriter, r *http.Request) {
	definition := r.Context().Value(SprintDefinitionCtx).(*domain.SprintDefinition)
	h.successResponse(w, r, "获取冲刺成功", definition)
}

func (h *Handler) UpdateSprintDefinition(w http.ResponseWriter, r *http.Request) {
	var req struct {
		SprintNumber *int32  `json:"sprintNumber" validate:"omitempty,min=1"`
		StartDate    *string `json:"startDate"`
		EndDate      *string `json:"endDate"`
	}

	if err := h.readJSON(r, &req); err != nil {
		h.badRequest(w, r, err)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		h.badRequest(w, r, err)
		return
	}

	definition := r.Context().Value(SprintDefinitionCtx).(*domain.SprintDefinition)

	if req.SprintNumber != nil {
		definition.SprintNumber = *req.SprintNumber
	}
	if req.StartDate != nil {
		startDate, err := time.Parse(domain.DateKeyLayout, *req.StartDate)
		if err != nil {
			h.errorResponse(w, r, "开始日期格式无效")
			return
		}
		definition.StartDate = startDate
	}
	if req.EndDate != nil {
		endDate, err := time.Parse(domain.DateKeyLayout, *req.EndDate)
		if err != nil {
			h.errorResponse(w, r, "结束日期格式无效")
			return
		}
		definition.EndDate = endDate
	}

	if definition.StartDate.After(definition.EndDate) {
		h.errorResponse(w, r, "开始日期不能晚于结束日期")
		return
	}

	if err := h.repository.UpdateSprintDefinition(definition); err != nil {
		var pgErr *pgconn.PgError
		switch {
		case errors.As(err, &pgErr):
			switch pgErr.ConstraintName {
			case "sprint_definitions_sprint_number_key":
				h.errorResponse(w, r, "冲刺编号已存在")
			default:
				h.internalServerError(w, r, err)
			}
		case errors.Is(err, sql.ErrNoRows):
			h.errorResponse(w, r, "更新冲刺失败，请重试")
		default:
			h.internalServerError(w, r, err)
		}
		return
	}

	h.successResponse(w, r, "更新冲刺成功", definition)
}

func (h *Handler) DeleteSprintDefinition(w http.ResponseWriter, r *http.Request) {
	definition := r.Context().Value(SprintDefinitionCtx).(*domain.SprintDefinition)

	if err := h.repository.DeleteSprintDefinition(definition.ID); err != nil {
		h.internalServerError(w, r, err)
		return
	}

	h.successResponse(w, r, "删除冲刺成功", nil)
}
