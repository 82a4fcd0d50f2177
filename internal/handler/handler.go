package handler

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/locales/zh"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	zh_translations "github.com/go-playground/validator/v10/translations/zh"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/aggregate"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/calendar"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/config"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/domain"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/repository"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/session"
	"github.com/sysu-ecnc-dev/sprint-board/backend/internal/sprint"
)

type Handler struct {
	validate    *validator.Validate
	config      *config.Config
	repository  *repository.Repository
	translator  ut.Translator
	mailChannel *amqp.Channel
	redisClient *redis.Client

	calendar   *calendar.Calendar
	resolver   *sprint.Resolver
	aggregator *aggregate.Aggregator
	sessions   *session.Manager

	Mux *chi.Mux
}

func NewHandler(cfg *config.Config, repo *repository.Repository, mailCh *amqp.Channel, rdb *redis.Client, cal *calendar.Calendar, resolver *sprint.Resolver, aggregator *aggregate.Aggregator, sessions *session.Manager) (*Handler, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())
	zh := zh.New()
	uni := ut.New(zh, zh)
	trans, _ := uni.GetTranslator("zh")
	if err := zh_translations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, err
	}

	return &Handler{
		validate:    validate,
		config:      cfg,
		repository:  repo,
		translator:  trans,
		mailChannel: mailCh,
		redisClient: rdb,

		calendar:   cal,
		resolver:   resolver,
		aggregator: aggregator,
		sessions:   sessions,

		Mux: chi.NewRouter(),
	}, nil
}

func (h *Handler) RegisterRoutes() {
	h.Mux.Use(h.logger)
	h.Mux.Use(h.recoverer)

	// 认证相关
	h.Mux.Route("/auth", func(r chi.Router) {
		r.Post("/login", h.Login)
		r.Post("/logout", h.Logout)
		r.Route("/reset-password", func(r chi.Router) {
			r.Post("/require", h.RequireResetPassword)
			r.Post("/confirm", h.ConfirmResetPassword)
		})
	})

	// 以下 API 必须要在登录后才允许调用
	h.Mux.Group(func(r chi.Router) {
		r.Use(h.auth)
		r.Route("/my-info", func(r chi.Router) {
			r.Use(h.myInfo)
			r.Get("/", h.GetMyInfo)
			r.Patch("/password", h.UpdateMyPassword)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Post("/", h.CreateUser)
			r.Get("/", h.GetAllUserInfo) // 所有成员都有权限查看其他人的公开信息
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.userInfo)
				r.Get("/", h.GetUserInfo)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Patch("/", h.UpdateUser)
				r.With(h.preventOperateInitialAdmin).With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Delete("/", h.DeleteUser)
			})
		})

		r.Route("/sprints", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleExecutive})).Post("/", h.CreateSprintDefinition)
			r.Get("/", h.GetAllSprintDefinitions)
			r.Get("/current", h.GetCurrentSprintDefinition)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.sprintDefinition)
				r.Get("/", h.GetSprintDefinition)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleExecutive})).Patch("/", h.UpdateSprintDefinition)
				r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleExecutive})).Delete("/", h.DeleteSprintDefinition)
			})
		})

		r.Route("/teams", func(r chi.Router) {
			r.With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Post("/", h.CreateTeam)
			r.Get("/", h.GetAllTeams)
			r.Route("/{id}", func(r chi.Router) {
				r.Use(h.team)
				r.Get("/", h.GetTeam)
				r.With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Patch("/", h.UpdateTeam)
				r.With(h.RequiredRole([]domain.Role{domain.RoleExecutive})).Delete("/", h.DeleteTeam)

				r.Route("/board", func(r chi.Router) {
					r.Get("/", h.GetBoard)
					r.With(h.myInfo).With(h.preventLeavedMember).Put("/entries", h.PutBoardEntry)
					r.With(h.RequiredRole([]domain.Role{domain.RoleManager, domain.RoleExecutive})).Post("/remind", h.RemindIncompleteMembers)
				})
			})
		})
	})
}
