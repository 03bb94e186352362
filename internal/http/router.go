package http

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/example/taskplanner/internal/application"
)

// RouterConfig carries the handlers mounted by NewRouter.
type RouterConfig struct {
	Sessions    SessionValidator
	Auth        *AuthHandler
	Records     *RecordHandler
	Tasks       *TaskHandler
	Templates   *TemplateHandler
	Admin       *AdminHandler
	Search      *SearchHandler
	Chat        *ChatHandler
	CORSOrigins []string
	Logger      *slog.Logger
}

// NewRouter builds the echo instance serving the API.
func NewRouter(cfg RouterConfig) *echo.Echo {
	logger := defaultLogger(cfg.Logger)
	resp := newResponder(logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = resp.handleEchoError

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(RequestLogger(logger))
	if len(cfg.CORSOrigins) > 0 {
		e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
			AllowOrigins:     cfg.CORSOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
			AllowHeaders:     []string{echo.HeaderAuthorization, echo.HeaderContentType},
			AllowCredentials: true,
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	session := RequireSession(cfg.Sessions, logger)
	member := RequireRole(application.RoleMember, logger)
	admin := RequireRole(application.RoleAdmin, logger)

	if cfg.Auth != nil {
		e.POST("/auth/login", cfg.Auth.Login)
		e.POST("/auth/logout", cfg.Auth.Logout)
		e.GET("/auth/session", cfg.Auth.Session, session)
	}

	if r := cfg.Records; r != nil {
		if t := cfg.Tasks; t != nil {
			g := e.Group("/tasks", session, member)
			g.GET("", t.List)
			g.POST("", r.Create(application.EntityTasks))
			g.GET("/:id", t.Get)
			g.PUT("/:id", r.Update(application.EntityTasks))
			g.DELETE("/:id", r.Delete(application.EntityTasks))
			g.POST("/:id/archive", t.Archive)
			g.POST("/:id/unarchive", t.Unarchive)
			g.POST("/:id/complete", t.Complete)
		}

		crud := func(g *echo.Group, entity string) {
			g.POST("", r.Create(entity))
			g.GET("/:id", r.Get(entity))
			g.PUT("/:id", r.Update(entity))
			g.DELETE("/:id", r.Delete(entity))
		}

		calendar := e.Group("/calendar", session, member)
		calendar.GET("", r.List(application.EntityCalendar, ""))
		crud(calendar, application.EntityCalendar)

		reminders := e.Group("/reminders", session, member)
		reminders.GET("", r.List(application.EntityReminders, "", flagQuery("active_only", "is_active", true)))
		reminders.GET("/upcoming", r.Upcoming)
		crud(reminders, application.EntityReminders)

		knowledge := e.Group("/knowledge", session, member)
		knowledge.GET("", r.List(application.EntityKnowledge, "", equalsQuery("category", "category")))
		knowledge.GET("/search/:term", r.List(application.EntityKnowledge, "", termPath("title", "content")))
		crud(knowledge, application.EntityKnowledge)

		documents := e.Group("/documents", session, member)
		documents.GET("", r.List(application.EntityDocuments, "", equalsQuery("file_type", "file_type")))
		documents.GET("/search/:term", r.List(application.EntityDocuments, "", termPath("title", "description")))
		crud(documents, application.EntityDocuments)

		feedback := e.Group("/feedback", session)
		feedback.POST("", r.Create(application.EntityFeedback), member)
		feedback.GET("", r.List(application.EntityFeedback, ""), admin)
		feedback.DELETE("/:id", r.Delete(application.EntityFeedback), admin)

		templates := e.Group("/task-templates", session, member)
		templates.GET("", r.List(application.EntityTaskTemplates, "templates"))
		if cfg.Templates != nil {
			templates.POST("/bulk-import", cfg.Templates.BulkImport)
		}
		crud(templates, application.EntityTaskTemplates)

		team := e.Group("/team", session)
		team.GET("", r.List(application.EntityTeam, "team"), member)
		team.POST("", r.Create(application.EntityTeam), admin)
		team.PUT("/:id", r.Update(application.EntityTeam), admin)
		team.DELETE("/:id", r.Delete(application.EntityTeam), admin)
	}

	if a := cfg.Admin; a != nil {
		g := e.Group("/admin", session, admin)
		g.GET("/login-attempts", a.LoginAttempts)
		g.GET("/access-codes", a.AccessCodes)
		g.POST("/access-codes", a.CreateAccessCode)
		g.PUT("/access-codes/:id", a.UpdateAccessCode)
	}

	if s := cfg.Search; s != nil {
		g := e.Group("/search", session, member)
		g.POST("", s.Search)
		g.POST("/ai", s.AISearch)
	}

	if ch := cfg.Chat; ch != nil {
		g := e.Group("/chat", session, member)
		g.POST("", ch.Send)
		g.GET("/history", ch.History)
		g.DELETE("/history", ch.Clear)
	}

	return e
}
