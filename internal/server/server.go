package server

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"golang.org/x/time/rate"

	"tracker/internal/auth"
	"tracker/internal/models"
	"tracker/internal/storage/sqlite"
	"tracker/internal/tasks"
)

// Options wires the server to its services.
type Options struct {
	Store  *sqlite.Store
	Auth   *auth.Service
	Tasks  *tasks.Service
	Logger *slog.Logger

	// CookieSecure marks the session cookie Secure; enable behind HTTPS.
	CookieSecure bool
	// AuthRate and AuthBurst limit login and registration submissions per client IP.
	AuthRate  rate.Limit
	AuthBurst int
	// TrustedProxies lists the proxy IPs or CIDRs whose X-Forwarded-For is
	// believed. Empty means the peer address is always the client IP.
	TrustedProxies []string
}

// Server provides the HTML handlers for the task tracker.
type Server struct {
	engine       *gin.Engine
	store        *sqlite.Store
	auth         *auth.Service
	tasks        *tasks.Service
	logger       *slog.Logger
	cookieSecure bool
	authLimiter  gin.HandlerFunc
}

// New constructs the HTTP server with routes and middleware configured.
func New(opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.AuthRate <= 0 {
		opts.AuthRate = rate.Every(3 * time.Second)
	}
	if opts.AuthBurst <= 0 {
		opts.AuthBurst = 5
	}

	if gin.Mode() != gin.TestMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	if err := router.SetTrustedProxies(opts.TrustedProxies); err != nil {
		logger.Error("invalid trusted proxies, trusting none", slog.String("error", err.Error()))
		_ = router.SetTrustedProxies(nil)
	}
	router.Use(gin.Recovery())
	router.Use(gin.LoggerWithWriter(gin.DefaultWriter, "/healthz", "/metrics"))
	router.Use(metricsMiddleware())
	router.SetHTMLTemplate(mustParseTemplates())

	srv := &Server{
		engine:       router,
		store:        opts.Store,
		auth:         opts.Auth,
		tasks:        opts.Tasks,
		logger:       logger,
		cookieSecure: opts.CookieSecure,
	}
	srv.authLimiter = srv.rateLimiter(opts.AuthRate, opts.AuthBurst)

	srv.registerRoutes()
	return srv
}

// Engine exposes the underlying Gin engine.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// registerRoutes wires all page, form and operational handlers together.
func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealth)
	s.engine.GET("/metrics", metricsHandler())

	pages := s.engine.Group("")
	pages.Use(s.loadIdentity)
	{
		pages.GET("/login", s.redirectIfAuthenticated, s.handleLoginPage)
		pages.POST("/login", s.authLimiter, s.handleLogin)
		pages.GET("/register", s.redirectIfAuthenticated, s.handleRegisterPage)
		pages.POST("/register", s.authLimiter, s.handleRegister)
		pages.POST("/logout", s.handleLogout)

		protected := pages.Group("")
		protected.Use(s.requireAuth)
		{
			protected.GET("/", s.handleListTasks)
			protected.GET("/tasks/new", s.handleNewTaskPage)
			protected.POST("/tasks/new", s.handleCreateTask)
			protected.GET("/tasks/:id", s.handleViewTask)
			protected.GET("/tasks/:id/edit", s.handleEditTaskPage)
			protected.POST("/tasks/:id/edit", s.handleUpdateTask)
			protected.GET("/tasks/:id/delete", s.handleDeleteTaskPage)
			protected.POST("/tasks/:id/delete", s.handleDeleteTask)
		}
	}

	s.mountStatic()
}

// handleHealth reports whether the database answers.
func (s *Server) handleHealth(c *gin.Context) {
	if s.store != nil {
		if err := s.store.Ping(c.Request.Context()); err != nil {
			s.logger.Error("health check failed", slog.String("error", err.Error()))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// parseID converts a path parameter to int64. Malformed ids cannot name a task,
// so they are answered the same way as unknown ones.
func (s *Server) parseID(c *gin.Context, name string) (int64, bool) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		s.renderError(c, models.ErrNotFound)
		return 0, false
	}
	return id, true
}

// errBadForm marks a request body that could not be decoded as a form.
var errBadForm = errors.New("malformed form submission")

// bindForm decodes submitted form values into dst whatever the request's
// Content-Type. Constraints are checked by the services after normalizing.
func bindForm(c *gin.Context, dst any) error {
	if err := c.Request.ParseForm(); err != nil {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	if err := binding.MapFormWithTag(dst, c.Request.Form, "form"); err != nil {
		return fmt.Errorf("%w: %v", errBadForm, err)
	}
	return nil
}

// renderError maps a service error to a page and logs unexpected failures.
func (s *Server) renderError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, models.ErrNotFound):
		c.HTML(http.StatusNotFound, "error.html", s.page(c, "Not found", gin.H{
			"Status":  http.StatusNotFound,
			"Message": "The page or task you asked for does not exist.",
		}))
	case errors.Is(err, tasks.ErrAuthRequired):
		redirectToLogin(c)
	case errors.Is(err, errBadForm):
		s.logger.Debug("bad form", slog.String("path", c.FullPath()), slog.String("error", err.Error()))
		c.HTML(http.StatusBadRequest, "error.html", s.page(c, "Bad request", gin.H{
			"Status":  http.StatusBadRequest,
			"Message": "The form could not be read. Please try again.",
		}))
	default:
		s.logger.Error("request failed",
			slog.String("path", c.FullPath()),
			slog.String("method", c.Request.Method),
			slog.String("error", err.Error()))
		c.HTML(http.StatusInternalServerError, "error.html", s.page(c, "Server error", gin.H{
			"Status":  http.StatusInternalServerError,
			"Message": "Something went wrong. Please try again.",
		}))
	}
	c.Abort()
}

// page builds template data shared by every page.
func (s *Server) page(c *gin.Context, title string, data gin.H) gin.H {
	if data == nil {
		data = gin.H{}
	}
	data["PageTitle"] = title
	if _, ok := data["Errors"]; !ok {
		data["Errors"] = map[string]string{}
	}
	if id, ok := identityFrom(c); ok {
		data["User"] = id
	}
	return data
}
