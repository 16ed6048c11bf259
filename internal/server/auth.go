package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/auth"
	"tracker/internal/models"
)

type loginForm struct {
	Username string `form:"username"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// handleLoginPage renders the login form.
func (s *Server) handleLoginPage(c *gin.Context) {
	c.HTML(http.StatusOK, "login.html", s.page(c, "Login", gin.H{
		"Next":     safeNext(c.Query("next")),
		"Username": "",
	}))
}

// handleLogin checks credentials and starts a session.
func (s *Server) handleLogin(c *gin.Context) {
	var form loginForm
	if err := bindForm(c, &form); err != nil {
		s.renderError(c, err)
		return
	}
	next := safeNext(form.Next)

	token, _, err := s.auth.Login(c.Request.Context(), auth.LoginInput{Username: form.Username, Password: form.Password})
	if errors.Is(err, auth.ErrInvalidCredentials) {
		authEvents.WithLabelValues("login", "rejected").Inc()
		c.HTML(http.StatusUnauthorized, "login.html", s.page(c, "Login", gin.H{
			"Next":     next,
			"Username": form.Username,
			"Error":    "Please enter a correct username and password. Note that both fields may be case-sensitive.",
		}))
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}

	authEvents.WithLabelValues("login", "ok").Inc()
	s.writeSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, next)
}

// handleRegisterPage renders the registration form.
func (s *Server) handleRegisterPage(c *gin.Context) {
	c.HTML(http.StatusOK, "register.html", s.page(c, "Register", gin.H{"Username": ""}))
}

// handleRegister creates the account and signs the new user in.
func (s *Server) handleRegister(c *gin.Context) {
	var form auth.RegisterInput
	if err := bindForm(c, &form); err != nil {
		s.renderError(c, err)
		return
	}

	ctx := c.Request.Context()
	user, err := s.auth.Register(ctx, form)
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		authEvents.WithLabelValues("register", "rejected").Inc()
		c.HTML(http.StatusUnprocessableEntity, "register.html", s.page(c, "Register", gin.H{
			"Username": form.Username,
			"Errors":   verr.Fields,
		}))
		return
	}
	if err != nil {
		s.renderError(c, err)
		return
	}

	token, _, err := s.auth.StartSession(ctx, user)
	if err != nil {
		s.renderError(c, err)
		return
	}

	authEvents.WithLabelValues("register", "ok").Inc()
	s.writeSessionCookie(c, token)
	c.Redirect(http.StatusSeeOther, "/")
}

// handleLogout revokes the current session and clears the cookie.
func (s *Server) handleLogout(c *gin.Context) {
	if token, ok := readSessionCookie(c.Request); ok {
		if err := s.auth.EndSession(c.Request.Context(), token); err != nil {
			s.logger.Warn("end session failed", slog.String("error", err.Error()))
		}
	}
	authEvents.WithLabelValues("logout", "ok").Inc()
	s.clearSessionCookie(c)
	c.Redirect(http.StatusSeeOther, "/login")
}
