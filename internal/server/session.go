package server

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"

	"tracker/internal/auth"
	"tracker/internal/models"
)

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "tracker_session"

const identityKey = "tracker.identity"

func readSessionCookie(r *http.Request) (string, bool) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie == nil {
		return "", false
	}
	value := strings.TrimSpace(cookie.Value)
	if value == "" {
		return "", false
	}
	return value, true
}

func (s *Server) writeSessionCookie(c *gin.Context, token string) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(s.auth.SessionTTL().Seconds()),
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

func (s *Server) clearSessionCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   s.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// loadIdentity resolves the session cookie, if any, and stores the identity on the context.
func (s *Server) loadIdentity(c *gin.Context) {
	token, ok := readSessionCookie(c.Request)
	if !ok {
		c.Next()
		return
	}

	id, err := s.auth.ResolveSession(c.Request.Context(), token)
	switch {
	case errors.Is(err, auth.ErrSessionInvalid):
		s.clearSessionCookie(c)
	case err != nil:
		s.renderError(c, err)
		return
	default:
		c.Set(identityKey, id)
	}
	c.Next()
}

func identityFrom(c *gin.Context) (models.Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return models.Identity{}, false
	}
	id, ok := v.(models.Identity)
	if !ok || id.Anonymous() {
		return models.Identity{}, false
	}
	return id, true
}

// requireAuth sends anonymous visitors to the login page, remembering where they were going.
func (s *Server) requireAuth(c *gin.Context) {
	if _, ok := identityFrom(c); !ok {
		redirectToLogin(c)
		c.Abort()
		return
	}
	c.Next()
}

// redirectIfAuthenticated skips the login and registration pages for signed-in users.
func (s *Server) redirectIfAuthenticated(c *gin.Context) {
	if _, ok := identityFrom(c); ok {
		c.Redirect(http.StatusSeeOther, "/")
		c.Abort()
		return
	}
	c.Next()
}

func redirectToLogin(c *gin.Context) {
	target := "/login"
	if c.Request.Method == http.MethodGet {
		if next := c.Request.URL.RequestURI(); next != "/" {
			target += "?next=" + url.QueryEscape(next)
		}
	}
	c.Redirect(http.StatusSeeOther, target)
}

// safeNext returns raw when it is a path on this site, otherwise the task list.
func safeNext(raw string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return "/"
	}
	return raw
}
