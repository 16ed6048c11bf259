package server

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"tracker/internal/models"
)

//go:embed assets
var assetsFS embed.FS

// mountStatic serves the embedded stylesheet and answers unknown paths with the not-found page.
func (s *Server) mountStatic() {
	assets, err := fs.Sub(assetsFS, "assets")
	if err != nil {
		s.logger.Warn("embedded assets missing", "error", err)
	} else {
		s.engine.StaticFS("/static", http.FS(assets))
	}

	s.engine.NoRoute(s.loadIdentity, func(c *gin.Context) {
		s.renderError(c, models.ErrNotFound)
	})
}
