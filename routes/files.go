package routes

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"

	"saascribe-platform/utils"

	"github.com/gin-gonic/gin"
)

// FileServer is implemented by *services.FileStorage.
type FileServer interface {
	Verify(key, expires, signature string) error
	Open(key string) (*os.File, error)
}

// SetupFileRoutes serves stored objects behind pre-signed URLs.
func SetupFileRoutes(router gin.IRouter, files FileServer) {
	router.GET("/files/*key", func(c *gin.Context) {
		key := strings.TrimPrefix(c.Param("key"), "/")
		if err := files.Verify(key, c.Query("expires"), c.Query("signature")); err != nil {
			utils.RespondWithForbidden(c, "Invalid or expired link")
			return
		}

		f, err := files.Open(key)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				utils.RespondWithNotFound(c, "File not found")
				return
			}
			respondError(c, err)
			return
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			respondError(c, err)
			return
		}

		c.Header("Cache-Control", "private, no-store")
		if strings.HasSuffix(key, ".pdf") {
			c.Header("Content-Type", "application/pdf")
		}
		http.ServeContent(c.Writer, c.Request, path.Base(key), info.ModTime(), f)
	})
}
