package api

import (
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// registerFrontendHandler serves the embedded admin page. Unknown paths
// outside /api fall back to index.html.
func registerFrontendHandler(e *echo.Echo, uiFS fs.FS) {
	fileServer := http.FileServer(http.FS(uiFS))

	e.GET("/*", func(c echo.Context) error {
		path := c.Request().URL.Path

		if strings.HasPrefix(path, "/api/") {
			return echo.ErrNotFound
		}

		if path != "/" {
			if file, err := uiFS.Open(strings.TrimPrefix(path, "/")); err == nil {
				file.Close()
				fileServer.ServeHTTP(c.Response(), c.Request())
				return nil
			}
		}

		index, err := uiFS.Open("index.html")
		if err != nil {
			return echo.ErrNotFound
		}
		defer index.Close()

		return c.Stream(http.StatusOK, "text/html; charset=utf-8", index)
	})
}
