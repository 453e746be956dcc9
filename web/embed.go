package web

import (
	"embed"
	"io/fs"
)

//go:embed index.html
var uiFS embed.FS

// UI returns the embedded admin page filesystem.
func UI() fs.FS {
	return uiFS
}
