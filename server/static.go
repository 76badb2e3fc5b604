package server

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"strings"
)

// spaHandler serves files from root and answers unknown paths with
// index.html so client-side routes survive a reload.
type spaHandler struct {
	root  fs.FS
	files http.Handler
}

// newSPAHandler returns nil when dir is not a readable directory.
func newSPAHandler(dir string) http.Handler {
	if dir == "" {
		return nil
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil
	}
	root := os.DirFS(dir)
	return &spaHandler{root: root, files: http.FileServerFS(root)}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
	if name == "" {
		name = "."
	}
	if _, err := fs.Stat(h.root, name); errors.Is(err, fs.ErrNotExist) {
		http.ServeFileFS(w, r, h.root, "index.html")
		return
	}
	h.files.ServeHTTP(w, r)
}
