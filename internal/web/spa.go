// Package web serves a built single-page application from an fs.FS.
package web

import (
	"io/fs"
	"net/http"
	"path"
	"strings"
)

// SPAHandler serves files from fsys. Requests for "/" and for paths that do
// not resolve to a regular file get index.html so the client-side router can
// take over.
func SPAHandler(fsys fs.FS) http.Handler {
	fileServer := http.FileServer(http.FS(fsys))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name == "" || !isFile(fsys, name) {
			// Not a file. Serve index.html for client-side routing.
			r2 := r.Clone(r.Context())
			r2.URL.Path = "/"
			fileServer.ServeHTTP(w, r2)
			return
		}
		fileServer.ServeHTTP(w, r)
	})
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}
