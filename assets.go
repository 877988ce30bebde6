//go:build !dev

package main

import (
	"embed"
	"fmt"
	"io/fs"
)

// The release binary ships the output of "userhub build". Run it before
// "go build" whenever frontend/src changes.
//
//go:embed frontend/dist
var embeddedFrontend embed.FS

// getFrontendFS returns the embedded build rooted at its index.html.
func getFrontendFS() (fs.FS, error) {
	dist, err := fs.Sub(embeddedFrontend, "frontend/dist")
	if err != nil {
		return nil, err
	}
	if _, err := fs.Stat(dist, "index.html"); err != nil {
		return nil, fmt.Errorf("embedded frontend has no index.html: %w", err)
	}
	return dist, nil
}
