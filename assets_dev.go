//go:build dev

package main

import "io/fs"

// getFrontendFS returns nil in dev mode, signalling the server to proxy to the
// frontend dev server (FRONTEND_DEV_URL, "userhub dev" on :3000 by default).
func getFrontendFS() (fs.FS, error) {
	return nil, nil
}
