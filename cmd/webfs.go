package cmd

import "io/fs"

// WebFS is set by main() before Execute() is called.
// It holds the embedded frontend build; nil means the server proxies to the
// frontend dev server instead.
var WebFS fs.FS
