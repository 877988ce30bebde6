// Package bundle builds the static frontend: it resolves the scripts, styles
// and images referenced by index.html, applies build-time defines, rewrites
// relative module imports and writes content-hashed files to an output
// directory.
package bundle

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/shaharia-lab/userhub/internal/config"
)

// IndexFile is the HTML document every build starts from.
const IndexFile = "index.html"

// PublicDir holds files copied to the output root unchanged.
const PublicDir = "public"

var (
	// ErrMountPointMissing is returned when index.html has no element with the mount id.
	ErrMountPointMissing = errors.New("mount point element not found in index.html")
	// ErrImportCycle is returned when relative module imports form a cycle.
	ErrImportCycle = errors.New("import cycle detected")
	// ErrMissingSource is returned when a local reference does not resolve to a file.
	ErrMissingSource = errors.New("referenced source file not found")
	// ErrUnsafeOutDir is returned for output directories that must never be emptied.
	ErrUnsafeOutDir = errors.New("refusing to use unsafe output directory")
	// ErrOutputConflict is returned when a fixed-name output would overwrite
	// a different file.
	ErrOutputConflict = errors.New("output path already used by another file")
)

// Kind classifies an emitted file.
type Kind string

// Emitted file kinds.
const (
	KindEntry  Kind = "entry"
	KindChunk  Kind = "chunk"
	KindAsset  Kind = "asset"
	KindPublic Kind = "public"
	KindHTML   Kind = "html"
)

// Options controls a single build.
type Options struct {
	OutDir  string
	MountID string

	// Root is the on-disk directory src is read from. The build refuses an
	// OutDir that equals or contains it. Empty when src is not a directory.
	Root string

	EntryFileNames string
	ChunkFileNames string
	AssetFileNames string

	// Defines maps identifiers to string constants substituted into scripts.
	Defines map[string]string

	// Sourcemap is accepted for config compatibility. Source maps are not emitted.
	Sourcemap bool

	Logger *slog.Logger
}

// OptionsFromConfig derives build options from the frontend config, resolving
// defines against getenv.
func OptionsFromConfig(cfg *config.FrontendConfig, getenv func(string) string) Options {
	return Options{
		OutDir:         cfg.Build.OutDir,
		MountID:        cfg.MountID,
		Root:           cfg.Root,
		EntryFileNames: cfg.Build.EntryFileNames,
		ChunkFileNames: cfg.Build.ChunkFileNames,
		AssetFileNames: cfg.Build.AssetFileNames,
		Defines:        cfg.ResolveDefines(getenv),
		Sourcemap:      cfg.Build.Sourcemap,
	}
}

// File describes one emitted file. Paths are slash separated; Output is
// relative to the output directory.
type File struct {
	Source string `json:"source"`
	Output string `json:"output"`
	Kind   Kind   `json:"kind"`
	Size   int64  `json:"size"`
}

// Result summarises a finished build.
type Result struct {
	OutDir   string        `json:"out_dir"`
	Files    []File        `json:"files"`
	Duration time.Duration `json:"duration"`
}

// Output returns the emitted path for a source file, if it was emitted.
func (r *Result) Output(source string) (string, bool) {
	for _, f := range r.Files {
		if f.Source == source {
			return f.Output, true
		}
	}
	return "", false
}

// Build reads index.html and everything it references from src and writes the
// bundle to opts.OutDir, replacing its previous contents.
func Build(ctx context.Context, src fs.FS, opts Options) (*Result, error) {
	start := time.Now()
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	if err := config.CheckOutDir(opts.OutDir, opts.Root); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsafeOutDir, err)
	}
	if opts.Sourcemap {
		logger.Warn("sourcemap output is not supported, ignoring build.sourcemap")
	}

	b := &builder{
		ctx:     ctx,
		src:     src,
		opts:    opts,
		outDir:  opts.OutDir,
		defines: newDefineReplacer(opts.Defines),
		emitted: make(map[string]string),
		written: make(map[string]string),
		active:  make(map[string]bool),
	}

	if err := os.RemoveAll(b.outDir); err != nil {
		return nil, fmt.Errorf("cleaning output directory: %w", err)
	}
	if err := os.MkdirAll(b.outDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	if err := b.copyPublic(); err != nil {
		return nil, err
	}
	if err := b.buildIndex(); err != nil {
		return nil, err
	}

	res := &Result{OutDir: b.outDir, Files: b.files, Duration: time.Since(start)}
	logger.Info("frontend build complete",
		"out_dir", b.outDir,
		"files", len(res.Files),
		"duration", res.Duration)
	return res, nil
}
