package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
)

type builder struct {
	ctx     context.Context
	src     fs.FS
	opts    Options
	outDir  string
	defines *defineReplacer

	// emitted maps a source path to its output path.
	emitted map[string]string
	// written maps output paths already on disk to their content digest.
	written map[string]string
	// active holds the scripts currently being processed, for cycle detection.
	active map[string]bool
	files  []File
}

func (b *builder) copyPublic() error {
	if _, err := fs.Stat(b.src, PublicDir); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fs.WalkDir(b.src, PublicDir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if err := b.ctx.Err(); err != nil {
			return err
		}
		data, err := fs.ReadFile(b.src, p)
		if err != nil {
			return fmt.Errorf("reading %s: %w", p, err)
		}
		rel := strings.TrimPrefix(p, PublicDir+"/")
		_, err = b.write(p, rel, KindPublic, data)
		return err
	})
}

// asset copies a referenced file under the asset template.
func (b *builder) asset(p string) (string, error) {
	if out, ok := b.emitted[p]; ok {
		return out, nil
	}
	data, err := fs.ReadFile(b.src, p)
	if err != nil {
		return "", fmt.Errorf("reading asset %s: %w", p, err)
	}
	out, err := b.write(p, outputName(b.opts.AssetFileNames, p, data), KindAsset, data)
	if err != nil {
		return "", err
	}
	b.emitted[p] = out
	return out, nil
}

// script processes an entry or chunk and everything it imports, returning the
// emitted path.
func (b *builder) script(p string, kind Kind) (string, error) {
	if out, ok := b.emitted[p]; ok {
		return out, nil
	}
	if b.active[p] {
		return "", fmt.Errorf("%w: %s", ErrImportCycle, p)
	}
	if err := b.ctx.Err(); err != nil {
		return "", err
	}
	b.active[p] = true
	defer delete(b.active, p)

	data, err := fs.ReadFile(b.src, p)
	if err != nil {
		return "", fmt.Errorf("reading script %s: %w", p, err)
	}
	code := b.defines.Replace(string(data))

	tmpl := b.opts.ChunkFileNames
	if kind == KindEntry {
		tmpl = b.opts.EntryFileNames
	}

	// Imports are resolved first: the importer's hash covers the rewritten
	// specifiers.
	code, err = rewriteImports(code, func(spec string) (string, error) {
		dep, err := b.resolveModule(p, spec)
		if err != nil {
			return "", err
		}
		out, err := b.script(dep, KindChunk)
		if err != nil {
			return "", err
		}
		return importSpecifier(tmpl, p, out), nil
	})
	if err != nil {
		return "", err
	}
	out, err := b.write(p, outputName(tmpl, p, []byte(code)), kind, []byte(code))
	if err != nil {
		return "", err
	}
	b.emitted[p] = out
	return out, nil
}

// resolveModule resolves a relative import specifier against the importing file.
func (b *builder) resolveModule(importer, spec string) (string, error) {
	base := path.Join(path.Dir(importer), stripQuery(spec))
	for _, candidate := range []string{base, base + ".js", base + ".mjs", path.Join(base, "index.js")} {
		if !fs.ValidPath(candidate) {
			break
		}
		if isFile(b.src, candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q imported from %s", ErrMissingSource, spec, importer)
}

// write stores data under out and returns the path actually used. Identical
// content shares one file. When out already holds different content, entries,
// chunks and assets move to the first free numbered name (util.js, util2.js,
// ...); public files and index.html keep fixed names and fail instead.
func (b *builder) write(source, out string, kind Kind, data []byte) (string, error) {
	sum := sha256.Sum256(data)
	digest := hex.EncodeToString(sum[:])

	if prev, taken := b.written[out]; taken && prev != digest {
		if kind == KindPublic || kind == KindHTML {
			return "", fmt.Errorf("%w: %s from %s", ErrOutputConflict, out, source)
		}
		out = b.freeName(out, digest)
	}

	if _, done := b.written[out]; !done {
		dst := filepath.Join(b.outDir, filepath.FromSlash(out))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return "", fmt.Errorf("creating directory for %s: %w", out, err)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil { //nolint:gosec // build output is world-readable
			return "", fmt.Errorf("writing %s: %w", out, err)
		}
		b.written[out] = digest
	}
	b.files = append(b.files, File{Source: source, Output: out, Kind: kind, Size: int64(len(data))})
	return out, nil
}

// freeName returns the first numbered variant of out that is unused or
// already holds content with the given digest.
func (b *builder) freeName(out, digest string) string {
	ext := path.Ext(out)
	stem := strings.TrimSuffix(out, ext)
	for n := 2; ; n++ {
		candidate := stem + strconv.Itoa(n) + ext
		if prev, taken := b.written[candidate]; !taken || prev == digest {
			return candidate
		}
	}
}

// outputName expands a file name template for the source path p. [name] is
// the base name without extension, [ext] the extension without the dot and
// [hash] the first 8 hex characters of the SHA-256 of data.
func outputName(tmpl, p string, data []byte) string {
	base := path.Base(p)
	ext := path.Ext(base)
	sum := sha256.Sum256(data)

	return strings.NewReplacer(
		"[name]", strings.TrimSuffix(base, ext),
		"[hash]", hex.EncodeToString(sum[:])[:8],
		"[ext]", strings.TrimPrefix(ext, "."),
	).Replace(tmpl)
}

// importSpecifier returns the specifier a script emitted under tmpl uses to
// import target. Paths are relative to the output directory.
func importSpecifier(tmpl, importer, target string) string {
	dir := path.Dir(tmpl)
	if strings.Contains(dir, "[hash]") {
		// The importer's directory depends on its own hash.
		return "/" + target
	}
	dir = path.Dir(outputName(tmpl, importer, nil))
	rel, err := filepath.Rel(filepath.FromSlash(dir), filepath.FromSlash(target))
	if err != nil {
		return "/" + target
	}
	rel = filepath.ToSlash(rel)
	if !strings.HasPrefix(rel, "../") {
		rel = "./" + rel
	}
	return rel
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && !info.IsDir()
}

func stripQuery(ref string) string {
	if i := strings.IndexAny(ref, "?#"); i >= 0 {
		return ref[:i]
	}
	return ref
}
