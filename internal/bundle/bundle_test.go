package bundle

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaharia-lab/userhub/internal/config"
)

const testIndex = `<!doctype html>
<html><head>
<link rel="icon" href="/favicon.ico">
<link rel="stylesheet" href="./style.css">
<script type="module" src="/main.js"></script>
<script src="https://cdn.example.com/lib.js"></script>
</head><body><div id="app"></div>
<img src="data:image/png;base64,AAAA"><img src="images/logo.png">
</body></html>`

func testSource() fstest.MapFS {
	return fstest.MapFS{
		"index.html":         {Data: []byte(testIndex)},
		"public/favicon.ico": {Data: []byte("ico")},
		"style.css":          {Data: []byte("body{margin:0}")},
		"images/logo.png":    {Data: []byte("png-bytes")},
		"main.js": {Data: []byte(`import { api } from './api.js'
import './lib/util'
const base = __API_BASE_URL__
console.log("__API_BASE_URL__", base, api)
`)},
		"api.js":      {Data: []byte("export const api = () => fetch(__API_BASE_URL__ + '/users')\n")},
		"lib/util.js": {Data: []byte("export default 1\n")},
	}
}

func testOptions(t *testing.T) Options {
	t.Helper()
	cfg := config.DefaultFrontendConfig()
	opts := OptionsFromConfig(cfg, func(string) string { return "" })
	opts.OutDir = filepath.Join(t.TempDir(), "dist")
	return opts
}

func readOut(t *testing.T, res *Result, source string) string {
	t.Helper()
	out, ok := res.Output(source)
	require.True(t, ok, "no output for %s", source)
	data, err := os.ReadFile(filepath.Join(res.OutDir, filepath.FromSlash(out)))
	require.NoError(t, err)
	return string(data)
}

func TestBuild(t *testing.T) {
	opts := testOptions(t)
	res, err := Build(context.Background(), testSource(), opts)
	require.NoError(t, err)

	kinds := map[string]Kind{}
	for _, f := range res.Files {
		kinds[f.Source] = f.Kind
		assert.Positive(t, f.Size, f.Source)
	}
	assert.Equal(t, map[string]Kind{
		"public/favicon.ico": KindPublic,
		"style.css":          KindAsset,
		"images/logo.png":    KindAsset,
		"main.js":            KindEntry,
		"api.js":             KindChunk,
		"lib/util.js":        KindChunk,
		"index.html":         KindHTML,
	}, kinds)

	hashed := regexp.MustCompile(`^assets/(main|api|util|style|logo)-[0-9a-f]{8}\.(js|css|png)$`)
	for _, src := range []string{"main.js", "api.js", "lib/util.js", "style.css", "images/logo.png"} {
		out, _ := res.Output(src)
		assert.Regexp(t, hashed, out)
	}
	favicon, _ := res.Output("public/favicon.ico")
	assert.Equal(t, "favicon.ico", favicon)

	main := readOut(t, res, "main.js")
	assert.Regexp(t, `import \{ api \} from '\./api-[0-9a-f]{8}\.js'`, main)
	assert.Regexp(t, `import '\./util-[0-9a-f]{8}\.js'`, main)
	assert.Contains(t, main, `const base = "/api"`)
	assert.Contains(t, main, `console.log("__API_BASE_URL__", base, api)`)

	assert.Contains(t, readOut(t, res, "api.js"), `fetch("/api" + '/users')`)

	index := readOut(t, res, "index.html")
	mainOut, _ := res.Output("main.js")
	styleOut, _ := res.Output("style.css")
	assert.Contains(t, index, `src="/`+mainOut+`"`)
	assert.Contains(t, index, `href="/`+styleOut+`"`)
	assert.Contains(t, index, `href="/favicon.ico"`)
	assert.Contains(t, index, `src="https://cdn.example.com/lib.js"`)
	assert.Contains(t, index, `src="data:image/png;base64,AAAA"`)
	assert.Contains(t, index, `<div id="app"></div>`)
}

func TestBuild_APIBaseURLFromEnv(t *testing.T) {
	opts := OptionsFromConfig(config.DefaultFrontendConfig(), func(k string) string {
		if k == config.APIBaseURLEnv {
			return "https://api.example.com/v1"
		}
		return ""
	})
	opts.OutDir = filepath.Join(t.TempDir(), "dist")

	res, err := Build(context.Background(), testSource(), opts)
	require.NoError(t, err)
	assert.Contains(t, readOut(t, res, "main.js"), `const base = "https://api.example.com/v1"`)
}

func TestBuild_Deterministic(t *testing.T) {
	first, err := Build(context.Background(), testSource(), testOptions(t))
	require.NoError(t, err)
	second, err := Build(context.Background(), testSource(), testOptions(t))
	require.NoError(t, err)

	for _, f := range first.Files {
		out, ok := second.Output(f.Source)
		require.True(t, ok)
		assert.Equal(t, f.Output, out, f.Source)
	}
}

func TestBuild_ChangedChunkChangesImporterHash(t *testing.T) {
	first, err := Build(context.Background(), testSource(), testOptions(t))
	require.NoError(t, err)

	src := testSource()
	src["lib/util.js"] = &fstest.MapFile{Data: []byte("export default 2\n")}
	second, err := Build(context.Background(), src, testOptions(t))
	require.NoError(t, err)

	a, _ := first.Output("main.js")
	b, _ := second.Output("main.js")
	assert.NotEqual(t, a, b)
	a, _ = first.Output("api.js")
	b, _ = second.Output("api.js")
	assert.Equal(t, a, b)
}

func TestBuild_CleansOutDir(t *testing.T) {
	opts := testOptions(t)
	require.NoError(t, os.MkdirAll(opts.OutDir, 0o755))
	stale := filepath.Join(opts.OutDir, "stale.js")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o600))

	_, err := Build(context.Background(), testSource(), opts)
	require.NoError(t, err)
	assert.NoFileExists(t, stale)
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(fstest.MapFS, *Options)
		wantErr error
	}{
		{
			name: "mount point missing",
			mutate: func(_ fstest.MapFS, o *Options) {
				o.MountID = "root"
			},
			wantErr: ErrMountPointMissing,
		},
		{
			name: "missing script",
			mutate: func(src fstest.MapFS, _ *Options) {
				delete(src, "main.js")
			},
			wantErr: ErrMissingSource,
		},
		{
			name: "missing import",
			mutate: func(src fstest.MapFS, _ *Options) {
				delete(src, "lib/util.js")
			},
			wantErr: ErrMissingSource,
		},
		{
			name: "missing asset",
			mutate: func(src fstest.MapFS, _ *Options) {
				delete(src, "style.css")
			},
			wantErr: ErrMissingSource,
		},
		{
			name: "missing index",
			mutate: func(src fstest.MapFS, _ *Options) {
				delete(src, "index.html")
			},
			wantErr: ErrMissingSource,
		},
		{
			name: "import cycle",
			mutate: func(src fstest.MapFS, _ *Options) {
				src["lib/util.js"] = &fstest.MapFile{Data: []byte("import '../main.js'\n")}
			},
			wantErr: ErrImportCycle,
		},
		{
			name: "reference escapes source root",
			mutate: func(src fstest.MapFS, _ *Options) {
				src["index.html"] = &fstest.MapFile{Data: []byte(`<div id="app"></div><script src="../secret.js"></script>`)}
			},
			wantErr: ErrMissingSource,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := testSource()
			opts := testOptions(t)
			tt.mutate(src, &opts)
			_, err := Build(context.Background(), src, opts)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestBuild_UnsafeOutDir(t *testing.T) {
	for _, dir := range []string{"", "/", ".", "./", ".."} {
		opts := testOptions(t)
		opts.OutDir = dir
		_, err := Build(context.Background(), testSource(), opts)
		assert.ErrorIs(t, err, ErrUnsafeOutDir, "out dir %q", dir)
	}
}

func TestBuild_OutDirContainingSourcesKeepsThem(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "frontend", "src")
	for name, f := range testSource() {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, f.Data, 0o600))
	}

	for _, outDir := range []string{root, filepath.Join(base, "frontend"), base} {
		opts := testOptions(t)
		opts.Root = root
		opts.OutDir = outDir
		_, err := Build(context.Background(), os.DirFS(root), opts)
		assert.ErrorIs(t, err, ErrUnsafeOutDir, "out dir %q", outDir)
		assert.FileExists(t, filepath.Join(root, "main.js"))
	}

	opts := testOptions(t)
	opts.Root = root
	opts.OutDir = filepath.Join(base, "frontend", "dist")
	_, err := Build(context.Background(), os.DirFS(root), opts)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(root, "main.js"))
}

func TestBuild_SameOutputNameDifferentSources(t *testing.T) {
	src := testSource()
	src["main.js"] = &fstest.MapFile{Data: []byte("import './a/util.js'\nimport './b/util.js'\nimport './c/util.js'\n")}
	src["a/util.js"] = &fstest.MapFile{Data: []byte("export const who = 'a'\n")}
	src["b/util.js"] = &fstest.MapFile{Data: []byte("export const who = 'b'\n")}
	src["c/util.js"] = &fstest.MapFile{Data: []byte("export const who = 'a'\n")}

	opts := testOptions(t)
	opts.ChunkFileNames = "assets/[name].js"
	res, err := Build(context.Background(), src, opts)
	require.NoError(t, err)

	outA, _ := res.Output("a/util.js")
	outB, _ := res.Output("b/util.js")
	outC, _ := res.Output("c/util.js")
	assert.Equal(t, "assets/util.js", outA)
	assert.Equal(t, "assets/util2.js", outB)
	assert.Equal(t, outA, outC, "identical content shares one file")

	assert.Contains(t, readOut(t, res, "a/util.js"), "'a'")
	assert.Contains(t, readOut(t, res, "b/util.js"), "'b'")

	main := readOut(t, res, "main.js")
	assert.Contains(t, main, "import './util.js'")
	assert.Contains(t, main, "import './util2.js'")
}

func TestBuild_PublicIndexConflicts(t *testing.T) {
	src := testSource()
	src["public/index.html"] = &fstest.MapFile{Data: []byte("<p>static</p>")}

	_, err := Build(context.Background(), src, testOptions(t))
	assert.ErrorIs(t, err, ErrOutputConflict)
}

func TestBuild_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Build(ctx, testSource(), testOptions(t))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDefineReplacer(t *testing.T) {
	r := newDefineReplacer(map[string]string{"__X__": "v", "__X_LONG__": `a"b`})

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"bare identifier", "a = __X__;", `a = "v";`},
		{"longer key", "a = __X_LONG__", `a = "a\"b"`},
		{"identifier suffix", "a = __X__2", "a = __X__2"},
		{"identifier prefix", "a = $__X__", "a = $__X__"},
		{"property access", "a = obj.__X__", "a = obj.__X__"},
		{"single quoted string", "a = '__X__'", "a = '__X__'"},
		{"double quoted string with escape", `a = "\"__X__"`, `a = "\"__X__"`},
		{"template text", "a = `__X__`", "a = `__X__`"},
		{"template expression", "a = `t ${__X__} ${ {k: __X__}.k }`", "a = `t ${\"v\"} ${ {k: \"v\"}.k }`"},
		{"line comment", "// __X__\nb = __X__", "// __X__\nb = \"v\""},
		{"block comment", "/* __X__ */ __X__", "/* __X__ */ \"v\""},
		{"call argument", "f(__X__)", `f("v")`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Replace(tt.in))
		})
	}
}

func TestRewriteImports(t *testing.T) {
	in := `import a from './a.js'
import * as ns from "../b"
import {
  c,
  d as e,
} from './c.js'
export { f } from './f.js'
export * from './g.js'
import './side.js'
const lazy = () => import('./lazy.js')
import pkg from 'vue'
const s = "./not-an-import.js"
`
	var seen []string
	out, err := rewriteImports(in, func(spec string) (string, error) {
		seen = append(seen, spec)
		return "X" + spec, nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"./a.js", "../b", "./c.js", "./f.js", "./g.js", "./side.js", "./lazy.js"}, seen)
	assert.Contains(t, out, `import a from 'X./a.js'`)
	assert.Contains(t, out, `import('X./lazy.js')`)
	assert.Contains(t, out, `import pkg from 'vue'`)
	assert.Contains(t, out, `const s = "./not-an-import.js"`)
}

func TestRewriteImports_IgnoresCommentsAndStrings(t *testing.T) {
	in := "// import './removed.js'\n" +
		"/* export * from './gone.js' */\n" +
		"const s = \"import './quoted.js'\"\n" +
		"const tpl = `import('./templated.js') ${import('./expr.js')}`\n" +
		"import './kept.js'\n"

	var seen []string
	out, err := rewriteImports(in, func(spec string) (string, error) {
		seen = append(seen, spec)
		return "X" + spec, nil
	})
	require.NoError(t, err)

	assert.ElementsMatch(t, []string{"./expr.js", "./kept.js"}, seen)
	assert.Contains(t, out, "// import './removed.js'")
	assert.Contains(t, out, `const s = "import './quoted.js'"`)
	assert.Contains(t, out, "import('./templated.js') ${import('X./expr.js')}")
	assert.Contains(t, out, "import 'X./kept.js'")
}

func TestBuild_CommentedOutImport(t *testing.T) {
	src := testSource()
	src["main.js"] = &fstest.MapFile{Data: []byte("// import './removed.js'\nimport './lib/util'\nconsole.log('import \"./nope.js\"')\n")}

	res, err := Build(context.Background(), src, testOptions(t))
	require.NoError(t, err)

	main := readOut(t, res, "main.js")
	assert.Contains(t, main, "// import './removed.js'")
	assert.Contains(t, main, `'import "./nope.js"'`)
	_, ok := res.Output("lib/util.js")
	assert.True(t, ok)
}

func TestOutputName(t *testing.T) {
	data := []byte("png-bytes")
	sum := sha256.Sum256(data)
	want := "assets/logo-" + hex.EncodeToString(sum[:])[:8] + ".png"
	assert.Equal(t, want, outputName("assets/[name]-[hash].[ext]", "images/logo.png", data))
	assert.Equal(t, "static/logo.png", outputName("static/[name].[ext]", "images/logo.png", data))
}

func TestImportSpecifier(t *testing.T) {
	assert.Equal(t, "./api-1.js", importSpecifier("assets/[name]-[hash].js", "main.js", "assets/api-1.js"))
	assert.Equal(t, "../chunks/api-1.js", importSpecifier("entry/[name]-[hash].js", "main.js", "chunks/api-1.js"))
	assert.Equal(t, "/assets/api-1.js", importSpecifier("[hash]/[name].js", "main.js", "assets/api-1.js"))
}
