package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// APIBaseURLDefine is the identifier replaced with the API base URL in built scripts.
	APIBaseURLDefine = "__API_BASE_URL__"
	// APIBaseURLEnv overrides the API base URL baked into the frontend.
	APIBaseURLEnv = "API_BASE_URL"
	// APIBaseURLLegacyEnv is read when APIBaseURLEnv is unset or empty, for
	// deployments configured for the Vite-built frontend.
	APIBaseURLLegacyEnv = "VITE_API_BASE_URL"
	// DefaultAPIBaseURL is used when APIBaseURLEnv is unset or empty.
	DefaultAPIBaseURL = "/api"

	// PluginSPA is the only supported frontend plugin: plain single-page app handling.
	PluginSPA = "spa"
)

// FrontendConfig describes how the frontend is built and served during development.
type FrontendConfig struct {
	// Root is the source directory containing index.html.
	Root string `yaml:"root"`
	// MountID is the id of the element the app attaches to.
	MountID string            `yaml:"mount_id"`
	Plugins []string          `yaml:"plugins"`
	Build   BuildConfig       `yaml:"build"`
	Server  DevServerConfig   `yaml:"server"`
	Define  map[string]string `yaml:"define"`
}

// BuildConfig controls output location and file naming.
// Templates accept [name], [hash] and [ext] placeholders.
type BuildConfig struct {
	OutDir         string `yaml:"out_dir"`
	Sourcemap      bool   `yaml:"sourcemap"`
	EntryFileNames string `yaml:"entry_file_names"`
	ChunkFileNames string `yaml:"chunk_file_names"`
	AssetFileNames string `yaml:"asset_file_names"`
}

// DevServerConfig is the development server section.
type DevServerConfig struct {
	Port  int                  `yaml:"port"`
	Proxy map[string]ProxyRule `yaml:"proxy"`
}

// ProxyRule forwards requests under a path prefix to Target.
type ProxyRule struct {
	Target string `yaml:"target"`
	// ChangeOrigin rewrites the outgoing Host header to the target's host.
	ChangeOrigin bool `yaml:"change_origin"`
}

// DefaultFrontendConfig returns the configuration used when no file is present.
func DefaultFrontendConfig() *FrontendConfig {
	return &FrontendConfig{
		Root:    "frontend/src",
		MountID: "app",
		Plugins: []string{PluginSPA},
		Build: BuildConfig{
			OutDir:         "frontend/dist",
			Sourcemap:      false,
			EntryFileNames: "assets/[name]-[hash].js",
			ChunkFileNames: "assets/[name]-[hash].js",
			AssetFileNames: "assets/[name]-[hash].[ext]",
		},
		Server: DevServerConfig{
			Port: 3000,
			Proxy: map[string]ProxyRule{
				"/api": {Target: "http://localhost:8080", ChangeOrigin: true},
			},
		},
		Define: map[string]string{},
	}
}

// LoadFrontendConfig reads a YAML frontend config from path on top of the defaults.
// A missing file yields the defaults.
func LoadFrontendConfig(path string) (*FrontendConfig, error) {
	cfg := DefaultFrontendConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path) //nolint:gosec // path is operator-supplied
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading frontend config %q: %w", path, err)
	}

	var raw FrontendConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing frontend config %q: %w", path, err)
	}
	cfg.merge(&raw)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid frontend config %q: %w", path, err)
	}
	return cfg, nil
}

func (c *FrontendConfig) merge(o *FrontendConfig) {
	if o.Root != "" {
		c.Root = o.Root
	}
	if o.MountID != "" {
		c.MountID = o.MountID
	}
	if o.Plugins != nil {
		c.Plugins = o.Plugins
	}
	if o.Build.OutDir != "" {
		c.Build.OutDir = o.Build.OutDir
	}
	c.Build.Sourcemap = o.Build.Sourcemap
	if o.Build.EntryFileNames != "" {
		c.Build.EntryFileNames = o.Build.EntryFileNames
	}
	if o.Build.ChunkFileNames != "" {
		c.Build.ChunkFileNames = o.Build.ChunkFileNames
	}
	if o.Build.AssetFileNames != "" {
		c.Build.AssetFileNames = o.Build.AssetFileNames
	}
	if o.Server.Port != 0 {
		c.Server.Port = o.Server.Port
	}
	// A proxy table in the file replaces the default one entirely.
	if o.Server.Proxy != nil {
		c.Server.Proxy = o.Server.Proxy
	}
	for k, v := range o.Define {
		c.Define[k] = v
	}
}

// Validate checks the config for values the build or dev server cannot use.
func (c *FrontendConfig) Validate() error {
	if strings.TrimSpace(c.MountID) == "" {
		return errors.New("mount_id must not be empty")
	}
	for _, p := range c.Plugins {
		if p != PluginSPA {
			return fmt.Errorf("unknown plugin %q", p)
		}
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}
	templates := map[string]string{
		"entry_file_names": c.Build.EntryFileNames,
		"chunk_file_names": c.Build.ChunkFileNames,
		"asset_file_names": c.Build.AssetFileNames,
	}
	for field, tmpl := range templates {
		if !strings.Contains(tmpl, "[name]") {
			return fmt.Errorf("build.%s must contain [name], got %q", field, tmpl)
		}
	}
	if err := CheckOutDir(c.Build.OutDir, c.Root); err != nil {
		return fmt.Errorf("build.out_dir: %w", err)
	}
	for prefix, rule := range c.Server.Proxy {
		if !strings.HasPrefix(prefix, "/") {
			return fmt.Errorf("proxy prefix %q must start with /", prefix)
		}
		u, err := url.Parse(rule.Target)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("proxy target %q for %q must be an absolute http(s) URL", rule.Target, prefix)
		}
	}
	return nil
}

// CheckOutDir reports an error when emptying outDir before a build could
// delete anything outside the build output: outDir must not be the working
// directory or one of its ancestors, and must not be root or contain it.
// An empty root skips the source check.
func CheckOutDir(outDir, root string) error {
	if strings.TrimSpace(outDir) == "" {
		return errors.New("output directory is empty")
	}
	out, err := filepath.Abs(outDir)
	if err != nil {
		return fmt.Errorf("resolving output directory %q: %w", outDir, err)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("resolving working directory: %w", err)
	}
	if within(cwd, out) {
		return fmt.Errorf("output directory %q contains the working directory", outDir)
	}
	if root == "" {
		return nil
	}
	src, err := filepath.Abs(root)
	if err != nil {
		return fmt.Errorf("resolving source root %q: %w", root, err)
	}
	if within(src, out) {
		return fmt.Errorf("output directory %q contains the source root %q", outDir, root)
	}
	return nil
}

// within reports whether p is dir or lies below it. Both must be absolute.
func within(p, dir string) bool {
	rel, err := filepath.Rel(dir, p)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ResolveDefines returns the build-time constant table. The API base URL comes
// from getenv(APIBaseURLEnv), then getenv(APIBaseURLLegacyEnv), and falls back
// to DefaultAPIBaseURL.
func (c *FrontendConfig) ResolveDefines(getenv func(string) string) map[string]string {
	out := make(map[string]string, len(c.Define)+1)
	for k, v := range c.Define {
		out[k] = v
	}
	base := DefaultAPIBaseURL
	for _, key := range []string{APIBaseURLEnv, APIBaseURLLegacyEnv} {
		if v := getenv(key); v != "" {
			base = v
			break
		}
	}
	out[APIBaseURLDefine] = base
	return out
}
