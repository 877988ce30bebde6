package devserver

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"sort"
	"strings"

	"github.com/shaharia-lab/userhub/internal/config"
)

// proxyRoute forwards requests under prefix to a single upstream.
type proxyRoute struct {
	prefix string
	target *url.URL
	proxy  *httputil.ReverseProxy
}

// Proxy dispatches requests to upstreams by path prefix.
type Proxy struct {
	routes []proxyRoute
}

// NewProxy builds a Proxy from the configured rules. A request matches a rule
// when its path starts with the rule's prefix; the longest prefix wins.
func NewProxy(rules map[string]config.ProxyRule, logger *slog.Logger) (*Proxy, error) {
	p := &Proxy{}
	for prefix, rule := range rules {
		target, err := url.Parse(rule.Target)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("invalid proxy target %q for %q", rule.Target, prefix)
		}
		p.routes = append(p.routes, proxyRoute{
			prefix: prefix,
			target: target,
			proxy:  newReverseProxy(target, rule.ChangeOrigin, logger),
		})
	}
	sort.Slice(p.routes, func(i, j int) bool {
		if len(p.routes[i].prefix) != len(p.routes[j].prefix) {
			return len(p.routes[i].prefix) > len(p.routes[j].prefix)
		}
		return p.routes[i].prefix < p.routes[j].prefix
	})
	return p, nil
}

// Match returns the route handling path, if any.
func (p *Proxy) Match(path string) (http.Handler, bool) {
	for _, r := range p.routes {
		if strings.HasPrefix(path, r.prefix) {
			return r.proxy, true
		}
	}
	return nil, false
}

func newReverseProxy(target *url.URL, changeOrigin bool, logger *slog.Logger) *httputil.ReverseProxy {
	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.SetURL(target)
			pr.SetXForwarded()
			if !changeOrigin {
				pr.Out.Host = pr.In.Host
			}
		},
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			logger.Warn("proxy upstream unreachable",
				"target", target.String(), "path", r.URL.Path, "error", err)
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadGateway)
			_, _ = fmt.Fprintf(w, `{"error":"proxy target %s unreachable"}`, target.Host)
		},
	}
}
