package bundle

import (
	"bytes"
	"fmt"
	"io/fs"
	"path"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// externalRef matches URLs with a scheme (https:, data:, mailto:) or protocol-relative URLs.
var externalRef = regexp.MustCompile(`^(?:[a-zA-Z][a-zA-Z0-9+.\-]*:|//)`)

func (b *builder) buildIndex() error {
	data, err := fs.ReadFile(b.src, IndexFile)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMissingSource, IndexFile, err)
	}
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("parsing %s: %w", IndexFile, err)
	}

	if findByID(doc, b.opts.MountID) == nil {
		return fmt.Errorf("%w: no element with id %q", ErrMountPointMissing, b.opts.MountID)
	}

	var walkErr error
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if walkErr != nil {
			return
		}
		if n.Type == html.ElementNode {
			walkErr = b.rewriteElement(n)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	if walkErr != nil {
		return walkErr
	}

	var out bytes.Buffer
	if err := html.Render(&out, doc); err != nil {
		return fmt.Errorf("rendering %s: %w", IndexFile, err)
	}
	_, err = b.write(IndexFile, IndexFile, KindHTML, out.Bytes())
	return err
}

// rewriteElement emits the file an element references and points the
// attribute at the emitted copy.
func (b *builder) rewriteElement(n *html.Node) error {
	var attr string
	switch n.Data {
	case "script":
		attr = "src"
	case "link":
		attr = "href"
	case "img":
		attr = "src"
	default:
		return nil
	}

	idx := attrIndex(n, attr)
	if idx < 0 {
		return nil
	}
	ref := strings.TrimSpace(n.Attr[idx].Val)
	if ref == "" || strings.HasPrefix(ref, "#") || externalRef.MatchString(ref) {
		return nil
	}

	p, ok := resolveRef(ref)
	if !ok || !isFile(b.src, p) {
		// Absolute references to public/ files are served as-is from the output root.
		if strings.HasPrefix(ref, "/") && ok && isFile(b.src, path.Join(PublicDir, p)) {
			return nil
		}
		return fmt.Errorf("%w: %q referenced from %s", ErrMissingSource, ref, IndexFile)
	}

	var out string
	var err error
	if n.Data == "script" {
		out, err = b.script(p, KindEntry)
	} else {
		out, err = b.asset(p)
	}
	if err != nil {
		return err
	}
	n.Attr[idx].Val = "/" + out
	return nil
}

// resolveRef maps an index.html reference to a path in the source tree. It
// reports false for references that escape the source root.
func resolveRef(ref string) (string, bool) {
	r := stripQuery(ref)
	if !strings.HasPrefix(r, "/") {
		if c := path.Clean(r); c == ".." || strings.HasPrefix(c, "../") {
			return "", false
		}
	}
	p := strings.TrimPrefix(path.Clean("/"+r), "/")
	if p == "" || !fs.ValidPath(p) {
		return "", false
	}
	return p, true
}

func findByID(n *html.Node, id string) *html.Node {
	if n.Type == html.ElementNode {
		if i := attrIndex(n, "id"); i >= 0 && n.Attr[i].Val == id {
			return n
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

func attrIndex(n *html.Node, key string) int {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return i
		}
	}
	return -1
}
