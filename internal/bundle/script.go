package bundle

import (
	"bytes"
	"encoding/json"
	"regexp"
	"sort"
	"strings"
)

// defineReplacer substitutes build-time constants for identifiers.
type defineReplacer struct {
	keys   []string
	values map[string]string
}

func newDefineReplacer(defines map[string]string) *defineReplacer {
	r := &defineReplacer{values: make(map[string]string, len(defines))}
	for k, v := range defines {
		r.keys = append(r.keys, k)
		r.values[k] = jsonString(v)
	}
	// Longest first, so a key that prefixes another never wins.
	sort.Slice(r.keys, func(i, j int) bool {
		if len(r.keys[i]) != len(r.keys[j]) {
			return len(r.keys[i]) > len(r.keys[j])
		}
		return r.keys[i] < r.keys[j]
	})
	return r
}

// Replace substitutes every define that appears as a whole identifier in
// code. String literals, comments and property accesses such as obj.__KEY__
// are left alone. Expressions inside template literals are substituted.
func (r *defineReplacer) Replace(code string) string {
	if len(r.keys) == 0 {
		return code
	}
	var sb strings.Builder
	sb.Grow(len(code))

	last := 0
	for _, s := range append(literalSpans(code), span{len(code), len(code)}) {
		for i := last; i < s.start; {
			if k := r.match(code, i); k != "" && i+len(k) <= s.start {
				sb.WriteString(r.values[k])
				i += len(k)
				continue
			}
			sb.WriteByte(code[i])
			i++
		}
		sb.WriteString(code[s.start:s.end])
		last = s.end
	}
	return sb.String()
}

// span is a half-open byte range [start, end) of a script.
type span struct {
	start, end int
}

// literalSpans returns, in order, the string literals, template literal text
// and comments of code. Expressions inside template literals are code and
// are not covered.
func literalSpans(code string) []span {
	var spans []span

	// braces holds, for each open template expression, the brace depth at
	// which it closes.
	var braces []int
	depth := 0

	for i := 0; i < len(code); {
		c := code[i]
		start := i
		switch {
		case c == '\'' || c == '"':
			i = skipQuoted(code, i, c)
		case c == '`' || (c == '}' && len(braces) > 0 && braces[len(braces)-1] == depth):
			if c == '}' {
				braces = braces[:len(braces)-1]
			}
			j, opensExpr := skipTemplate(code, i+1)
			i = j
			if opensExpr {
				braces = append(braces, depth)
			}
		case c == '/' && i+1 < len(code) && code[i+1] == '/':
			j := strings.IndexByte(code[i:], '\n')
			if j < 0 {
				j = len(code) - i
			}
			i += j
		case c == '/' && i+1 < len(code) && code[i+1] == '*':
			end := len(code)
			if j := strings.Index(code[i+2:], "*/"); j >= 0 {
				end = i + 2 + j + 2
			}
			i = end
		default:
			switch c {
			case '{':
				depth++
			case '}':
				depth--
			}
			i++
			continue
		}
		spans = append(spans, span{start, i})
	}
	return spans
}

// inCode reports whether offset pos lies outside every span.
func inCode(spans []span, pos int) bool {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > pos })
	return i == len(spans) || spans[i].start > pos
}

// match returns the define key starting at code[i] on identifier boundaries.
func (r *defineReplacer) match(code string, i int) string {
	if i > 0 && (isIdentByte(code[i-1]) || code[i-1] == '.') {
		return ""
	}
	for _, k := range r.keys {
		end := i + len(k)
		if strings.HasPrefix(code[i:], k) && (end == len(code) || !isIdentByte(code[end])) {
			return k
		}
	}
	return ""
}

// skipQuoted returns the index just past the string literal starting at i.
func skipQuoted(code string, i int, quote byte) int {
	for j := i + 1; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case quote, '\n':
			return j + 1
		}
	}
	return len(code)
}

// skipTemplate scans template literal text starting at i. It returns the index
// just past the closing backtick, or just past "${" when an expression opens.
func skipTemplate(code string, i int) (int, bool) {
	for j := i; j < len(code); j++ {
		switch code[j] {
		case '\\':
			j++
		case '`':
			return j + 1, false
		case '$':
			if j+1 < len(code) && code[j+1] == '{' {
				return j + 2, true
			}
		}
	}
	return len(code), false
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' ||
		(c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') ||
		c >= 0x80
}

func jsonString(v string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
	return strings.TrimSuffix(buf.String(), "\n")
}

// importPatterns match relative module specifiers. The specifier is always
// capture group 2.
var importPatterns = []*regexp.Regexp{
	// import x from './a', import {a, b} from "./a", export * from './a', import './a'
	regexp.MustCompile(`\b((?:import|export)\s*(?:[\w$*{}\s,]+?\s*from\s*)?)['"](\.\.?/[^'"\r\n]+)['"]`),
	// import('./a')
	regexp.MustCompile(`\b(import\s*\(\s*)['"](\.\.?/[^'"\r\n]+)['"]`),
}

// rewriteImports replaces each relative import specifier in code with the
// value returned by fn. The surrounding quotes are kept. Import-like text in
// comments and string literals is ignored.
func rewriteImports(code string, fn func(spec string) (string, error)) (string, error) {
	for _, re := range importPatterns {
		matches := re.FindAllStringSubmatchIndex(code, -1)
		if len(matches) == 0 {
			continue
		}
		spans := literalSpans(code)
		var sb strings.Builder
		last := 0
		for _, m := range matches {
			if !inCode(spans, m[0]) {
				continue
			}
			specStart, specEnd := m[4], m[5]
			repl, err := fn(code[specStart:specEnd])
			if err != nil {
				return "", err
			}
			sb.WriteString(code[last:specStart])
			sb.WriteString(repl)
			last = specEnd
		}
		sb.WriteString(code[last:])
		code = sb.String()
	}
	return code, nil
}
