// Package sanitize scrubs formatter-produced HTML before it reaches a client.
// Sanitize never fails; on input it cannot settle it returns an empty string.
package sanitize

import (
	"html"
	"io"
	"regexp"
	"strings"

	xhtml "golang.org/x/net/html"
)

const maxPasses = 8

var (
	scriptBlock  = regexp.MustCompile(`(?is)<script\b[^>]*>.*?</script\s*>`)
	scriptOpen   = regexp.MustCompile(`(?is)<script\b.*$`)
	eventHandler = regexp.MustCompile(`(?i)[\s"'/]on[a-z]+\s*=\s*(?:"[^"]*"|'[^']*'|[^\s>]*)`)
	dangerousURL = regexp.MustCompile(`(?i)(\b(?:href|src)\s*=\s*)(?:"\s*(?:javascript|data|vbscript)\s*:[^"]*"|'\s*(?:javascript|data|vbscript)\s*:[^']*'|(?:javascript|data|vbscript)\s*:[^\s>]*)`)
)

// Placeholder replaces neutralized URLs.
const Placeholder = "#"

// Sanitize runs the pipeline until its output no longer changes:
//  1. remove script blocks and on* event handler attributes
//  2. rewrite javascript:, data: and vbscript: URLs in href/src to Placeholder
//  3. strip tags outside the allowlist, dropping the content of dangerous ones
//  4. strip attributes not allowlisted for their tag
func Sanitize(in string) string {
	out := in
	for range maxPasses {
		next := pass(out)
		if next == out {
			return out
		}
		out = next
	}
	return ""
}

// IsSafe reports whether sanitizing s is a no-op.
func IsSafe(s string) bool {
	return Sanitize(s) == s
}

func pass(s string) string {
	s = removeScripts(s)
	s = neutralizeURLs(s)
	return filterTags(s)
}

func removeScripts(s string) string {
	s = scriptBlock.ReplaceAllString(s, "")
	s = scriptOpen.ReplaceAllString(s, "")
	for {
		next := eventHandler.ReplaceAllStringFunc(s, func(m string) string {
			// Keep the delimiter that introduced the attribute.
			return m[:1]
		})
		if next == s {
			return s
		}
		s = next
	}
}

func neutralizeURLs(s string) string {
	return dangerousURL.ReplaceAllString(s, `${1}"`+Placeholder+`"`)
}

func filterTags(s string) string {
	var (
		sb       strings.Builder
		skipping string
		depth    int
	)
	z := xhtml.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == xhtml.ErrorToken {
			if z.Err() != io.EOF {
				return ""
			}
			return sb.String()
		}
		tok := z.Token()
		name := strings.ToLower(tok.Data)

		if skipping != "" {
			switch {
			case tt == xhtml.StartTagToken && name == skipping:
				depth++
			case tt == xhtml.EndTagToken && name == skipping:
				depth--
				if depth == 0 {
					skipping = ""
				}
			}
			continue
		}

		switch tt {
		case xhtml.TextToken:
			sb.WriteString(html.EscapeString(tok.Data))
		case xhtml.StartTagToken, xhtml.SelfClosingTagToken:
			if _, drop := dropContent[name]; drop {
				if tt == xhtml.StartTagToken && !voidElements[name] {
					skipping, depth = name, 1
				}
				continue
			}
			allowed, ok := allowedTags[name]
			if !ok {
				continue
			}
			sb.WriteByte('<')
			sb.WriteString(name)
			writeAttrs(&sb, tok.Attr, allowed)
			sb.WriteByte('>')
		case xhtml.EndTagToken:
			if _, ok := allowedTags[name]; ok && !voidElements[name] {
				sb.WriteString("</")
				sb.WriteString(name)
				sb.WriteByte('>')
			}
		}
	}
}

func writeAttrs(sb *strings.Builder, attrs []xhtml.Attribute, allowed map[string]struct{}) {
	seen := make(map[string]struct{}, len(attrs))
	for _, a := range attrs {
		key := strings.ToLower(a.Key)
		if a.Namespace != "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		val := a.Val
		switch key {
		case "href", "src":
			val = URL(val)
		case "style":
			if !safeStyle(val) {
				continue
			}
		}
		seen[key] = struct{}{}
		sb.WriteByte(' ')
		sb.WriteString(key)
		sb.WriteString(`="`)
		sb.WriteString(html.EscapeString(val))
		sb.WriteByte('"')
	}
}

// URL keeps relative URLs and http, https and mailto; anything else becomes
// Placeholder. raw must already be entity-decoded.
func URL(raw string) string {
	compact := strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return r
	}, strings.ToLower(raw))
	colon := strings.IndexByte(compact, ':')
	if colon < 0 {
		return raw
	}
	if cut := strings.IndexAny(compact, "/?#"); cut >= 0 && cut < colon {
		return raw
	}
	switch compact[:colon] {
	case "http", "https", "mailto":
		return raw
	}
	return Placeholder
}

var unsafeStyle = []string{"expression", "url(", "javascript:", "vbscript:", "@import", "behavior", "-moz-binding", "<", ">"}

func safeStyle(val string) bool {
	v := strings.ToLower(val)
	for _, bad := range unsafeStyle {
		if strings.Contains(v, bad) {
			return false
		}
	}
	return true
}
