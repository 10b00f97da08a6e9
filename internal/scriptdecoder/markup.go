package scriptdecoder

import (
	"bytes"
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var aspDirective = regexp.MustCompile(`(?i)<%\s*@\s*language\s*=\s*["']?([a-z.]+)`)

type scriptRegion struct {
	start, end int
	language   string
}

type pageDirective struct {
	offset   int
	language string
}

// markupHints records which script language the surrounding markup declares
// for each part of a page: <script language=...> / type=... blocks and the
// ASP <%@ language=... %> page directive.
type markupHints struct {
	regions    []scriptRegion
	directives []pageDirective
}

func parseMarkup(buf []byte) *markupHints {
	hints := &markupHints{}
	z := html.NewTokenizer(bytes.NewReader(buf))
	pos := 0
	open := -1

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := z.Raw()
		start := pos
		pos += len(raw)

		switch tt {
		case html.StartTagToken:
			name, hasAttr := z.TagName()
			if string(name) != "script" {
				continue
			}
			language := ""
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				switch string(key) {
				case "language", "type":
					if l := scriptLanguage(string(val)); l != "" {
						language = l
					}
				}
			}
			hints.regions = append(hints.regions, scriptRegion{start: pos, end: len(buf), language: language})
			open = len(hints.regions) - 1
		case html.EndTagToken:
			name, _ := z.TagName()
			if string(name) == "script" && open >= 0 {
				hints.regions[open].end = start
				open = -1
			}
		case html.TextToken, html.CommentToken:
			for _, m := range aspDirective.FindAllSubmatchIndex(raw, -1) {
				if l := scriptLanguage(string(raw[m[2]:m[3]])); l != "" {
					hints.directives = append(hints.directives, pageDirective{offset: start + m[0], language: l})
				}
			}
		}
	}
	return hints
}

// languageAt returns the declared language at offset, preferring an
// enclosing script block over the page directive.
func (h *markupHints) languageAt(offset int) string {
	for _, r := range h.regions {
		if r.start <= offset && offset < r.end && r.language != "" {
			return r.language
		}
	}
	language := ""
	for _, d := range h.directives {
		if d.offset < offset {
			language = d.language
		}
	}
	return language
}

// scriptLanguage maps a declared language such as "VBScript.Encode" or
// "text/jscript.encode" to one of scriptTypes.
func scriptLanguage(declared string) string {
	declared = strings.ToLower(declared)
	found := ""
	for _, t := range scriptTypes {
		if strings.Contains(declared, t) {
			found = t
		}
	}
	return found
}
