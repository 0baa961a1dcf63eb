package content

import (
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags may pass through SanitizeReply. Attributes are dropped except
// href on links.
var allowedTags = map[atom.Atom]bool{
	atom.A: true, atom.B: true, atom.Blockquote: true, atom.Br: true,
	atom.Code: true, atom.Em: true, atom.I: true, atom.Li: true,
	atom.Ol: true, atom.P: true, atom.Pre: true, atom.Strong: true,
	atom.Ul: true, atom.Del: true, atom.Hr: true,
}

// droppedTags lose their content as well as their markup.
var droppedTags = map[atom.Atom]bool{
	atom.Script: true, atom.Style: true, atom.Iframe: true, atom.Object: true,
}

// SanitizeReply makes a remote reply body safe to store as a local comment.
// Allowed tags are re-emitted without attributes (links keep http/https
// hrefs); script-like elements are removed with their content; all other
// markup is dropped and text is re-escaped.
func SanitizeReply(body string) string {
	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(body))
	skipDepth := 0

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or malformed input; keep what was sanitized so far.
			break
		}

		tok := z.Token()
		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			if droppedTags[tok.DataAtom] {
				if tt == html.StartTagToken {
					skipDepth++
				}
				continue
			}
			if skipDepth > 0 || !allowedTags[tok.DataAtom] {
				continue
			}
			b.WriteString(startTag(tok, tt == html.SelfClosingTagToken))
		case html.EndTagToken:
			if droppedTags[tok.DataAtom] {
				if skipDepth > 0 {
					skipDepth--
				}
				continue
			}
			if skipDepth > 0 || !allowedTags[tok.DataAtom] {
				continue
			}
			b.WriteString("</" + tok.Data + ">")
		case html.TextToken:
			if skipDepth > 0 {
				continue
			}
			b.WriteString(html.EscapeString(tok.Data))
		}
	}

	return strings.TrimSpace(b.String())
}

func startTag(tok html.Token, selfClosing bool) string {
	var b strings.Builder
	b.WriteString("<" + tok.Data)
	if tok.DataAtom == atom.A {
		for _, attr := range tok.Attr {
			if attr.Key == "href" && safeURL(attr.Val) {
				b.WriteString(` href="` + html.EscapeString(attr.Val) + `" rel="nofollow ugc"`)
				break
			}
		}
	}
	if selfClosing {
		b.WriteString("/")
	}
	b.WriteString(">")
	return b.String()
}

func safeURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
