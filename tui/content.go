package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"golang.org/x/net/html"

	"github.com/bassamadnan/xmail/mailview"
)

const tabWidth = 8

var (
	htmlBoldStyle    = lipgloss.NewStyle().Bold(true)
	htmlItalicStyle  = lipgloss.NewStyle().Italic(true)
	htmlLinkStyle    = lipgloss.NewStyle().Underline(true)
	htmlHeadingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
)

// RenderContent turns the body of mail into terminal text wrapped to width.
// HTML bodies are interpreted as markup; everything else is shown as is.
func RenderContent(mail mailview.DisplayedMail, width int) string {
	if mail.IsHTML {
		return wrap(renderHTML(mail.Content), width)
	}
	return wrap(renderPlain(mail.Content), width)
}

func wrap(s string, width int) string {
	if width <= 0 {
		return s
	}
	return ansi.Wrap(s, width, "")
}

func renderPlain(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	if !strings.Contains(s, "\t") {
		return s
	}

	var b strings.Builder
	col := 0
	for _, r := range s {
		switch r {
		case '\t':
			n := tabWidth - col%tabWidth
			b.WriteString(strings.Repeat(" ", n))
			col += n
		case '\n':
			b.WriteRune(r)
			col = 0
		default:
			b.WriteRune(r)
			col++
		}
	}
	return b.String()
}

// blockTags start and end on a line of their own.
var blockTags = map[string]bool{
	"p": true, "div": true, "section": true, "article": true, "header": true,
	"footer": true, "table": true, "tr": true, "ul": true, "ol": true,
	"blockquote": true, "h1": true, "h2": true, "h3": true, "h4": true,
	"h5": true, "h6": true, "hr": true, "pre": true, "body": true,
}

// skippedTags have no visible text.
var skippedTags = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "noscript": true,
}

type htmlRenderer struct {
	b       strings.Builder
	bold    int
	italic  int
	heading int
	pre     int
	skip    int
	links   []string

	// atLineStart and pendingSpace drive whitespace collapsing outside <pre>.
	atLineStart  bool
	pendingSpace bool
}

func renderHTML(src string) string {
	r := &htmlRenderer{atLineStart: true}
	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			// io.EOF or a tokenizer error; whatever was read so far is shown.
			break
		}
		switch tt {
		case html.TextToken:
			r.text(string(z.Text()))
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			attrs := map[string]string{}
			for hasAttr {
				var k, v []byte
				k, v, hasAttr = z.TagAttr()
				attrs[string(k)] = string(v)
			}
			r.start(string(name), attrs, tt == html.SelfClosingTagToken)
		case html.EndTagToken:
			name, _ := z.TagName()
			r.end(string(name))
		}
	}
	return strings.Trim(r.b.String(), "\n")
}

func (r *htmlRenderer) start(tag string, attrs map[string]string, selfClosing bool) {
	if skippedTags[tag] {
		if !selfClosing {
			r.skip++
		}
		return
	}
	switch tag {
	case "br":
		r.newline()
	case "hr":
		r.blockBreak()
		r.write(strings.Repeat(BoxHorizontal, 20))
		r.blockBreak()
	case "li":
		if !r.atLineStart {
			r.newline()
		}
		r.write("•")
		r.pendingSpace = true
	case "td", "th":
		r.pendingSpace = !r.atLineStart
	case "b", "strong":
		r.bold++
	case "i", "em":
		r.italic++
	case "a":
		r.links = append(r.links, attrs["href"])
	case "img":
		if alt := attrs["alt"]; alt != "" {
			r.text("[" + alt + "]")
		}
	case "h1", "h2", "h3", "h4", "h5", "h6":
		r.blockBreak()
		r.heading++
	case "pre":
		r.blockBreak()
		r.pre++
	default:
		if blockTags[tag] {
			r.blockBreak()
		}
	}
}

func (r *htmlRenderer) end(tag string) {
	if skippedTags[tag] {
		if r.skip > 0 {
			r.skip--
		}
		return
	}
	switch tag {
	case "b", "strong":
		if r.bold > 0 {
			r.bold--
		}
	case "i", "em":
		if r.italic > 0 {
			r.italic--
		}
	case "a":
		if n := len(r.links); n > 0 {
			href := r.links[n-1]
			r.links = r.links[:n-1]
			if href != "" && !strings.HasPrefix(href, "#") {
				r.pendingSpace = true
				r.text("(" + href + ")")
			}
		}
	case "h1", "h2", "h3", "h4", "h5", "h6":
		if r.heading > 0 {
			r.heading--
		}
		r.blockBreak()
	case "pre":
		if r.pre > 0 {
			r.pre--
		}
		r.blockBreak()
	default:
		if blockTags[tag] {
			r.blockBreak()
		}
	}
}

func (r *htmlRenderer) text(s string) {
	if r.skip > 0 {
		return
	}
	if r.pre > 0 {
		s = renderPlain(s)
		r.b.WriteString(r.styled(s))
		r.atLineStart = strings.HasSuffix(s, "\n")
		r.pendingSpace = false
		return
	}

	if len(s) > 0 && isSpace(s[0]) {
		r.pendingSpace = true
	}
	words := strings.Fields(s)
	for i, w := range words {
		if i > 0 {
			r.pendingSpace = true
		}
		r.write(w)
	}
	if len(words) > 0 && isSpace(s[len(s)-1]) {
		r.pendingSpace = true
	}
}

func (r *htmlRenderer) write(s string) {
	if r.pendingSpace && !r.atLineStart {
		r.b.WriteByte(' ')
	}
	r.pendingSpace = false
	r.b.WriteString(r.styled(s))
	r.atLineStart = false
}

// styled renders s line by line so lipgloss does not pad lines to a common
// width.
func (r *htmlRenderer) styled(s string) string {
	style, ok := r.style()
	if !ok {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		if l != "" {
			lines[i] = style.Render(l)
		}
	}
	return strings.Join(lines, "\n")
}

func (r *htmlRenderer) style() (lipgloss.Style, bool) {
	switch {
	case r.heading > 0:
		return htmlHeadingStyle, true
	case r.bold > 0 && r.italic > 0:
		return htmlBoldStyle.Inherit(htmlItalicStyle), true
	case r.bold > 0:
		return htmlBoldStyle, true
	case r.italic > 0:
		return htmlItalicStyle, true
	case len(r.links) > 0:
		return htmlLinkStyle, true
	}
	return lipgloss.Style{}, false
}

func (r *htmlRenderer) newline() {
	r.b.WriteByte('\n')
	r.atLineStart = true
	r.pendingSpace = false
}

// blockBreak leaves exactly one blank line between blocks.
func (r *htmlRenderer) blockBreak() {
	out := r.b.String()
	if out == "" {
		r.atLineStart = true
		return
	}
	switch {
	case strings.HasSuffix(out, "\n\n"):
	case strings.HasSuffix(out, "\n"):
		r.b.WriteByte('\n')
	default:
		r.b.WriteString("\n\n")
	}
	r.atLineStart = true
	r.pendingSpace = false
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}
