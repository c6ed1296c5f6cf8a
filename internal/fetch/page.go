package fetch

import (
	"net/url"
	"regexp"
	"strings"
)

// Page is one fetched task page: the raw HTML plus regex-based queries
// used by the extractors. Queries never mutate the page.
type Page struct {
	URL        string
	HTML       string
	StatusCode int
}

// Link is an anchor element on a page.
type Link struct {
	Href string
	Text string
}

var (
	preRe    = regexp.MustCompile(`(?is)<pre[^>]*>(.*?)</pre>`)
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>(.*?)</script>`)
	tableRe  = regexp.MustCompile(`(?is)<table[^>]*>(.*?)</table>`)
	trRe     = regexp.MustCompile(`(?is)<tr[^>]*>(.*?)</tr>`)
	cellRe   = regexp.MustCompile(`(?is)<t[dh][^>]*>(.*?)</t[dh]>`)
	anchorRe = regexp.MustCompile(`(?is)<a\b[^>]*href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)
	titleRe  = regexp.MustCompile(`(?i)<title[^>]*>(.*?)</title>`)
	tagRe    = regexp.MustCompile(`<[^>]+>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	nlRe     = regexp.MustCompile(`\n{3,}`)
)

// FirstPre returns the text of the first <pre> block, with entities
// decoded, or ("", false) if the page has none.
func (p *Page) FirstPre() (string, bool) {
	m := preRe.FindStringSubmatch(p.HTML)
	if m == nil {
		return "", false
	}
	return strings.TrimSpace(decodeEntities(m[1])), true
}

// Scripts returns the body of every inline <script> block.
func (p *Page) Scripts() []string {
	var out []string
	for _, m := range scriptRe.FindAllStringSubmatch(p.HTML, -1) {
		if body := strings.TrimSpace(m[1]); body != "" {
			out = append(out, body)
		}
	}
	return out
}

// FirstTable parses the first HTML table into rows of trimmed cell text.
// Returns nil if the page has no table.
func (p *Page) FirstTable() [][]string {
	m := tableRe.FindStringSubmatch(p.HTML)
	if m == nil {
		return nil
	}

	var rows [][]string
	for _, tr := range trRe.FindAllStringSubmatch(m[1], -1) {
		var cells []string
		for _, cell := range cellRe.FindAllStringSubmatch(tr[1], -1) {
			text := strings.TrimSpace(decodeEntities(tagRe.ReplaceAllString(cell[1], " ")))
			cells = append(cells, spaceRe.ReplaceAllString(text, " "))
		}
		if len(cells) > 0 {
			rows = append(rows, cells)
		}
	}
	return rows
}

// Links returns every anchor with its href resolved against the page URL.
func (p *Page) Links() []Link {
	base, baseErr := url.Parse(p.URL)

	var out []Link
	for _, m := range anchorRe.FindAllStringSubmatch(p.HTML, -1) {
		href := strings.TrimSpace(m[1])
		if href == "" {
			continue
		}
		if baseErr == nil {
			if ref, err := url.Parse(href); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		text := strings.TrimSpace(decodeEntities(tagRe.ReplaceAllString(m[2], " ")))
		out = append(out, Link{Href: href, Text: spaceRe.ReplaceAllString(text, " ")})
	}
	return out
}

// Title pulls the <title> from the page.
func (p *Page) Title() string {
	m := titleRe.FindStringSubmatch(p.HTML)
	if len(m) > 1 {
		return strings.TrimSpace(m[1])
	}
	return ""
}

// PlainText removes head/scripts/styles, strips tags, decodes entities,
// and collapses whitespace. The result is plaintext suitable for LLM
// prompts; the title is available separately via Title.
func (p *Page) PlainText() string {
	html := p.HTML
	for _, tag := range []string{"head", "script", "style", "nav", "footer"} {
		re := regexp.MustCompile(`(?is)<` + tag + `[^>]*>.*?</` + tag + `>`)
		html = re.ReplaceAllString(html, "")
	}

	html = tagRe.ReplaceAllString(html, " ")
	html = decodeEntities(html)
	html = spaceRe.ReplaceAllString(html, " ")
	html = nlRe.ReplaceAllString(html, "\n\n")

	return strings.TrimSpace(html)
}

// decodeEntities decodes the handful of HTML entities that show up in
// quiz pages.
func decodeEntities(s string) string {
	r := strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#34;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	)
	return r.Replace(s)
}
