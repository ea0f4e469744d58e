package biz

import (
	"bytes"
	"net/url"
	"path"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

const (
	boilerplateSelector = "script, style, noscript, iframe, svg, button, form, nav, footer, header, aside"
	// minMainContentLen 候选正文容器的最小文本长度。
	minMainContentLen = 100
)

var mainContentSelectors = []string{
	"main", "article", "[role='main']", "#content", ".content",
	"#main-content", ".main-content", "#main", ".entry-content", ".page-content",
}

// navLabels 整行等于这些标签时视为导航残留。
var navLabels = map[string]struct{}{
	"menu": {}, "main menu": {}, "open menu": {}, "close menu": {}, "toggle navigation": {},
	"search": {}, "login": {}, "log in": {}, "sign in": {}, "home": {}, "back to top": {},
	"close": {}, "breadcrumb": {},
}

var navPrefixes = []string{"skip to", "home >", "home /", "breadcrumb", "you are here"}

const (
	directoryCardSelector = "div.faculty, section.faculty, div.staff, section.staff, div.directory, section.directory"
	directoryNameSelector = "h3, h4, strong"
	directoryRoleSelector = "p.title, span.title, p.position, span.position"
)

// pdfLink 页面中的 PDF 链接。
type pdfLink struct {
	URL  string
	Text string
}

// htmlPage 一次解析的结果。
type htmlPage struct {
	Title string
	Text  string
	PDFs  []pdfLink
}

// parseHTML 解析页面：提取标题、清洗正文，并收集同站 PDF 链接。
func parseHTML(pageURL string, raw []byte) (*htmlPage, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}

	page := &htmlPage{
		Title: pageTitle(doc, pageURL),
		// PDF 链接从完整页面收集，包括随后被剥离的导航区域
		PDFs: collectPDFLinks(doc, pageURL),
	}

	directory := directoryEntries(doc)

	doc.Find(boilerplateSelector).Remove()

	var b strings.Builder
	for _, n := range mainContent(doc).Nodes {
		renderNode(&b, n)
	}
	if len(directory) > 0 {
		b.WriteString("\n\n## Directory\n\n" + strings.Join(directory, "\n") + "\n\n")
	}
	page.Text = filterNavLines(textutil.CollapseInlineSpace(b.String()))
	return page, nil
}

// directoryEntries 提取教职工目录卡片，每张卡片一行 "Name | Title | Email"。
// 邮箱取自 mailto 链接本身，链接文本常常只是 "Email"。
func directoryEntries(doc *goquery.Document) []string {
	var entries []string
	seen := make(map[string]struct{})
	doc.Find(directoryCardSelector).Each(func(_ int, card *goquery.Selection) {
		name := textutil.CollapseWhitespace(card.Find(directoryNameSelector).First().Text())
		if name == "" {
			return
		}
		fields := []string{name}
		if role := textutil.CollapseWhitespace(card.Find(directoryRoleSelector).First().Text()); role != "" {
			fields = append(fields, role)
		}
		if href, ok := card.Find("a[href^='mailto:']").First().Attr("href"); ok {
			email := strings.TrimPrefix(strings.TrimSpace(href), "mailto:")
			if i := strings.IndexByte(email, '?'); i >= 0 {
				email = email[:i]
			}
			if email != "" {
				fields = append(fields, email)
			}
		}
		entry := strings.Join(fields, " | ")
		if _, ok := seen[entry]; ok {
			return
		}
		seen[entry] = struct{}{}
		entries = append(entries, entry)
	})
	return entries
}

func pageTitle(doc *goquery.Document, pageURL string) string {
	if t := textutil.CollapseWhitespace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if t := textutil.CollapseWhitespace(doc.Find("h1").First().Text()); t != "" {
		return t
	}
	return pageURL
}

func mainContent(doc *goquery.Document) *goquery.Selection {
	for _, sel := range mainContentSelectors {
		s := doc.Find(sel).First()
		if s.Length() > 0 && len(strings.TrimSpace(s.Text())) > minMainContentLen {
			return s
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return body
	}
	return doc.Selection
}

// collectPDFLinks 返回与页面同主机的 PDF 链接，按出现顺序去重。
func collectPDFLinks(doc *goquery.Document, pageURL string) []pdfLink {
	base, err := url.Parse(pageURL)
	if err != nil {
		return nil
	}

	var links []pdfLink
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		abs.Fragment = ""
		if !strings.HasSuffix(strings.ToLower(abs.Path), ".pdf") || abs.Host != base.Host {
			return
		}
		u := abs.String()
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		links = append(links, pdfLink{URL: u, Text: textutil.CollapseWhitespace(a.Text())})
	})
	return links
}

// pdfTitle 链接文本优先，其次为文件名。
func pdfTitle(link pdfLink) string {
	if link.Text != "" {
		return link.Text
	}
	if u, err := url.Parse(link.URL); err == nil {
		if base := path.Base(u.Path); base != "." && base != "/" {
			return base
		}
	}
	return link.URL
}

// renderNode 将节点渲染为轻量标记：ATX 标题、"- " 列表项、空行分隔段落，
// 表格按行线性化，图片丢弃，链接只保留文本。
func renderNode(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(strings.NewReplacer("\n", " ", "\r", " ").Replace(n.Data))
		return
	case html.DocumentNode:
		renderChildren(b, n)
		return
	case html.ElementNode:
	default:
		return
	}

	switch n.DataAtom {
	case atom.H1, atom.H2, atom.H3, atom.H4, atom.H5, atom.H6:
		level := int(n.Data[1] - '0')
		b.WriteString("\n\n" + strings.Repeat("#", level) + " ")
		var inner strings.Builder
		renderChildren(&inner, n)
		b.WriteString(textutil.CollapseWhitespace(inner.String()))
		b.WriteString("\n\n")
	case atom.Table:
		if rows := tableRows(n); len(rows) > 0 {
			b.WriteString("\n\n" + strings.Join(rows, "\n") + "\n\n")
		}
	case atom.Li:
		b.WriteString("\n- ")
		var inner strings.Builder
		renderChildren(&inner, n)
		b.WriteString(strings.TrimSpace(inner.String()))
		b.WriteString("\n")
	case atom.Br:
		b.WriteString("\n")
	case atom.Img, atom.Picture, atom.Video, atom.Audio:
	case atom.Pre:
		b.WriteString("\n\n")
		b.WriteString(nodeText(n))
		b.WriteString("\n\n")
	case atom.P, atom.Div, atom.Section, atom.Article, atom.Main, atom.Ul, atom.Ol,
		atom.Dl, atom.Dt, atom.Dd, atom.Blockquote, atom.Address, atom.Figure, atom.Hr:
		b.WriteString("\n\n")
		renderChildren(b, n)
		b.WriteString("\n\n")
	default:
		renderChildren(b, n)
	}
}

func renderChildren(b *strings.Builder, n *html.Node) {
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderNode(b, c)
	}
}

// tableRows 将表格每行的单元格以 " | " 连接，空行丢弃。
// 只取本表的行，嵌套表格的内容留在所在单元格的文本里。
func tableRows(table *html.Node) []string {
	t := goquery.NewDocumentFromNode(table).Selection
	trs := t.ChildrenFiltered("tr").AddSelection(t.ChildrenFiltered("thead, tbody, tfoot").ChildrenFiltered("tr"))

	var rows []string
	trs.Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		nonEmpty := false
		tr.ChildrenFiltered("th, td").Each(func(_ int, cell *goquery.Selection) {
			text := textutil.CollapseWhitespace(cell.Text())
			if text != "" {
				nonEmpty = true
			}
			cells = append(cells, text)
		})
		if nonEmpty {
			rows = append(rows, strings.Join(cells, " | "))
		}
	})
	return rows
}

func nodeText(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return b.String()
}

// filterNavLines 删除导航残留行。
func filterNavLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if isNavLine(line) {
			continue
		}
		kept = append(kept, line)
	}
	return textutil.CollapseInlineSpace(strings.Join(kept, "\n"))
}

func isNavLine(line string) bool {
	l := strings.ToLower(strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(line), "-#")))
	if l == "" || len(l) >= 50 {
		return false
	}
	if _, ok := navLabels[l]; ok {
		return true
	}
	for _, p := range navPrefixes {
		if strings.HasPrefix(l, p) {
			return true
		}
	}
	return false
}
