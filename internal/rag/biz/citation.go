package biz

import (
	"fmt"
	"strings"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

// Citation 引用来源。
type Citation struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Label 标题为空时以 URL 代替。
func (c Citation) Label() string {
	if strings.TrimSpace(c.Title) != "" {
		return c.Title
	}
	return c.URL
}

// SourcePreview 命中段落的截断预览。
type SourcePreview struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Score   float32 `json:"score"`
	Preview string  `json:"preview"`
}

// buildCitations 按命中顺序按 URL 去重，取前 limit 个。
func buildCitations(hits []RetrievalHit, limit int) []Citation {
	all := make([]Citation, 0, len(hits))
	for _, h := range hits {
		if h.URL != "" {
			all = append(all, Citation{Title: h.Title, URL: h.URL})
		}
	}
	return dedupeCitations(all, limit)
}

func dedupeCitations(citations []Citation, limit int) []Citation {
	seen := make(map[string]struct{}, len(citations))
	out := make([]Citation, 0, limit)
	for _, c := range citations {
		if len(out) == limit {
			break
		}
		if _, ok := seen[c.URL]; ok {
			continue
		}
		seen[c.URL] = struct{}{}
		out = append(out, c)
	}
	return out
}

// formatWithCitations 在正文后追加 **Citations:** 列表。
func formatWithCitations(body string, citations []Citation) string {
	if len(citations) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString(strings.TrimSpace(body))
	b.WriteString("\n\n**Citations:**")
	for _, c := range citations {
		fmt.Fprintf(&b, "\n- [%s](%s)", c.Label(), c.URL)
	}
	return b.String()
}

// buildPreviews 为每个命中生成 n 个字符以内的预览。
func buildPreviews(hits []RetrievalHit, n int) []SourcePreview {
	out := make([]SourcePreview, 0, len(hits))
	for _, h := range hits {
		out = append(out, SourcePreview{
			Title:   h.Title,
			URL:     h.URL,
			Score:   h.Score,
			Preview: textutil.Truncate(h.Text, n),
		})
	}
	return out
}
