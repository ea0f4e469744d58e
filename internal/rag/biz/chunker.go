package biz

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

// Chunker 将清洗后的文档切分为有界、带重叠的段落。长度以字符（rune）计。
type Chunker struct {
	maxSize int
	overlap int
	prefix  string
}

// NewChunker 创建切分器。prefix 为段落 ID 的来源前缀。
func NewChunker(maxSize, overlap int, prefix string) *Chunker {
	return &Chunker{maxSize: maxSize, overlap: overlap, prefix: prefix}
}

// Chunk 切分文档。相同输入总是得到相同的段落与 ID。
func (c *Chunker) Chunk(doc *SourceDocument) []Passage {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	pieces := SplitText(text, c.maxSize, c.overlap)
	passages := make([]Passage, 0, len(pieces))
	for i, p := range pieces {
		passages = append(passages, Passage{
			ID:          PassageID(c.prefix, doc.URL, doc.Title, i),
			Text:        p,
			SourceURL:   doc.URL,
			SourceTitle: doc.Title,
			Index:       i,
		})
	}
	return passages
}

// PassageID 返回 "<prefix>:md5(url+title):<index>"。
func PassageID(prefix, url, title string, index int) string {
	return fmt.Sprintf("%s:%s:%d", prefix, textutil.HashString(url+title), index)
}

// SplitText 按空行切块并合并到不超过 maxSize 的缓冲区；单块超长时按 maxSize 硬切，
// 相邻切片共享 overlap 个字符，切到块尾即停止。结果经过空白归一化，空块被丢弃。
func SplitText(text string, maxSize, overlap int) []string {
	if maxSize <= 0 {
		return nil
	}
	step := max(maxSize-overlap, 1)

	var raw []string
	buf := ""
	for _, block := range textutil.SplitBlocks(text) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		bufLen, blockLen := utf8.RuneCountInString(buf), utf8.RuneCountInString(block)
		if bufLen+blockLen+2 <= maxSize {
			if buf == "" {
				buf = block
			} else {
				buf += "\n\n" + block
			}
			continue
		}

		if buf != "" {
			raw = append(raw, buf)
			buf = ""
		}

		if blockLen <= maxSize {
			buf = block
			continue
		}
		runes := []rune(block)
		for i := 0; ; i += step {
			end := min(i+maxSize, len(runes))
			raw = append(raw, string(runes[i:end]))
			if end == len(runes) {
				break
			}
		}
	}
	if buf != "" {
		raw = append(raw, buf)
	}

	chunks := make([]string, 0, len(raw))
	for _, r := range raw {
		if n := textutil.CollapseWhitespace(r); n != "" {
			chunks = append(chunks, n)
		}
	}
	return chunks
}
