// Package textutil 提供 RAG 相关的文本处理工具函数。
package textutil

import (
	"crypto/md5"
	"encoding/hex"
	"math"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	spaceRun      = regexp.MustCompile(`\s+`)
	inlineRun     = regexp.MustCompile(`[ \t]+`)
	blankLineRun  = regexp.MustCompile(`\n{3,}`)
	blankLineSep  = regexp.MustCompile(`\n\s*\n`)
	trailingSpace = regexp.MustCompile(`[ \t]+\n`)
	leadingSpace  = regexp.MustCompile(`\n[ \t]+`)
)

// CosineSimilarity 计算两个向量的余弦相似度，范围 [-1, 1]。
// 长度不一致或零向量返回 0。
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// HashString 计算字符串的 MD5 十六进制摘要。
func HashString(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

// Truncate 截断到最多 n 个字符，被截断时以 "…" 结尾。
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n-1]) + "…"
}

// Prefix 返回前 n 个字符，不追加省略号。
func Prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// CollapseWhitespace 将任意空白序列折叠为单个空格并去掉首尾空白。
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRun.ReplaceAllString(s, " "))
}

// CollapseInlineSpace 折叠空格和制表符并去掉行首尾空白，保留换行，
// 三个以上连续换行压缩为一个空行。
func CollapseInlineSpace(s string) string {
	s = inlineRun.ReplaceAllString(s, " ")
	s = trailingSpace.ReplaceAllString(s, "\n")
	s = leadingSpace.ReplaceAllString(s, "\n")
	s = blankLineRun.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// SplitBlocks 按空行（可含空白）切分文本。
func SplitBlocks(s string) []string {
	return blankLineSep.Split(s, -1)
}
