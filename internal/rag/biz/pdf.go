package biz

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

// extractPDFText 按页提取 PDF 纯文本，页间以空行分隔。
// 无法解析的单页被跳过。
func extractPDFText(data []byte) (text string, err error) {
	// 畸形文件可能在解析器内部触发 panic
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed pdf: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	var b strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(strings.TrimSpace(pageText))
	}
	return textutil.CollapseInlineSpace(b.String()), nil
}
