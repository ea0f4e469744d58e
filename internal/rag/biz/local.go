package biz

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/pkg/rag/textutil"
)

// LocalSourceScheme 本地文档来源 URL 的协议前缀。
const LocalSourceScheme = "file://"

// LoadLocalDocuments 递归读取 dir 下的 .pdf 与 .txt 文件，按路径排序返回。
// 来源 URL 为 file://<绝对路径>，标题为文件名。无法解析的文件记入 failures，不中断遍历。
func LoadLocalDocuments(ctx context.Context, dir string, maxPDFBytes int64) (docs []*SourceDocument, failures []IngestFailure, err error) {
	root, err := filepath.Abs(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve raw directory: %w", err)
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(p)) {
		case ".pdf", ".txt":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to walk raw directory: %w", err)
	}
	sort.Strings(paths)

	for _, p := range paths {
		doc, err := loadLocalDocument(p, maxPDFBytes)
		if err != nil {
			logger.Warnw("Skipping local document", "path", p, "error", err.Error())
			failures = append(failures, IngestFailure{URL: LocalSourceScheme + p, Error: err.Error(), err: err})
			continue
		}
		docs = append(docs, doc)
	}
	logger.Infow("Loaded local documents", "dir", root, "documents", len(docs), "failures", len(failures))
	return docs, failures, nil
}

func loadLocalDocument(p string, maxPDFBytes int64) (*SourceDocument, error) {
	source := LocalSourceScheme + p
	data, err := os.ReadFile(p)
	if err != nil {
		return nil, &FetchError{URL: source, Err: err}
	}

	doc := &SourceDocument{URL: source, Title: filepath.Base(p), RawMarkup: data}
	if strings.EqualFold(filepath.Ext(p), ".pdf") {
		if maxPDFBytes > 0 && int64(len(data)) > maxPDFBytes {
			return nil, &ExtractionError{URL: source, Err: fmt.Errorf("pdf size %d exceeds limit %d", len(data), maxPDFBytes)}
		}
		text, err := extractPDFText(data)
		if err != nil {
			return nil, &ExtractionError{URL: source, Err: err}
		}
		doc.Text = text
		doc.Kind = KindPDF
		return doc, nil
	}

	doc.Text = textutil.CollapseInlineSpace(string(data))
	doc.Kind = KindText
	return doc, nil
}
