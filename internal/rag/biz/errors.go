package biz

import (
	"errors"
	"fmt"
)

var errEmptyCompletion = errors.New("empty completion")

// FetchError 表示页面或 PDF 抓取失败：非 2xx、超时或网络错误。
type FetchError struct {
	URL string
	// StatusCode 为 0 表示请求未得到响应。
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// DomainError 表示 URL 不在允许的域名范围内，请求不会被发出。
type DomainError struct {
	URL  string
	Host string
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("host %q of %s is not an allowed domain", e.Host, e.URL)
}

// ExtractionError 表示内容解析失败（HTML 或 PDF）。
type ExtractionError struct {
	URL string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extract %s: %v", e.URL, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// EmbeddingError 表示向量化失败。
type EmbeddingError struct {
	Provider string
	Err      error
}

func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("embedding via %s: %v", e.Provider, e.Err)
}

func (e *EmbeddingError) Unwrap() error { return e.Err }

// IndexError 表示向量索引读写失败。
type IndexError struct {
	Op         string
	Collection string
	Err        error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("index %s on %s: %v", e.Op, e.Collection, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

// RetrievalError 表示检索阶段失败，内部通常包裹 EmbeddingError 或 IndexError。
type RetrievalError struct {
	Query string
	Err   error
}

func (e *RetrievalError) Error() string {
	return fmt.Sprintf("retrieve %q: %v", e.Query, e.Err)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// GenerationError 表示 LLM 生成失败。
type GenerationError struct {
	Provider string
	Err      error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generate via %s: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
