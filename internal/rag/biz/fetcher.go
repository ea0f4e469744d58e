package biz

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/kart-io/logger"
	"golang.org/x/time/rate"

	"github.com/kart-io/campus-qa/pkg/infra/tracing"
	"github.com/kart-io/campus-qa/pkg/utils/httpclient"
)

// FetcherConfig 抓取器配置。
type FetcherConfig struct {
	// AllowedDomains 允许的域名，子域名同样允许。为空表示不限制。
	AllowedDomains []string
	UserAgent      string
	PageTimeout    time.Duration
	PDFTimeout     time.Duration
	// Delay 相邻两次网络请求的最小间隔，0 表示不限速。
	Delay      time.Duration
	MaxRetries int
	FollowPDFs bool
	// MaxPDFBytes PDF 大小上限，0 表示不限制。
	MaxPDFBytes int64
}

// Fetcher 负责抓取页面与同站 PDF 并清洗为纯文本。
type Fetcher struct {
	client  *resty.Client
	limiter *rate.Limiter
	config  *FetcherConfig
}

// NewFetcher 创建抓取器实例。重定向的每一跳同样经过域名校验。
func NewFetcher(config *FetcherConfig) *Fetcher {
	limit := rate.Inf
	if config.Delay > 0 {
		limit = rate.Every(config.Delay)
	}
	f := &Fetcher{
		limiter: rate.NewLimiter(limit, 1),
		config:  config,
	}
	f.client = httpclient.New(httpclient.Config{
		Timeout:    max(config.PageTimeout, config.PDFTimeout),
		MaxRetries: config.MaxRetries,
		UserAgent:  config.UserAgent,
		CheckRedirect: func(req *http.Request, _ []*http.Request) error {
			return f.CheckDomain(req.URL.String())
		},
	})
	return f
}

// CheckDomain 校验 URL 的主机是否在允许范围内。
func (f *Fetcher) CheckDomain(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &FetchError{URL: rawURL, Err: fmt.Errorf("invalid url")}
	}
	if len(f.config.AllowedDomains) == 0 {
		return nil
	}

	host := strings.ToLower(u.Hostname())
	for _, d := range f.config.AllowedDomains {
		d = strings.ToLower(strings.TrimPrefix(d, "."))
		if host == d || strings.HasSuffix(host, "."+d) {
			return nil
		}
	}
	return &DomainError{URL: rawURL, Host: host}
}

// FetchDocument 抓取单个 URL。HTML 页面被清洗为正文，PDF 被提取为纯文本。
func (f *Fetcher) FetchDocument(ctx context.Context, rawURL string) (*SourceDocument, error) {
	doc, _, err := f.fetch(ctx, rawURL)
	return doc, err
}

func (f *Fetcher) fetch(ctx context.Context, rawURL string) (*SourceDocument, []pdfLink, error) {
	if err := f.CheckDomain(rawURL); err != nil {
		return nil, nil, err
	}

	timeout := f.config.PageTimeout
	if isPDFURL(rawURL) {
		timeout = f.config.PDFTimeout
	}
	body, contentType, err := f.get(ctx, rawURL, timeout)
	if err != nil {
		return nil, nil, err
	}

	if isPDFURL(rawURL) || strings.Contains(contentType, "application/pdf") {
		doc, err := f.pdfDocument(rawURL, pdfTitle(pdfLink{URL: rawURL}), body)
		return doc, nil, err
	}

	page, err := parseHTML(rawURL, body)
	if err != nil {
		return nil, nil, &ExtractionError{URL: rawURL, Err: err}
	}
	logger.Debugw("Fetched page", "url", rawURL, "chars", len(page.Text), "pdfs", len(page.PDFs))
	return &SourceDocument{
		URL:       rawURL,
		Title:     page.Title,
		RawMarkup: body,
		Text:      page.Text,
		Kind:      KindHTML,
	}, page.PDFs, nil
}

// FetchAll 抓取页面及其链接的同站 PDF。只有页面本身失败时返回错误，
// 单个 PDF 失败只记录日志并跳过。
func (f *Fetcher) FetchAll(ctx context.Context, rawURL string) ([]*SourceDocument, error) {
	doc, links, err := f.fetch(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	docs := []*SourceDocument{doc}
	if !f.config.FollowPDFs {
		return docs, nil
	}

	for _, link := range links {
		if ctx.Err() != nil {
			break
		}
		pdfDoc, err := f.fetchPDF(ctx, link)
		if err != nil {
			logger.Warnw("Skipping PDF", "url", link.URL, "page", rawURL, "error", err.Error())
			continue
		}
		docs = append(docs, pdfDoc)
	}
	return docs, nil
}

func (f *Fetcher) fetchPDF(ctx context.Context, link pdfLink) (*SourceDocument, error) {
	if err := f.CheckDomain(link.URL); err != nil {
		return nil, err
	}
	body, _, err := f.get(ctx, link.URL, f.config.PDFTimeout)
	if err != nil {
		return nil, err
	}
	return f.pdfDocument(link.URL, pdfTitle(link), body)
}

func (f *Fetcher) pdfDocument(rawURL, title string, body []byte) (*SourceDocument, error) {
	if f.config.MaxPDFBytes > 0 && int64(len(body)) > f.config.MaxPDFBytes {
		return nil, &ExtractionError{URL: rawURL, Err: fmt.Errorf("pdf size %d exceeds limit %d", len(body), f.config.MaxPDFBytes)}
	}
	text, err := extractPDFText(body)
	if err != nil {
		return nil, &ExtractionError{URL: rawURL, Err: err}
	}
	logger.Debugw("Fetched PDF", "url", rawURL, "chars", len(text))
	return &SourceDocument{
		URL:       rawURL,
		Title:     title,
		RawMarkup: body,
		Text:      text,
		Kind:      KindPDF,
	}, nil
}

// get 在限速后发出 GET 请求，返回响应体与 Content-Type。
// 重定向到允许范围之外时返回 *DomainError。
func (f *Fetcher) get(ctx context.Context, rawURL string, timeout time.Duration) (body []byte, contentType string, err error) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Fetcher.get", tracing.String("url.full", rawURL))
	defer func() {
		tracing.RecordError(ctx, err)
		span.End()
	}()

	if err := f.limiter.Wait(ctx); err != nil {
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	resp, err := f.client.R().SetContext(ctx).Get(rawURL)
	if err := httpclient.CheckResponse(resp, err); err != nil {
		var de *DomainError
		if errors.As(err, &de) {
			return nil, "", de
		}
		var se *httpclient.StatusError
		if errors.As(err, &se) {
			return nil, "", &FetchError{URL: rawURL, StatusCode: se.StatusCode, Err: err}
		}
		return nil, "", &FetchError{URL: rawURL, Err: err}
	}
	return resp.Body(), resp.Header().Get("Content-Type"), nil
}

func isPDFURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Path), ".pdf")
}
