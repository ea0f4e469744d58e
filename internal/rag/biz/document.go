package biz

// DocumentKind 文档类型。
type DocumentKind string

const (
	KindHTML DocumentKind = "html"
	KindPDF  DocumentKind = "pdf"
	KindText DocumentKind = "text"
)

// SourceDocument 抓取得到的源文档，仅在导入过程中存在。
type SourceDocument struct {
	URL       string
	Title     string
	RawMarkup []byte
	// Text 清洗后的正文。
	Text string
	Kind DocumentKind
}

// Passage 文档切分后的段落。
type Passage struct {
	// ID 由 (SourceURL, SourceTitle, Index) 确定。
	ID          string
	Text        string
	SourceURL   string
	SourceTitle string
	Index       int
}

// RetrievalHit 检索命中。
type RetrievalHit struct {
	ID    string  `json:"id"`
	Text  string  `json:"text"`
	URL   string  `json:"url"`
	Title string  `json:"title"`
	Score float32 `json:"score"`
}
