package biz

import (
	"context"
	"strings"
	"time"

	"github.com/kart-io/campus-qa/internal/rag/metrics"
	ctxlog "github.com/kart-io/campus-qa/pkg/infra/logger"
	"github.com/kart-io/campus-qa/pkg/infra/tracing"
	"github.com/kart-io/campus-qa/pkg/llm"
)

// AnswerState 回答决策结果。
type AnswerState string

const (
	StateRetrievalFailed  AnswerState = "retrieval_failed"
	StateNoHits           AnswerState = "no_hits"
	StateLowConfidence    AnswerState = "low_confidence"
	StateStructuredGap    AnswerState = "structured_gap_fallback"
	StateGenerate         AnswerState = "generate"
	StateGenerationFailed AnswerState = "generation_failed"
	// StateNotInContext 模型判断上下文中没有答案，原样返回固定回复且不附引用。
	StateNotInContext AnswerState = "not_in_context"
	StateOffTopic         AnswerState = "off_topic"
)

// DefaultConfidenceFloor 默认置信度下限。
const DefaultConfidenceFloor = 0.10

// Answer 回答结果。
type Answer struct {
	Text      string          `json:"answer"`
	Citations []Citation      `json:"citations"`
	State     AnswerState     `json:"state"`
	Sources   []SourcePreview `json:"sources,omitempty"`
	Cached    bool            `json:"cached"`
}

// AnswererConfig 回答器配置。
type AnswererConfig struct {
	// ConfidenceFloor 最高分低于该值时不调用 LLM，0 表示关闭。
	ConfidenceFloor float64
	// CitationCount 引用条数上限。
	CitationCount int
	// Temperature 生成温度。
	Temperature float64
	// MaxTokens 最大生成 token 数，0 表示供应商默认值。
	MaxTokens int
	// Timeout 单次生成超时。
	Timeout time.Duration
	// AssistantName 系统提示中的助手身份描述。
	AssistantName string
	// HoursGuidanceURL 开放时间兜底回复中额外附带的页面。
	HoursGuidanceURL string
	// StructuredGap 结构化缺失判断，参数为命中段落的标题与正文拼接；为 nil 时关闭该分支。
	StructuredGap Predicate
}

// Answerer 在固定回复、结构化兜底与 LLM 生成之间决策。
type Answerer struct {
	chat   llm.ChatProvider
	config *AnswererConfig
}

// NewAnswerer 创建回答器实例。
func NewAnswerer(chat llm.ChatProvider, config *AnswererConfig) *Answerer {
	if config.CitationCount <= 0 {
		config.CitationCount = 3
	}
	return &Answerer{chat: chat, config: config}
}

// Answer 按顺序匹配第一个成立的状态：检索失败、无命中、低置信度、结构化兜底、生成。
func (a *Answerer) Answer(ctx context.Context, question string, hits []RetrievalHit, retrievalErr error) *Answer {
	switch {
	case retrievalErr != nil:
		ctxlog.GetLogger(ctx).Warnw("Retrieval failed, returning fallback reply", "error", retrievalErr.Error())
		return notAvailable(StateRetrievalFailed)

	case len(hits) == 0:
		return notAvailable(StateNoHits)

	case a.config.ConfidenceFloor > 0 && float64(hits[0].Score) < a.config.ConfidenceFloor:
		ctxlog.GetLogger(ctx).Debugw("Top score below confidence floor", "score", hits[0].Score, "floor", a.config.ConfidenceFloor)
		return notAvailable(StateLowConfidence)

	case a.config.StructuredGap != nil && a.config.StructuredGap(hitsBlob(hits)):
		citations := buildCitations(hits, a.config.CitationCount)
		if a.config.HoursGuidanceURL != "" {
			citations = append([]Citation{{Title: "Library Hours", URL: a.config.HoursGuidanceURL}}, citations...)
			citations = dedupeCitations(citations, a.config.CitationCount)
		}
		return &Answer{
			Text:      formatWithCitations(HoursGuidanceReply, citations),
			Citations: citations,
			State:     StateStructuredGap,
		}
	}

	return a.generate(ctx, question, hits)
}

func (a *Answerer) generate(ctx context.Context, question string, hits []RetrievalHit) (ans *Answer) {
	ctx, span := tracing.StartSpan(ctx, tracerName, "Answerer.generate",
		tracing.String("llm.provider", a.chat.Name()),
		tracing.Int("hits", len(hits)),
	)
	defer func() {
		span.SetAttributes(tracing.String("answer.state", string(ans.State)))
		span.End()
	}()

	if a.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.config.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := a.chat.Generate(ctx, &llm.GenerateRequest{
		System:      buildSystemPrompt(a.config.AssistantName),
		Prompt:      buildUserPrompt(question, hits),
		Temperature: a.config.Temperature,
		MaxTokens:   a.config.MaxTokens,
	})
	if err == nil && strings.TrimSpace(resp.Content) == "" {
		err = errEmptyCompletion
	}

	var promptTokens, completionTokens int
	if err == nil && resp.TokenUsage != nil {
		promptTokens, completionTokens = resp.TokenUsage.PromptTokens, resp.TokenUsage.CompletionTokens
	}
	metrics.GetQAMetrics().RecordLLMCall(time.Since(start), promptTokens, completionTokens, err)

	if err != nil {
		gerr := &GenerationError{Provider: a.chat.Name(), Err: err}
		tracing.RecordError(ctx, gerr)
		ctxlog.GetLogger(ctx).Errorw("LLM generation failed", "error", gerr.Error())
		return notAvailable(StateGenerationFailed)
	}

	body := strings.TrimSpace(resp.Content)
	if strings.Trim(body, `"`) == NotAvailableReply {
		return notAvailable(StateNotInContext)
	}

	citations := buildCitations(hits, a.config.CitationCount)
	return &Answer{
		Text:      formatWithCitations(body, citations),
		Citations: citations,
		State:     StateGenerate,
	}
}

func notAvailable(state AnswerState) *Answer {
	return &Answer{Text: NotAvailableReply, Citations: []Citation{}, State: state}
}

// hitsBlob 拼接命中段落的标题与正文，供谓词判断。
func hitsBlob(hits []RetrievalHit) string {
	parts := make([]string, 0, len(hits))
	for _, h := range hits {
		parts = append(parts, h.Title+" "+h.Text)
	}
	return strings.Join(parts, " ")
}
