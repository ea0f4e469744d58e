// Package handler provides HTTP handlers for the QA service.
package handler

import (
	"context"
	stderrors "errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/biz"
	"github.com/kart-io/campus-qa/internal/rag/feedback"
	"github.com/kart-io/campus-qa/internal/rag/usage"
	"github.com/kart-io/campus-qa/pkg/errors"
	"github.com/kart-io/campus-qa/pkg/utils/response"
	"github.com/kart-io/campus-qa/pkg/validator"
)

// Config holds handler settings.
type Config struct {
	// AnswerTimeout bounds one Ask call.
	AnswerTimeout time.Duration
	// FeedbackListLimit caps GET /feedback.
	FeedbackListLimit int
	// MaxQuestionLength rejects longer questions.
	MaxQuestionLength int
}

// QAHandler handles QA HTTP requests.
type QAHandler struct {
	service  *biz.Service
	limiter  *usage.Limiter
	feedback *feedback.Store
	config   *Config
}

// NewQAHandler creates a QAHandler. limiter and feedbackStore may be nil
// when the corresponding features are disabled.
func NewQAHandler(service *biz.Service, limiter *usage.Limiter, feedbackStore *feedback.Store, config *Config) *QAHandler {
	if config.FeedbackListLimit <= 0 {
		config.FeedbackListLimit = 100
	}
	if config.MaxQuestionLength <= 0 {
		config.MaxQuestionLength = 1000
	}
	return &QAHandler{service: service, limiter: limiter, feedback: feedbackStore, config: config}
}

// AskRequest is the body of POST /v1/qa/ask.
type AskRequest struct {
	Question string `json:"question" validate:"required"`
}

// bind decodes the JSON body into req and validates it, returning the first
// failure in the caller's language.
func bind(c *gin.Context, req any) *validator.Error {
	if err := c.ShouldBindJSON(req); err != nil {
		return &validator.Error{Errors: []validator.FieldError{{Field: "body", Tag: "json", Message: err.Error()}}}
	}
	err := validator.Struct(req, validator.LangFromHeader(c.GetHeader("Accept-Language")))
	if err == nil {
		return nil
	}
	var verr *validator.Error
	if stderrors.As(err, &verr) {
		return verr
	}
	return &validator.Error{Errors: []validator.FieldError{{Field: "body", Message: err.Error()}}}
}

// Ask answers a question.
func (h *QAHandler) Ask(c *gin.Context) {
	var req AskRequest
	if verr := bind(c, &req); verr != nil {
		response.Fail(c, errors.ErrInvalidQuestion.WithMessage(verr.First().Message))
		return
	}
	if len([]rune(req.Question)) > h.config.MaxQuestionLength {
		response.Fail(c, errors.ErrInvalidQuestion.WithMessage("question is too long"))
		return
	}

	ctx := c.Request.Context()
	if h.config.AnswerTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.AnswerTimeout)
		defer cancel()
	}

	ans, err := h.service.Ask(ctx, req.Question)
	if err != nil {
		if stderrors.Is(err, biz.ErrEmptyQuestion) {
			err = errors.ErrInvalidQuestion.WithCause(err)
		}
		response.Fail(c, err)
		return
	}
	response.OK(c, ans)
}

// Usage reports the caller's remaining questions.
func (h *QAHandler) Usage(c *gin.Context) {
	if h.limiter == nil {
		response.OK(c, gin.H{"enabled": false})
		return
	}
	status, err := h.limiter.Status(c.Request.Context())
	if err != nil {
		logger.Errorw("Failed to read usage", "error", err.Error())
		response.Fail(c, errors.ErrServiceUnavailable.WithCause(err))
		return
	}
	response.OK(c, status)
}

// FeedbackRequest is the body of POST /v1/qa/feedback.
type FeedbackRequest struct {
	Question string `json:"question" validate:"required"`
	Answer   string `json:"answer"`
	Rating   string `json:"rating" validate:"required,rating"`
	Comment  string `json:"comment" validate:"max=2000"`
}

// SubmitFeedback stores a rating for an answer.
func (h *QAHandler) SubmitFeedback(c *gin.Context) {
	var req FeedbackRequest
	if verr := bind(c, &req); verr != nil {
		if verr.First().Field == "rating" {
			response.Fail(c, errors.ErrInvalidRating.WithMessage(verr.First().Message))
			return
		}
		response.Fail(c, errors.ErrInvalidParam.WithMessage(verr.First().Message))
		return
	}
	rating, err := feedback.ParseRating(req.Rating)
	if err != nil {
		response.Fail(c, errors.ErrInvalidRating)
		return
	}

	entry, err := h.feedback.Add(c.Request.Context(), req.Question, req.Answer, rating, req.Comment)
	if err != nil {
		logger.Errorw("Failed to store feedback", "error", err.Error())
		response.Fail(c, errors.ErrFeedbackFailed.WithCause(err))
		return
	}
	response.OK(c, entry)
}

// ListFeedback returns recent feedback, newest first. ?limit= is capped.
func (h *QAHandler) ListFeedback(c *gin.Context) {
	limit := h.config.FeedbackListLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			response.Fail(c, errors.ErrInvalidParam.WithMessage("limit must be a positive integer"))
			return
		}
		limit = min(n, limit)
	}

	entries, err := h.feedback.List(c.Request.Context(), limit)
	if err != nil {
		response.Fail(c, errors.ErrDatabase.WithCause(err))
		return
	}
	response.OK(c, gin.H{"items": entries, "count": len(entries)})
}

// FeedbackStats returns satisfaction statistics.
func (h *QAHandler) FeedbackStats(c *gin.Context) {
	stats, err := h.feedback.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, errors.ErrDatabase.WithCause(err))
		return
	}
	response.OK(c, stats)
}

// Stats returns index and service statistics.
func (h *QAHandler) Stats(c *gin.Context) {
	stats, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Fail(c, errors.ErrServiceUnavailable.WithCause(err))
		return
	}
	response.OK(c, stats)
}

// IngestRequest is the body of POST /v1/qa/ingest.
type IngestRequest struct {
	URLs []string `json:"urls" validate:"dive,web_url"`
}

// Ingest fetches and indexes the given URLs synchronously.
func (h *QAHandler) Ingest(c *gin.Context) {
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage(err.Error()))
		return
	}
	urls := make([]string, 0, len(req.URLs))
	for _, u := range req.URLs {
		if u = strings.TrimSpace(u); u != "" {
			urls = append(urls, u)
		}
	}
	if len(urls) == 0 {
		response.Fail(c, errors.ErrNoSeedURLs)
		return
	}
	req.URLs = urls
	if err := validator.Struct(&req, validator.LangFromHeader(c.GetHeader("Accept-Language"))); err != nil {
		response.Fail(c, errors.ErrInvalidParam.WithMessage(err.Error()))
		return
	}

	ctx := c.Request.Context()
	report, err := h.service.Ingest(ctx, urls)
	if err != nil {
		response.Fail(c, errors.ErrIngestFailed.WithCause(err))
		return
	}

	// 索引已变化，缓存的回答可能过期
	if n, err := h.service.ClearCache(ctx); err != nil {
		logger.Warnw("Failed to clear answer cache after ingestion", "error", err.Error())
	} else if n > 0 {
		logger.Infow("Answer cache cleared after ingestion", "keys", n)
	}
	response.OK(c, report)
}

// ClearCache drops every cached answer.
func (h *QAHandler) ClearCache(c *gin.Context) {
	n, err := h.service.ClearCache(c.Request.Context())
	if err != nil {
		response.Fail(c, errors.ErrServiceUnavailable.WithCause(err))
		return
	}
	response.OK(c, gin.H{"deleted": n})
}
