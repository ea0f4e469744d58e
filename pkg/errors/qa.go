package errors

import (
	"net/http"

	"google.golang.org/grpc/codes"
)

// QA service errors.
var (
	ErrInvalidQuestion = Register(New(MakeCode(ServiceQA, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "Invalid question", "问题无效"))

	ErrInvalidRating = Register(New(MakeCode(ServiceQA, CategoryRequest, 2),
		http.StatusBadRequest, codes.InvalidArgument, "Rating must be positive or negative", "评价只能为 positive 或 negative"))

	ErrDeviceQuotaExceeded = Register(New(MakeCode(ServiceQA, CategoryRateLimit, 1),
		http.StatusTooManyRequests, codes.ResourceExhausted,
		"You have reached the question limit for this device", "当前设备的提问次数已用完"))

	ErrGlobalQuotaExceeded = Register(New(MakeCode(ServiceQA, CategoryRateLimit, 2),
		http.StatusServiceUnavailable, codes.ResourceExhausted,
		"The assistant has reached its usage limit, please try again later", "系统提问次数已达上限"))

	ErrRetrievalFailed = Register(New(MakeCode(ServiceQA, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Retrieval failed", "检索失败"))

	ErrFeedbackFailed = Register(New(MakeCode(ServiceQA, CategoryDatabase, 1),
		http.StatusInternalServerError, codes.Internal, "Failed to store feedback", "反馈保存失败"))
)

// Ingestion errors.
var (
	ErrNoSeedURLs = Register(New(MakeCode(ServiceIngest, CategoryRequest, 1),
		http.StatusBadRequest, codes.InvalidArgument, "No URLs to ingest", "没有可抓取的 URL"))

	ErrIngestFailed = Register(New(MakeCode(ServiceIngest, CategoryInternal, 1),
		http.StatusInternalServerError, codes.Internal, "Ingestion failed", "数据导入失败"))
)
