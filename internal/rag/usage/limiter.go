package usage

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/kart-io/logger"

	"github.com/kart-io/campus-qa/internal/rag/metrics"
	"github.com/kart-io/campus-qa/pkg/errors"
	ctxlog "github.com/kart-io/campus-qa/pkg/infra/logger"
)

const (
	ScopeDevice = "device"
	ScopeGlobal = "global"
)

// Config 限额配置。
type Config struct {
	DeviceLimit     int64
	GlobalLimit     int64
	AlertThresholds []int64
	KeyPrefix       string
}

// Limiter 提问配额校验。
type Limiter struct {
	store       Store
	fingerprint Fingerprinter
	config      *Config
}

// NewLimiter 创建限额器。fingerprint 为 nil 时使用请求头指纹并以随机标识兜底。
func NewLimiter(store Store, fingerprint Fingerprinter, config *Config) *Limiter {
	if fingerprint == nil {
		fingerprint = Chain(HeaderFingerprint(false), RandomFingerprint())
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "qa:usage:"
	}
	return &Limiter{store: store, fingerprint: fingerprint, config: config}
}

func (l *Limiter) globalKey() string { return l.config.KeyPrefix + "global" }

func (l *Limiter) deviceKey(device string) string {
	return l.config.KeyPrefix + "device:" + device
}

// Middleware 为请求识别设备并写入请求上下文，计数在 Allow 中完成。
func (l *Limiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		device := l.fingerprint(c.Request)
		ctx := ctxlog.WithDevice(WithDevice(c.Request.Context(), device), device)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// Allow 消耗一次配额。先检查全局上限，再对设备计数自增；
// 计数存储出错时放行并记录日志。
func (l *Limiter) Allow(ctx context.Context) error {
	total, err := l.store.Get(ctx, l.globalKey())
	if err != nil {
		ctxlog.GetLogger(ctx).Errorw("usage store error", "error", err.Error(), "key", l.globalKey())
		return nil
	}
	if total >= l.config.GlobalLimit {
		metrics.GetQAMetrics().RecordUsageRejected(ScopeGlobal)
		return errors.ErrGlobalQuotaExceeded
	}

	device := DeviceFrom(ctx)
	if device == "" {
		device = RandomFingerprint()(nil)
	}
	n, err := l.store.Incr(ctx, l.deviceKey(device))
	if err != nil {
		ctxlog.GetLogger(ctx).Errorw("usage store error", "error", err.Error(), "key", l.deviceKey(device))
		return nil
	}
	if n > l.config.DeviceLimit {
		metrics.GetQAMetrics().RecordUsageRejected(ScopeDevice)
		return errors.ErrDeviceQuotaExceeded
	}

	total, err = l.store.Incr(ctx, l.globalKey())
	if err != nil {
		ctxlog.GetLogger(ctx).Errorw("usage store error", "error", err.Error(), "key", l.globalKey())
		return nil
	}
	if total > l.config.GlobalLimit {
		metrics.GetQAMetrics().RecordUsageRejected(ScopeGlobal)
		return errors.ErrGlobalQuotaExceeded
	}
	l.alert(total)
	return nil
}

// alert INCR 保证每个阈值只会被一个请求命中。
func (l *Limiter) alert(total int64) {
	for _, threshold := range l.config.AlertThresholds {
		if total == threshold {
			logger.Warnw("Usage alert threshold reached",
				"total", total,
				"threshold", threshold,
				"global_limit", l.config.GlobalLimit,
			)
		}
	}
}

// Status 当前设备与全局的用量。
type Status struct {
	DeviceQueries int64 `json:"device_queries"`
	DeviceLimit   int64 `json:"device_limit"`
	Remaining     int64 `json:"remaining"`
	TotalQueries  int64 `json:"total_queries"`
	GlobalLimit   int64 `json:"global_limit"`
}

// Status 返回 ctx 中设备的用量。
func (l *Limiter) Status(ctx context.Context) (*Status, error) {
	total, err := l.store.Get(ctx, l.globalKey())
	if err != nil {
		return nil, err
	}
	var used int64
	if device := DeviceFrom(ctx); device != "" {
		if used, err = l.store.Get(ctx, l.deviceKey(device)); err != nil {
			return nil, err
		}
	}
	used = min(used, l.config.DeviceLimit)
	return &Status{
		DeviceQueries: used,
		DeviceLimit:   l.config.DeviceLimit,
		Remaining:     l.config.DeviceLimit - used,
		TotalQueries:  min(total, l.config.GlobalLimit),
		GlobalLimit:   l.config.GlobalLimit,
	}, nil
}
