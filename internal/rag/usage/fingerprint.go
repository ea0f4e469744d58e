package usage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/kart-io/campus-qa/pkg/id"
	"github.com/kart-io/campus-qa/pkg/infra/middleware"
)

// Fingerprinter 从请求中推导设备标识，无法推导时返回空串。
type Fingerprinter func(req *http.Request) string

// HeaderFingerprint 以 sha256(客户端 IP + "_" + User-Agent) 作为设备标识。
func HeaderFingerprint(trustProxyHeaders bool) Fingerprinter {
	return func(req *http.Request) string {
		ip := middleware.ClientIP(req, trustProxyHeaders)
		ua := req.UserAgent()
		if ip == "" && ua == "" {
			return ""
		}
		sum := sha256.Sum256([]byte(ip + "_" + ua))
		return hex.EncodeToString(sum[:])
	}
}

// RandomFingerprint 每次返回新的随机标识。
func RandomFingerprint() Fingerprinter {
	return func(*http.Request) string {
		return id.NewULID()
	}
}

// Chain 返回第一个非空的标识。
func Chain(fingerprinters ...Fingerprinter) Fingerprinter {
	return func(req *http.Request) string {
		for _, f := range fingerprinters {
			if fp := f(req); fp != "" {
				return fp
			}
		}
		return ""
	}
}

type deviceKey struct{}

// WithDevice 将设备标识写入 ctx。
func WithDevice(ctx context.Context, device string) context.Context {
	return context.WithValue(ctx, deviceKey{}, device)
}

// DeviceFrom 读取设备标识。
func DeviceFrom(ctx context.Context) string {
	if v, ok := ctx.Value(deviceKey{}).(string); ok {
		return v
	}
	return ""
}
