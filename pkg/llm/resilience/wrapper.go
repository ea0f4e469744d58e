package resilience

import (
	"context"

	"github.com/kart-io/campus-qa/pkg/llm"
)

// EmbeddingProvider 为 Embedding Provider 增加重试与熔断。
type EmbeddingProvider struct {
	provider llm.EmbeddingProvider
	retry    *RetryConfig
	breaker  *Breaker
}

// WrapEmbedding 包装 Embedding Provider。
func WrapEmbedding(p llm.EmbeddingProvider, retry *RetryConfig, breaker *BreakerConfig) *EmbeddingProvider {
	return &EmbeddingProvider{
		provider: p,
		retry:    retry,
		breaker:  NewBreaker(p.Name()+"-embedding", breaker),
	}
}

func (r *EmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() error {
			var err error
			out, err = r.provider.Embed(ctx, texts)
			return err
		})
	})
	return out, err
}

func (r *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	out, err := r.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

func (r *EmbeddingProvider) Name() string { return r.provider.Name() + "-resilient" }

// Breaker 返回熔断器，用于监控。
func (r *EmbeddingProvider) Breaker() *Breaker { return r.breaker }

// ChatProvider 为 Chat Provider 增加重试与熔断。
type ChatProvider struct {
	provider llm.ChatProvider
	retry    *RetryConfig
	breaker  *Breaker
}

// WrapChat 包装 Chat Provider。
func WrapChat(p llm.ChatProvider, retry *RetryConfig, breaker *BreakerConfig) *ChatProvider {
	return &ChatProvider{
		provider: p,
		retry:    retry,
		breaker:  NewBreaker(p.Name()+"-chat", breaker),
	}
}

func (r *ChatProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	var out *llm.GenerateResponse
	err := Retry(ctx, r.retry, func() error {
		return r.breaker.Execute(func() error {
			var err error
			out, err = r.provider.Generate(ctx, req)
			return err
		})
	})
	return out, err
}

func (r *ChatProvider) Name() string { return r.provider.Name() + "-resilient" }

// Breaker 返回熔断器，用于监控。
func (r *ChatProvider) Breaker() *Breaker { return r.breaker }

var (
	_ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)
	_ llm.ChatProvider      = (*ChatProvider)(nil)
)
