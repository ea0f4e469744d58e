// Package llm provides LLM provider configuration options.
package llm

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/campus-qa/pkg/options"
)

var _ options.IOptions = (*ProviderOptions)(nil)

// ProviderOptions 定义 LLM 供应商配置。
type ProviderOptions struct {
	// Provider 供应商名称（gemini, openai, ollama, hugot）。
	Provider string `json:"provider" mapstructure:"provider"`

	// BaseURL API 基础地址，为空时使用供应商默认值。
	BaseURL string `json:"base-url" mapstructure:"base-url"`

	// APIKey API 密钥（gemini、openai 需要）。
	APIKey string `json:"api-key" mapstructure:"api-key"`

	// Model 使用的模型名称。
	Model string `json:"model" mapstructure:"model"`

	// Temperature 生成温度，问答场景固定为 0。
	Temperature float64 `json:"temperature" mapstructure:"temperature"`

	// MaxTokens 最大生成 token 数，0 表示使用供应商默认值。
	MaxTokens int `json:"max-tokens" mapstructure:"max-tokens"`

	// Timeout 单次请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max-retries" mapstructure:"max-retries"`

	// ModelDir 本地模型目录（hugot 使用）。
	ModelDir string `json:"model-dir" mapstructure:"model-dir"`

	// CircuitBreaker 是否启用熔断器包装。
	CircuitBreaker bool `json:"circuit-breaker" mapstructure:"circuit-breaker"`
}

// NewEmbeddingOptions 创建默认 Embedding 供应商配置。
func NewEmbeddingOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:       "gemini",
		Model:          "text-embedding-004",
		Timeout:        30 * time.Second,
		MaxRetries:     3,
		ModelDir:       "_output/models",
		CircuitBreaker: true,
	}
}

// NewChatOptions 创建默认 Chat 供应商配置。
func NewChatOptions() *ProviderOptions {
	return &ProviderOptions{
		Provider:       "gemini",
		Model:          "gemini-1.5-flash",
		Temperature:    0,
		Timeout:        60 * time.Second,
		MaxRetries:     2,
		CircuitBreaker: true,
	}
}

// ToConfigMap 转换为配置 map，用于供应商工厂。
func (o *ProviderOptions) ToConfigMap() map[string]any {
	return map[string]any{
		"base_url":    o.BaseURL,
		"api_key":     o.APIKey,
		"embed_model": o.Model,
		"chat_model":  o.Model,
		"temperature": o.Temperature,
		"max_tokens":  o.MaxTokens,
		"timeout":     o.Timeout,
		"max_retries": o.MaxRetries,
		"model_dir":   o.ModelDir,
	}
}

// AddFlags adds flags for LLM provider options to the specified FlagSet.
// The first prefix names the role, e.g. "embedding" or "chat".
func (o *ProviderOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...)
	fs.StringVar(&o.Provider, p+"provider", o.Provider, "LLM provider (gemini, openai, ollama, hugot).")
	fs.StringVar(&o.BaseURL, p+"base-url", o.BaseURL, "LLM API base URL, empty for the provider default.")
	fs.StringVar(&o.APIKey, p+"api-key", o.APIKey, "LLM API key.")
	fs.StringVar(&o.Model, p+"model", o.Model, "LLM model name.")
	fs.Float64Var(&o.Temperature, p+"temperature", o.Temperature, "Sampling temperature.")
	fs.IntVar(&o.MaxTokens, p+"max-tokens", o.MaxTokens, "Maximum tokens to generate, 0 for the provider default.")
	fs.DurationVar(&o.Timeout, p+"timeout", o.Timeout, "LLM request timeout.")
	fs.IntVar(&o.MaxRetries, p+"max-retries", o.MaxRetries, "LLM maximum number of retries.")
	fs.StringVar(&o.ModelDir, p+"model-dir", o.ModelDir, "Directory for locally downloaded models (hugot).")
	fs.BoolVar(&o.CircuitBreaker, p+"circuit-breaker", o.CircuitBreaker, "Wrap the provider with retry and circuit breaker.")
}

// Validate validates the LLM provider options.
func (o *ProviderOptions) Validate() []error {
	if o == nil {
		return nil
	}

	var errs []error
	if o.Provider == "" {
		errs = append(errs, fmt.Errorf("provider is required"))
	}
	if o.Model == "" {
		errs = append(errs, fmt.Errorf("model is required"))
	}
	switch o.Provider {
	case "gemini", "openai":
		if o.APIKey == "" {
			errs = append(errs, fmt.Errorf("api-key is required for %s provider", o.Provider))
		}
	}
	if o.Temperature < 0 || o.Temperature > 2 {
		errs = append(errs, fmt.Errorf("temperature must be within [0, 2]"))
	}
	if o.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive"))
	}
	return errs
}

// Complete completes the LLM provider options with defaults.
func (o *ProviderOptions) Complete() error {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	return nil
}
