package resilience

import (
	"context"

	"github.com/kart-io/docqa/pkg/llm"
)

// EmbeddingProvider 带熔断保护的 Embedding Provider。
// 重试由底层 httpclient 负责，这里只负责快速失败。
type EmbeddingProvider struct {
	llm.EmbeddingProvider
	breaker *Breaker
}

var _ llm.EmbeddingProvider = (*EmbeddingProvider)(nil)

// WrapEmbeddingProvider 为 provider 加上熔断器。
func WrapEmbeddingProvider(provider llm.EmbeddingProvider, cfg *Config) *EmbeddingProvider {
	return &EmbeddingProvider{
		EmbeddingProvider: provider,
		breaker:           New("embedding/"+provider.Name(), cfg),
	}
}

// Embed 为多个文本生成向量嵌入。
func (p *EmbeddingProvider) Embed(ctx context.Context, texts []string) (out [][]float32, err error) {
	err = p.breaker.Do(ctx, func(ctx context.Context) error {
		out, err = p.EmbeddingProvider.Embed(ctx, texts)
		return err
	})
	return out, err
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *EmbeddingProvider) EmbedSingle(ctx context.Context, text string) (out []float32, err error) {
	err = p.breaker.Do(ctx, func(ctx context.Context) error {
		out, err = p.EmbeddingProvider.EmbedSingle(ctx, text)
		return err
	})
	return out, err
}

// Breaker 返回熔断器，用于状态上报。
func (p *EmbeddingProvider) Breaker() *Breaker {
	return p.breaker
}
