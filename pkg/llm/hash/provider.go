// Package hash 提供无需外部服务的特征哈希 Embedding 供应商。
//
// 文本被切分为小写词元，词元与相邻词元对（bigram）经 FNV-1a 哈希映射到固定维度，
// 哈希的最高位决定符号，词频取对数缩放，最后做 L2 归一化。
// 相同文本总是得到相同向量，词汇重叠越多的文本距离越近。
package hash

import (
	"context"
	"hash/fnv"
	"math"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/cases"

	"github.com/kart-io/docqa/pkg/llm"
)

// ProviderName 是哈希供应商的名称标识符。
const ProviderName = "hash"

// DefaultDimension 是默认向量维度。
const DefaultDimension = 384

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, NewProvider)
}

// Provider 特征哈希 Embedding 实现。
type Provider struct {
	dim int
}

// NewProvider 从配置 map 创建供应商，支持 "dimension"。
func NewProvider(config map[string]any) (llm.EmbeddingProvider, error) {
	return New(llm.ConfigInt(config, "dimension", DefaultDimension)), nil
}

// New 创建指定维度的供应商。
func New(dim int) *Provider {
	if dim <= 0 {
		dim = DefaultDimension
	}
	return &Provider{dim: dim}
}

// Name 返回供应商名称。
func (p *Provider) Name() string { return ProviderName }

// Model 返回模型标识。
func (p *Provider) Model() string { return "feature-hash-" + strconv.Itoa(p.dim) }

// Dimension 返回向量维度。
func (p *Provider) Dimension() int { return p.dim }

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = p.vector(t)
	}
	return out, nil
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(_ context.Context, text string) ([]float32, error) {
	return p.vector(text), nil
}

func (p *Provider) vector(text string) []float32 {
	counts := make(map[string]float64)
	tokens := p.tokenize(text)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok] += 0.5
		}
	}

	vec := make([]float64, p.dim)
	for feature, tf := range counts {
		h := fnv.New64a()
		_, _ = h.Write([]byte(feature))
		sum := h.Sum64()
		idx := int(sum % uint64(p.dim))
		weight := 1 + math.Log(tf)
		if sum>>63 == 1 {
			weight = -weight
		}
		vec[idx] += weight
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	out := make([]float32, p.dim)
	if norm == 0 {
		return out
	}
	norm = math.Sqrt(norm)
	for i, v := range vec {
		out[i] = float32(v / norm)
	}
	return out
}

func (p *Provider) tokenize(text string) []string {
	// Caser 有状态，不能跨 goroutine 共享
	fields := strings.FieldsFunc(cases.Fold().String(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})
	return fields
}
