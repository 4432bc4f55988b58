// Package huggingface 提供 HuggingFace Inference API 供应商实现。
// 支持 feature-extraction（Embedding）、question-answering 与
// token-classification 三类任务。
package huggingface

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kart-io/docqa/pkg/llm"
	"github.com/kart-io/docqa/pkg/utils/httpclient"
	"github.com/kart-io/docqa/pkg/utils/json"
)

// ProviderName 是 HuggingFace 供应商的名称标识符
const ProviderName = "huggingface"

// 默认模型。
const (
	DefaultEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"
	DefaultQAModel    = "distilbert-base-cased-distilled-squad"
	DefaultNERModel   = "dslim/bert-base-NER"
)

func init() {
	llm.RegisterEmbeddingProvider(ProviderName, func(config map[string]any) (llm.EmbeddingProvider, error) {
		return NewProvider(config)
	})
}

// Config HuggingFace 供应商配置。
type Config struct {
	// BaseURL API 基础地址。
	BaseURL string `json:"base_url" mapstructure:"base_url"`

	// APIKey HuggingFace API Token。
	APIKey string `json:"api_key" mapstructure:"api_key"`

	// EmbedModel 用于生成嵌入的模型 ID。
	EmbedModel string `json:"embed_model" mapstructure:"embed_model"`

	// QAModel 抽取式问答模型 ID。
	QAModel string `json:"qa_model" mapstructure:"qa_model"`

	// NERModel 命名实体识别模型 ID。
	NERModel string `json:"ner_model" mapstructure:"ner_model"`

	// Timeout 请求超时时间。
	Timeout time.Duration `json:"timeout" mapstructure:"timeout"`

	// MaxRetries 最大重试次数。
	MaxRetries int `json:"max_retries" mapstructure:"max_retries"`

	// RateLimit 每秒请求数上限，0 表示不限。
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"`

	// WaitForModel 如果模型正在加载，是否等待。
	WaitForModel bool `json:"wait_for_model" mapstructure:"wait_for_model"`
}

// DefaultConfig 返回默认配置。
func DefaultConfig() *Config {
	return &Config{
		BaseURL:      "https://api-inference.huggingface.co",
		EmbedModel:   DefaultEmbedModel,
		QAModel:      DefaultQAModel,
		NERModel:     DefaultNERModel,
		Timeout:      120 * time.Second,
		MaxRetries:   3,
		WaitForModel: true,
	}
}

// Provider HuggingFace 供应商实现。
type Provider struct {
	config *Config
	client *httpclient.Client
}

// NewProvider 从配置 map 创建 HuggingFace 供应商。
func NewProvider(configMap map[string]any) (*Provider, error) {
	cfg := DefaultConfig()
	cfg.BaseURL = llm.ConfigString(configMap, "base_url", cfg.BaseURL)
	cfg.APIKey = llm.ConfigString(configMap, "api_key", cfg.APIKey)
	cfg.EmbedModel = llm.ConfigString(configMap, "model", cfg.EmbedModel)
	cfg.QAModel = llm.ConfigString(configMap, "qa_model", cfg.QAModel)
	cfg.NERModel = llm.ConfigString(configMap, "ner_model", cfg.NERModel)
	cfg.Timeout = llm.ConfigDuration(configMap, "timeout", cfg.Timeout)
	cfg.MaxRetries = llm.ConfigInt(configMap, "max_retries", cfg.MaxRetries)
	cfg.RateLimit = llm.ConfigFloat(configMap, "rate_limit", cfg.RateLimit)
	if v, ok := configMap["wait_for_model"].(bool); ok {
		cfg.WaitForModel = v
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("huggingface: api_key 是必需的")
	}
	return NewProviderWithConfig(cfg), nil
}

// NewProviderWithConfig 使用结构化配置创建 HuggingFace 供应商。
func NewProviderWithConfig(cfg *Config) *Provider {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Provider{
		config: cfg,
		client: httpclient.NewClient(cfg.Timeout, cfg.MaxRetries,
			httpclient.WithRateLimit(cfg.RateLimit, 1),
			httpclient.WithHeader("Authorization", "Bearer "+cfg.APIKey),
		),
	}
}

// Name 返回供应商名称。
func (p *Provider) Name() string {
	return ProviderName
}

// Model 返回 Embedding 模型标识。
func (p *Provider) Model() string {
	return p.config.EmbedModel
}

// QAModel 返回问答模型标识。
func (p *Provider) QAModel() string {
	return p.config.QAModel
}

// NERModel 返回实体识别模型标识。
func (p *Provider) NERModel() string {
	return p.config.NERModel
}

type waitOptions struct {
	WaitForModel bool `json:"wait_for_model,omitempty"`
}

func (p *Provider) options() *waitOptions {
	if !p.config.WaitForModel {
		return nil
	}
	return &waitOptions{WaitForModel: true}
}

// embeddingRequest HuggingFace Feature Extraction API 请求体。
type embeddingRequest struct {
	Inputs  []string     `json:"inputs"`
	Options *waitOptions `json:"options,omitempty"`
}

// Embed 为多个文本生成向量嵌入。
func (p *Provider) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	body, err := json.Marshal(embeddingRequest{Inputs: texts, Options: p.options()})
	if err != nil {
		return nil, fmt.Errorf("序列化请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/pipeline/feature-extraction/%s", p.config.BaseURL, p.config.EmbedModel)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("创建请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.DoRequest(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &httpclient.StatusError{Code: resp.StatusCode, Body: string(bodyBytes)}
	}

	// 句向量模型返回 [][]float32，部分模型返回 token 级别的 [][][]float32，需要取平均
	var embeddings [][]float32
	if err := json.Unmarshal(bodyBytes, &embeddings); err != nil {
		var tokenEmbeddings [][][]float32
		if err2 := json.Unmarshal(bodyBytes, &tokenEmbeddings); err2 != nil {
			return nil, fmt.Errorf("解析响应失败: %w", err)
		}
		embeddings = meanPool(tokenEmbeddings)
	}

	if len(embeddings) != len(texts) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(texts), len(embeddings))
	}
	return embeddings, nil
}

func meanPool(tokenEmbeddings [][][]float32) [][]float32 {
	embeddings := make([][]float32, len(tokenEmbeddings))
	for i, tokens := range tokenEmbeddings {
		if len(tokens) == 0 {
			continue
		}
		embeddings[i] = make([]float32, len(tokens[0]))
		for _, token := range tokens {
			for j, v := range token {
				embeddings[i][j] += v
			}
		}
		for j := range embeddings[i] {
			embeddings[i][j] /= float32(len(tokens))
		}
	}
	return embeddings
}

// EmbedSingle 为单个文本生成向量嵌入。
func (p *Provider) EmbedSingle(ctx context.Context, text string) ([]float32, error) {
	embeddings, err := p.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return embeddings[0], nil
}

// QAAnswer question-answering 任务的返回值，Start/End 为字符（rune）偏移。
type QAAnswer struct {
	Answer string  `json:"answer"`
	Score  float64 `json:"score"`
	Start  int     `json:"start"`
	End    int     `json:"end"`
}

type qaInputs struct {
	Question string `json:"question"`
	Context  string `json:"context"`
}

type qaRequest struct {
	Inputs  qaInputs     `json:"inputs"`
	Options *waitOptions `json:"options,omitempty"`
}

// AnswerQuestion 调用 question-answering 任务。
func (p *Provider) AnswerQuestion(ctx context.Context, question, passage string) (*QAAnswer, error) {
	var out QAAnswer
	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.QAModel)
	if err := p.client.PostJSON(ctx, url, qaRequest{
		Inputs:  qaInputs{Question: question, Context: passage},
		Options: p.options(),
	}, &out); err != nil {
		return nil, fmt.Errorf("huggingface question-answering: %w", err)
	}
	return &out, nil
}

// TokenEntity token-classification 任务的单个聚合实体，Start/End 为字符（rune）偏移。
type TokenEntity struct {
	EntityGroup string  `json:"entity_group"`
	Score       float64 `json:"score"`
	Word        string  `json:"word"`
	Start       int     `json:"start"`
	End         int     `json:"end"`
}

type tokenParams struct {
	AggregationStrategy string `json:"aggregation_strategy"`
}

type tokenRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters tokenParams  `json:"parameters"`
	Options    *waitOptions `json:"options,omitempty"`
}

// TokenClassification 调用 token-classification 任务（aggregation_strategy=simple）。
func (p *Provider) TokenClassification(ctx context.Context, text string) ([]TokenEntity, error) {
	var out []TokenEntity
	url := fmt.Sprintf("%s/models/%s", p.config.BaseURL, p.config.NERModel)
	if err := p.client.PostJSON(ctx, url, tokenRequest{
		Inputs:     text,
		Parameters: tokenParams{AggregationStrategy: "simple"},
		Options:    p.options(),
	}, &out); err != nil {
		return nil, fmt.Errorf("huggingface token-classification: %w", err)
	}
	return out, nil
}
