// Package docqa provides the document QA service options.
//
// Configuration Example (YAML):
//
//	docqa:
//	  session-store: memory
//	  qa:
//	    reader: extractive
//	    max-context-chars: 4000
//	  ner:
//	    enabled: true
//	    recognizer: rule
//	  rag:
//	    enabled: true
//	    embedding-provider: hash
//	    vector-store: memory
//	  upload:
//	    max-file-size-mb: 50
package docqa

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/kart-io/docqa/pkg/options"
)

var _ options.IOptions = (*Options)(nil)

// Session store backends.
const (
	SessionStoreMemory   = "memory"
	SessionStoreDatabase = "database"
)

// Vector store backends.
const (
	VectorStoreMemory = "memory"
	VectorStoreMilvus = "milvus"
)

// QA readers.
const (
	ReaderExtractive  = "extractive"
	ReaderHuggingFace = "huggingface"
)

// NER recognizers.
const (
	RecognizerRule        = "rule"
	RecognizerHuggingFace = "huggingface"
)

// Options 文档问答服务配置。
type Options struct {
	// SessionStore 会话存储后端：memory 或 database。
	SessionStore string `json:"session-store" mapstructure:"session-store"`

	QA          *QAOptions          `json:"qa" mapstructure:"qa"`
	NER         *NEROptions         `json:"ner" mapstructure:"ner"`
	RAG         *RAGOptions         `json:"rag" mapstructure:"rag"`
	Extractor   *ExtractorOptions   `json:"extractor" mapstructure:"extractor"`
	Upload      *UploadOptions      `json:"upload" mapstructure:"upload"`
	Validation  *ValidationOptions  `json:"validation" mapstructure:"validation"`
	API         *APIOptions         `json:"api" mapstructure:"api"`
	Metrics     *MetricsOptions     `json:"metrics" mapstructure:"metrics"`
	HuggingFace *HuggingFaceOptions `json:"huggingface" mapstructure:"huggingface"`
}

// QAOptions 问答阅读器配置。
type QAOptions struct {
	// Reader 阅读器：extractive（本地词法抽取）或 huggingface。
	Reader string `json:"reader" mapstructure:"reader"`

	// Model 阅读器为 huggingface 时使用的模型 ID。
	Model string `json:"model" mapstructure:"model"`

	// MaxContextChars 单次阅读的最大字符数。
	MaxContextChars int `json:"max-context-chars" mapstructure:"max-context-chars"`
}

// NEROptions 实体识别配置。
type NEROptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// Recognizer 识别器：rule 或 huggingface。
	Recognizer string `json:"recognizer" mapstructure:"recognizer"`

	// Model 识别器为 huggingface 时使用的模型 ID。
	Model string `json:"model" mapstructure:"model"`

	// ChunkSize 后台识别时单段最大字符数。
	ChunkSize int `json:"chunk-size" mapstructure:"chunk-size"`
}

// RAGOptions 检索增强配置。
type RAGOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`

	// EmbeddingProvider 向量化供应商：hash、ollama 或 huggingface。
	EmbeddingProvider string `json:"embedding-provider" mapstructure:"embedding-provider"`

	// EmbeddingModel 向量模型，为空时使用供应商默认值。
	EmbeddingModel string `json:"embedding-model" mapstructure:"embedding-model"`

	// EmbeddingBaseURL ollama 等自托管供应商的地址。
	EmbeddingBaseURL string `json:"embedding-base-url" mapstructure:"embedding-base-url"`

	// EmbeddingDimension hash 供应商的向量维度。
	EmbeddingDimension int `json:"embedding-dimension" mapstructure:"embedding-dimension"`

	ChunkSize        int `json:"chunk-size" mapstructure:"chunk-size"`
	ChunkOverlap     int `json:"chunk-overlap" mapstructure:"chunk-overlap"`
	MinChunkLength   int `json:"min-chunk-length" mapstructure:"min-chunk-length"`
	TopK             int `json:"top-k" mapstructure:"top-k"`
	RetrieveK        int `json:"retrieve-k" mapstructure:"retrieve-k"`
	MaxContextLength int `json:"max-context-length" mapstructure:"max-context-length"`

	// VectorStore 向量存储后端：memory 或 milvus。
	VectorStore string `json:"vector-store" mapstructure:"vector-store"`
}

// ExtractorOptions 文本提取配置。
type ExtractorOptions struct {
	Timeout     time.Duration `json:"timeout" mapstructure:"timeout"`
	OCRLanguage string        `json:"ocr-language" mapstructure:"ocr-language"`
	TempDir     string        `json:"temp-dir" mapstructure:"temp-dir"`

	// Concurrency 单次上传中并行提取的文件数。
	Concurrency int `json:"concurrency" mapstructure:"concurrency"`
}

// UploadOptions 上传配置。
type UploadOptions struct {
	MaxFileSizeMB int `json:"max-file-size-mb" mapstructure:"max-file-size-mb"`
}

// ValidationOptions 输入校验配置。
type ValidationOptions struct {
	MaxQuestionLength int `json:"max-question-length" mapstructure:"max-question-length"`
}

// APIOptions 对外展示的 API 信息。
type APIOptions struct {
	Title       string `json:"title" mapstructure:"title"`
	Version     string `json:"version" mapstructure:"version"`
	Description string `json:"description" mapstructure:"description"`
}

// MetricsOptions Prometheus 指标配置。
type MetricsOptions struct {
	Enabled bool `json:"enabled" mapstructure:"enabled"`
}

// HuggingFaceOptions HuggingFace Inference API 配置，阅读器、识别器与向量化共用。
type HuggingFaceOptions struct {
	BaseURL    string        `json:"base-url" mapstructure:"base-url"`
	APIKey     string        `json:"-" mapstructure:"api-key"`
	Timeout    time.Duration `json:"timeout" mapstructure:"timeout"`
	MaxRetries int           `json:"max-retries" mapstructure:"max-retries"`
	RateLimit  float64       `json:"rate-limit" mapstructure:"rate-limit"`
}

// NewOptions creates Options with the service defaults.
func NewOptions() *Options {
	return &Options{
		SessionStore: SessionStoreMemory,
		QA: &QAOptions{
			Reader:          ReaderExtractive,
			Model:           "distilbert-base-cased-distilled-squad",
			MaxContextChars: 4000,
		},
		NER: &NEROptions{
			Enabled:    true,
			Recognizer: RecognizerRule,
			Model:      "dslim/bert-base-NER",
			ChunkSize:  50000,
		},
		RAG: &RAGOptions{
			Enabled:            true,
			EmbeddingProvider:  "hash",
			EmbeddingBaseURL:   "http://localhost:11434",
			EmbeddingDimension: 384,
			ChunkSize:          500,
			ChunkOverlap:       50,
			MinChunkLength:     50,
			TopK:               3,
			RetrieveK:          10,
			MaxContextLength:   2000,
			VectorStore:        VectorStoreMemory,
		},
		Extractor: &ExtractorOptions{
			Timeout:     30 * time.Second,
			OCRLanguage: "eng",
			Concurrency: 4,
		},
		Upload:     &UploadOptions{MaxFileSizeMB: 50},
		Validation: &ValidationOptions{MaxQuestionLength: 1000},
		API: &APIOptions{
			Title:       "Document QA API",
			Version:     "1.0.0",
			Description: "Upload PDFs and images, then ask questions about them with retrieval and entity highlighting.",
		},
		Metrics: &MetricsOptions{Enabled: true},
		HuggingFace: &HuggingFaceOptions{
			BaseURL:    "https://api-inference.huggingface.co",
			Timeout:    120 * time.Second,
			MaxRetries: 3,
		},
	}
}

// MaxFileSize returns the per-file upload limit in bytes.
func (o *Options) MaxFileSize() int64 {
	return int64(o.Upload.MaxFileSizeMB) << 20
}

// EmbeddingConfig builds the config map handed to the embedding provider factory.
func (o *Options) EmbeddingConfig() map[string]any {
	cfg := map[string]any{
		"dimension": o.RAG.EmbeddingDimension,
	}
	if o.RAG.EmbeddingModel != "" {
		cfg["model"] = o.RAG.EmbeddingModel
	}
	switch o.RAG.EmbeddingProvider {
	case "ollama":
		cfg["base_url"] = o.RAG.EmbeddingBaseURL
	case "huggingface":
		for k, v := range o.HuggingFaceConfig() {
			cfg[k] = v
		}
	}
	return cfg
}

// HuggingFaceConfig builds the config map shared by every HuggingFace task.
func (o *Options) HuggingFaceConfig() map[string]any {
	cfg := map[string]any{
		"base_url":    o.HuggingFace.BaseURL,
		"api_key":     o.HuggingFace.APIKey,
		"timeout":     o.HuggingFace.Timeout,
		"max_retries": o.HuggingFace.MaxRetries,
		"rate_limit":  o.HuggingFace.RateLimit,
		"qa_model":    o.QA.Model,
		"ner_model":   o.NER.Model,
	}
	if o.RAG.EmbeddingProvider == "huggingface" && o.RAG.EmbeddingModel != "" {
		cfg["model"] = o.RAG.EmbeddingModel
	}
	return cfg
}

// AddFlags adds flags for the docqa options to the specified FlagSet.
func (o *Options) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	p := options.Join(prefixes...) + "docqa."
	fs.StringVar(&o.SessionStore, p+"session-store", o.SessionStore, "Session store backend (memory, database).")

	fs.StringVar(&o.QA.Reader, p+"qa.reader", o.QA.Reader, "QA reader (extractive, huggingface).")
	fs.StringVar(&o.QA.Model, p+"qa.model", o.QA.Model, "HuggingFace question-answering model.")
	fs.IntVar(&o.QA.MaxContextChars, p+"qa.max-context-chars", o.QA.MaxContextChars, "Maximum characters read per answer.")

	fs.BoolVar(&o.NER.Enabled, p+"ner.enabled", o.NER.Enabled, "Recognize entities in uploaded documents and answers.")
	fs.StringVar(&o.NER.Recognizer, p+"ner.recognizer", o.NER.Recognizer, "Entity recognizer (rule, huggingface).")
	fs.StringVar(&o.NER.Model, p+"ner.model", o.NER.Model, "HuggingFace token-classification model.")
	fs.IntVar(&o.NER.ChunkSize, p+"ner.chunk-size", o.NER.ChunkSize, "Characters per NER pass over large documents.")

	fs.BoolVar(&o.RAG.Enabled, p+"rag.enabled", o.RAG.Enabled, "Index sessions for retrieval augmented answers.")
	fs.StringVar(&o.RAG.EmbeddingProvider, p+"rag.embedding-provider", o.RAG.EmbeddingProvider, "Embedding provider (hash, ollama, huggingface).")
	fs.StringVar(&o.RAG.EmbeddingModel, p+"rag.embedding-model", o.RAG.EmbeddingModel, "Embedding model, empty for the provider default.")
	fs.StringVar(&o.RAG.EmbeddingBaseURL, p+"rag.embedding-base-url", o.RAG.EmbeddingBaseURL, "Base URL of a self-hosted embedding provider.")
	fs.IntVar(&o.RAG.EmbeddingDimension, p+"rag.embedding-dimension", o.RAG.EmbeddingDimension, "Vector dimension of the hash provider.")
	fs.IntVar(&o.RAG.ChunkSize, p+"rag.chunk-size", o.RAG.ChunkSize, "Chunk size in characters.")
	fs.IntVar(&o.RAG.ChunkOverlap, p+"rag.chunk-overlap", o.RAG.ChunkOverlap, "Overlap between consecutive chunks.")
	fs.IntVar(&o.RAG.MinChunkLength, p+"rag.min-chunk-length", o.RAG.MinChunkLength, "Chunks not longer than this are dropped.")
	fs.IntVar(&o.RAG.TopK, p+"rag.top-k", o.RAG.TopK, "Default number of chunks returned by retrieval.")
	fs.IntVar(&o.RAG.RetrieveK, p+"rag.retrieve-k", o.RAG.RetrieveK, "Chunks retrieved when building an answer context.")
	fs.IntVar(&o.RAG.MaxContextLength, p+"rag.max-context-length", o.RAG.MaxContextLength, "Default maximum augmented context length.")
	fs.StringVar(&o.RAG.VectorStore, p+"rag.vector-store", o.RAG.VectorStore, "Vector store backend (memory, milvus).")

	fs.DurationVar(&o.Extractor.Timeout, p+"extractor.timeout", o.Extractor.Timeout, "Per-file extraction timeout.")
	fs.StringVar(&o.Extractor.OCRLanguage, p+"extractor.ocr-language", o.Extractor.OCRLanguage, "Tesseract language for image OCR.")
	fs.StringVar(&o.Extractor.TempDir, p+"extractor.temp-dir", o.Extractor.TempDir, "Directory for temporary upload files.")
	fs.IntVar(&o.Extractor.Concurrency, p+"extractor.concurrency", o.Extractor.Concurrency, "Files extracted in parallel per upload.")

	fs.IntVar(&o.Upload.MaxFileSizeMB, p+"upload.max-file-size-mb", o.Upload.MaxFileSizeMB, "Per-file upload limit in MB.")
	fs.IntVar(&o.Validation.MaxQuestionLength, p+"validation.max-question-length", o.Validation.MaxQuestionLength, "Questions are truncated to this many characters.")

	fs.StringVar(&o.API.Title, p+"api.title", o.API.Title, "API title.")
	fs.StringVar(&o.API.Version, p+"api.version", o.API.Version, "API version.")
	fs.StringVar(&o.API.Description, p+"api.description", o.API.Description, "API description.")

	fs.BoolVar(&o.Metrics.Enabled, p+"metrics.enabled", o.Metrics.Enabled, "Expose Prometheus metrics.")

	fs.StringVar(&o.HuggingFace.BaseURL, p+"huggingface.base-url", o.HuggingFace.BaseURL, "HuggingFace Inference API base URL.")
	fs.StringVar(&o.HuggingFace.APIKey, p+"huggingface.api-key", o.HuggingFace.APIKey, "HuggingFace API token.")
	fs.DurationVar(&o.HuggingFace.Timeout, p+"huggingface.timeout", o.HuggingFace.Timeout, "HuggingFace request timeout.")
	fs.IntVar(&o.HuggingFace.MaxRetries, p+"huggingface.max-retries", o.HuggingFace.MaxRetries, "HuggingFace max retries.")
	fs.Float64Var(&o.HuggingFace.RateLimit, p+"huggingface.rate-limit", o.HuggingFace.RateLimit, "HuggingFace requests per second, 0 for unlimited.")
}

// Validate checks the option values.
func (o *Options) Validate() []error {
	if o == nil {
		return nil
	}
	var errs []error

	switch o.SessionStore {
	case SessionStoreMemory, SessionStoreDatabase:
	default:
		errs = append(errs, fmt.Errorf("docqa.session-store must be memory or database, got %q", o.SessionStore))
	}
	switch o.QA.Reader {
	case ReaderExtractive, ReaderHuggingFace:
	default:
		errs = append(errs, fmt.Errorf("docqa.qa.reader must be extractive or huggingface, got %q", o.QA.Reader))
	}
	if o.QA.MaxContextChars <= 0 {
		errs = append(errs, fmt.Errorf("docqa.qa.max-context-chars must be positive"))
	}
	switch o.NER.Recognizer {
	case RecognizerRule, RecognizerHuggingFace:
	default:
		errs = append(errs, fmt.Errorf("docqa.ner.recognizer must be rule or huggingface, got %q", o.NER.Recognizer))
	}
	if o.NER.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("docqa.ner.chunk-size must be positive"))
	}

	if o.RAG.ChunkSize <= 0 {
		errs = append(errs, fmt.Errorf("docqa.rag.chunk-size must be positive"))
	}
	if o.RAG.ChunkOverlap < 0 || o.RAG.ChunkOverlap >= o.RAG.ChunkSize {
		errs = append(errs, fmt.Errorf("docqa.rag.chunk-overlap must be in [0, chunk-size)"))
	}
	if o.RAG.TopK <= 0 || o.RAG.RetrieveK <= 0 {
		errs = append(errs, fmt.Errorf("docqa.rag.top-k and docqa.rag.retrieve-k must be positive"))
	}
	switch o.RAG.VectorStore {
	case VectorStoreMemory, VectorStoreMilvus:
	default:
		errs = append(errs, fmt.Errorf("docqa.rag.vector-store must be memory or milvus, got %q", o.RAG.VectorStore))
	}

	if o.Extractor.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("docqa.extractor.timeout must be positive"))
	}
	if o.Extractor.Concurrency <= 0 {
		errs = append(errs, fmt.Errorf("docqa.extractor.concurrency must be positive"))
	}
	if o.Upload.MaxFileSizeMB <= 0 {
		errs = append(errs, fmt.Errorf("docqa.upload.max-file-size-mb must be positive"))
	}
	if o.Validation.MaxQuestionLength <= 0 {
		errs = append(errs, fmt.Errorf("docqa.validation.max-question-length must be positive"))
	}

	needsHF := o.QA.Reader == ReaderHuggingFace ||
		(o.NER.Enabled && o.NER.Recognizer == RecognizerHuggingFace) ||
		(o.RAG.Enabled && o.RAG.EmbeddingProvider == "huggingface")
	if needsHF && o.HuggingFace.APIKey == "" {
		errs = append(errs, fmt.Errorf("docqa.huggingface.api-key is required by the configured huggingface components"))
	}
	return errs
}

// Complete fills in defaults for groups missing from a config file.
func (o *Options) Complete() error {
	def := NewOptions()
	if o.QA == nil {
		o.QA = def.QA
	}
	if o.NER == nil {
		o.NER = def.NER
	}
	if o.RAG == nil {
		o.RAG = def.RAG
	}
	if o.Extractor == nil {
		o.Extractor = def.Extractor
	}
	if o.Upload == nil {
		o.Upload = def.Upload
	}
	if o.Validation == nil {
		o.Validation = def.Validation
	}
	if o.API == nil {
		o.API = def.API
	}
	if o.Metrics == nil {
		o.Metrics = def.Metrics
	}
	if o.HuggingFace == nil {
		o.HuggingFace = def.HuggingFace
	}
	return nil
}
