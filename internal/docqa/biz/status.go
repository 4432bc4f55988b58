package biz

import (
	"context"

	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/model"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/qa"
	"github.com/kart-io/docqa/internal/pkg/rag"
)

// StatusHealthy is the only status reported by health endpoints.
const StatusHealthy = "healthy"

// StatusService reports the state of the service and its models.
type StatusService struct {
	sessions store.SessionStore
	qa       *qa.Engine
	ner      *ner.Service
	rag      *rag.Engine
	cache    *ResultCache
	metrics  *metrics.Metrics
	version  string
}

// NewStatusService creates a StatusService. nerService and ragEngine may be nil.
func NewStatusService(
	sessions store.SessionStore,
	qaEngine *qa.Engine,
	nerService *ner.Service,
	ragEngine *rag.Engine,
	cache *ResultCache,
	m *metrics.Metrics,
	version string,
) *StatusService {
	return &StatusService{
		sessions: sessions,
		qa:       qaEngine,
		ner:      nerService,
		rag:      ragEngine,
		cache:    cache,
		metrics:  m,
		version:  version,
	}
}

// Version returns the API version.
func (s *StatusService) Version() string {
	return s.version
}

// Health returns the basic health status.
func (s *StatusService) Health() *model.HealthResponse {
	return &model.HealthResponse{Status: StatusHealthy, Version: s.version}
}

// DetailedHealth reports each component.
func (s *StatusService) DetailedHealth(ctx context.Context) *model.DetailedHealthResponse {
	components := model.HealthComponents{
		Cache:        model.CacheComponent{Type: s.cache.Backend(), Connected: s.cache.Ping(ctx)},
		Models:       s.modelNames(),
		SessionStore: s.sessions.Name(),
	}
	if s.rag != nil {
		components.VectorStore = s.rag.StoreName()
	}
	return &model.DetailedHealthResponse{
		Status:     StatusHealthy,
		Components: components,
		Version:    s.version,
	}
}

// modelNames returns the configured model of each component, empty when the
// component is disabled.
func (s *StatusService) modelNames() map[string]string {
	names := map[string]string{"qa": "", "ner": "", "embedding": ""}
	if s.qa != nil {
		names["qa"] = s.qa.ReaderName()
	}
	if s.ner != nil {
		names["ner"] = s.ner.RecognizerName()
	}
	if s.rag != nil {
		names["embedding"] = s.rag.EmbeddingModel()
	}
	return names
}

// ModelsStatus describes the configured models.
func (s *StatusService) ModelsStatus() *model.ModelsStatusResponse {
	names := s.modelNames()
	models := map[string]model.ModelStatus{
		"qa":        {Loaded: names["qa"], Type: model.ModelTypeQA},
		"ner":       {Loaded: names["ner"], Type: model.ModelTypeNER},
		"embedding": {Loaded: names["embedding"], Type: model.ModelTypeEmbedding},
		"cache":     {Type: s.cache.Backend()},
	}
	if s.ner != nil {
		st := models["ner"]
		st.Labels = s.ner.Labels()
		models["ner"] = st
	}
	return &model.ModelsStatusResponse{Models: models}
}

// CacheStats returns the cache statistics and refreshes the cached items gauge.
func (s *StatusService) CacheStats(ctx context.Context) map[string]any {
	s.metrics.SetCachedItems(s.cache.Count(ctx))
	return s.cache.Stats(ctx)
}
