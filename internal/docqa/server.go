// Package docqa provides the Document QA server implementation.
package docqa

import (
	"context"
	"fmt"
	"time"

	"github.com/kart-io/logger"
	goredis "github.com/redis/go-redis/v9"

	"github.com/kart-io/docqa/internal/docqa/biz"
	"github.com/kart-io/docqa/internal/docqa/handler"
	"github.com/kart-io/docqa/internal/docqa/metrics"
	"github.com/kart-io/docqa/internal/docqa/router"
	"github.com/kart-io/docqa/internal/docqa/store"
	"github.com/kart-io/docqa/internal/pkg/extractor"
	"github.com/kart-io/docqa/internal/pkg/ner"
	"github.com/kart-io/docqa/internal/pkg/qa"
	"github.com/kart-io/docqa/internal/pkg/rag"
	"github.com/kart-io/docqa/pkg/component/database"
	"github.com/kart-io/docqa/pkg/component/milvus"
	redisc "github.com/kart-io/docqa/pkg/component/redis"
	"github.com/kart-io/docqa/pkg/infra/app"
	"github.com/kart-io/docqa/pkg/infra/pool"
	"github.com/kart-io/docqa/pkg/infra/server"
	"github.com/kart-io/docqa/pkg/infra/tracing"
	"github.com/kart-io/docqa/pkg/llm"
	// 导入 Embedding 供应商以自动注册
	_ "github.com/kart-io/docqa/pkg/llm/hash"
	"github.com/kart-io/docqa/pkg/llm/huggingface"
	_ "github.com/kart-io/docqa/pkg/llm/ollama"
	"github.com/kart-io/docqa/pkg/llm/resilience"
	authopts "github.com/kart-io/docqa/pkg/options/auth"
	dbopts "github.com/kart-io/docqa/pkg/options/database"
	docqaopts "github.com/kart-io/docqa/pkg/options/docqa"
	jwtopts "github.com/kart-io/docqa/pkg/options/jwt"
	logopts "github.com/kart-io/docqa/pkg/options/logger"
	mwopts "github.com/kart-io/docqa/pkg/options/middleware"
	milvusopts "github.com/kart-io/docqa/pkg/options/milvus"
	redisopts "github.com/kart-io/docqa/pkg/options/redis"
	httpopts "github.com/kart-io/docqa/pkg/options/server/http"
	tracingopts "github.com/kart-io/docqa/pkg/options/tracing"
	"github.com/kart-io/docqa/pkg/security/jwt"
)

// Name is the name of the application.
const Name = "docqa"

// Config contains application-related configurations.
type Config struct {
	HTTPOptions       *httpopts.Options
	LogOptions        *logopts.Options
	JWTOptions        *jwtopts.Options
	AuthOptions       *authopts.Options
	RateLimitOptions  *mwopts.RateLimitOptions
	MiddlewareOptions *mwopts.Options
	RedisOptions      *redisopts.Options
	MilvusOptions     *milvusopts.Options
	DatabaseOptions   *dbopts.Options
	TracingOptions    *tracingopts.Options
	DocQAOptions      *docqaopts.Options
}

// Server represents the Document QA server.
type Server struct {
	srv *server.Manager
}

// NewServer initializes and returns a new Server instance. Resources opened
// before a failure are released again.
func (cfg *Config) NewServer(ctx context.Context) (s *Server, err error) {
	// 1. 初始化日志
	cfg.LogOptions.AddInitialField("service.version", app.GetVersion())
	if err := cfg.LogOptions.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Infow("Starting Document QA service...", app.BuildFields()...)

	opts := cfg.DocQAOptions
	mgr := server.NewManager(cfg.HTTPOptions.ShutdownTimeout)
	defer func() {
		if err != nil {
			_ = mgr.Stop(context.Background())
		}
	}()

	// 2. 初始化 Tracing
	tp, err := tracing.NewProvider(ctx, cfg.TracingOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}
	mgr.OnClose("tracing", tp.Shutdown)
	logger.Infow("Tracing initialized", "enabled", tp.Enabled())

	// 3. 初始化后台任务池
	if err := pool.InitGlobal(pool.DefaultGlobalConfig()); err != nil {
		return nil, fmt.Errorf("failed to initialize worker pool: %w", err)
	}
	mgr.OnClose("pool", func(context.Context) error {
		return pool.CloseGlobal(cfg.HTTPOptions.ShutdownTimeout)
	})

	// 4. 初始化指标
	var m *metrics.Metrics
	if opts.Metrics.Enabled {
		if m, err = metrics.New(); err != nil {
			return nil, fmt.Errorf("failed to initialize metrics: %w", err)
		}
	}

	// 5. 初始化 Redis，不可用时退回内存缓存
	var redisClient *redisc.Client
	var limiterBackend goredis.UniversalClient
	if cfg.RedisOptions.Enabled {
		redisClient, err = redisc.NewWithContext(ctx, cfg.RedisOptions)
		if err != nil {
			logger.Warnw("Redis unavailable, using in-memory cache", "addr", cfg.RedisOptions.Addr(), "error", err)
			redisClient = nil
			err = nil
		} else {
			limiterBackend = redisClient.Client()
			mgr.OnClose("redis", func(context.Context) error { return redisClient.Close() })
			logger.Infow("Redis cache initialized", "addr", cfg.RedisOptions.Addr())
		}
	}
	cacheConfig := biz.DefaultCacheConfig()
	cacheConfig.DefaultTTL = cfg.RedisOptions.DefaultTTL()
	cache := biz.NewResultCache(redisClient, cacheConfig, biz.WithSizeObserver(m.SetCachedItems))

	// 6. 初始化会话存储
	sessions, err := cfg.newSessionStore(ctx, mgr)
	if err != nil {
		return nil, err
	}
	logger.Infow("Session store initialized", "backend", sessions.Name())

	// 7. 初始化模型
	var hf *huggingface.Provider
	if needsHuggingFace(opts) {
		if hf, err = huggingface.NewProvider(opts.HuggingFaceConfig()); err != nil {
			return nil, fmt.Errorf("failed to initialize huggingface client: %w", err)
		}
	}

	var ragEngine *rag.Engine
	if opts.RAG.Enabled {
		if ragEngine, err = cfg.newRAGEngine(ctx, mgr, cache); err != nil {
			return nil, err
		}
		logger.Infow("RAG engine initialized", "embedding", ragEngine.EmbeddingModel(), "vector_store", ragEngine.StoreName())
	}

	var reader qa.Reader = qa.NewExtractive()
	if opts.QA.Reader == docqaopts.ReaderHuggingFace {
		reader = qa.NewHuggingFace(hf)
	}
	qaOpts := []qa.Option{
		qa.WithMaxContextChars(opts.QA.MaxContextChars),
		qa.WithInferenceObserver(m.InferenceObserver(metrics.ModelQA)),
	}
	if ragEngine != nil {
		qaOpts = append(qaOpts, qa.WithAugmenter(ragEngine))
	}
	qaEngine := qa.NewEngine(reader, qaOpts...)
	logger.Infow("QA engine initialized", "reader", qaEngine.ReaderName())

	var nerService *ner.Service
	if opts.NER.Enabled {
		var rec ner.Recognizer = ner.NewRule()
		if opts.NER.Recognizer == docqaopts.RecognizerHuggingFace {
			rec = ner.NewHuggingFace(hf)
		}
		nerService = ner.NewService(rec, ner.WithInferenceObserver(m.InferenceObserver(metrics.ModelNER)))
		logger.Infow("NER service initialized", "recognizer", nerService.RecognizerName())
	}

	ext := extractor.New(
		extractor.WithTimeout(opts.Extractor.Timeout),
		extractor.WithOCRLanguage(opts.Extractor.OCRLanguage),
		extractor.WithTempDir(opts.Extractor.TempDir),
	)
	if !extractor.OCREnabled() {
		logger.Warn("OCR is not available in this build, image uploads will fail extraction")
	}

	// 8. 初始化认证
	j, err := cfg.newJWT(mgr, limiterBackend)
	if err != nil {
		return nil, err
	}
	authService, err := biz.NewAuthService(j, cfg.AuthOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}
	if authService.DemoMode() {
		logger.Warn("No users configured, the token endpoint issues demo tokens")
	}

	// 9. 初始化 Biz 与 Handler 层
	handlers := &router.Handlers{
		Auth:    handler.NewAuthHandler(authService),
		Session: handler.NewSessionHandler(biz.NewSessionService(sessions, ragEngine, cache, m)),
		Document: handler.NewDocumentHandler(biz.NewDocumentService(sessions, ext, nerService, ragEngine, m, &biz.DocumentConfig{
			MaxFileSize:  opts.MaxFileSize(),
			Concurrency:  opts.Extractor.Concurrency,
			NERChunkSize: opts.NER.ChunkSize,
		})),
		QA: handler.NewQAHandler(biz.NewQAService(sessions, qaEngine, nerService, cache, opts.Validation.MaxQuestionLength)),
		Status: handler.NewStatusHandler(
			biz.NewStatusService(sessions, qaEngine, nerService, ragEngine, cache, m, opts.API.Version),
			opts.API.Title, opts.API.Description,
		),
	}

	// 10. 初始化 HTTP 服务器并注册路由
	httpServer := server.NewHTTPServer(cfg.HTTPOptions)
	stopLimiters, err := router.Register(httpServer.Engine(), &router.Config{
		Middleware: cfg.MiddlewareOptions,
		RateLimit:  cfg.RateLimitOptions,
		Redis:      limiterBackend,
		Verifier:   j,
		Metrics:    m,
	}, handlers)
	if err != nil {
		return nil, fmt.Errorf("failed to register routes: %w", err)
	}
	mgr.OnClose("rate-limiters", func(context.Context) error {
		stopLimiters()
		return nil
	})
	mgr.AddServer(httpServer)

	logger.Infow("Document QA service is ready",
		"addr", cfg.HTTPOptions.Addr,
		"cache", cache.Backend(),
		"rate_limit", cfg.RateLimitOptions.Enabled,
	)
	return &Server{srv: mgr}, nil
}

// Run starts the server and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.srv.Run(ctx)
}

func (cfg *Config) newSessionStore(ctx context.Context, mgr *server.Manager) (store.SessionStore, error) {
	if cfg.DocQAOptions.SessionStore != docqaopts.SessionStoreDatabase {
		return store.NewMemoryStore(), nil
	}
	db, err := database.New(ctx, cfg.DatabaseOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	mgr.OnClose("database", func(context.Context) error { return db.Close() })
	s, err := store.NewDBStore(db.DB(), cfg.DatabaseOptions.AutoMigrate)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize session store: %w", err)
	}
	return s, nil
}

func (cfg *Config) newRAGEngine(ctx context.Context, mgr *server.Manager, cache *biz.ResultCache) (*rag.Engine, error) {
	opts := cfg.DocQAOptions

	provider, err := llm.NewEmbeddingProvider(opts.RAG.EmbeddingProvider, opts.EmbeddingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}
	embedder := resilience.WrapEmbeddingProvider(provider, nil)

	var vectors rag.VectorStore = store.NewMemoryVectorStore()
	if opts.RAG.VectorStore == docqaopts.VectorStoreMilvus {
		client, err := milvus.New(cfg.MilvusOptions)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize milvus: %w", err)
		}
		mgr.OnClose("milvus", client.Close)
		vectors = store.NewMilvusVectorStore(client)
	}

	return rag.NewEngine(vectors, embedder, &rag.Config{
		ChunkSize:      opts.RAG.ChunkSize,
		ChunkOverlap:   opts.RAG.ChunkOverlap,
		MinChunkLength: opts.RAG.MinChunkLength,
		RetrieveK:      opts.RAG.RetrieveK,
	}, rag.WithEmbeddingCache(cache)), nil
}

func (cfg *Config) newJWT(mgr *server.Manager, redisClient goredis.UniversalClient) (*jwt.JWT, error) {
	var revoked jwt.Store
	if redisClient != nil {
		revoked = jwt.NewRedisStore(redisClient)
	} else {
		revoked = jwt.NewMemoryStore(jwt.WithCleanupInterval(10 * time.Minute))
	}
	mgr.OnClose("jwt-store", func(context.Context) error { return revoked.Close() })

	j, err := jwt.New(jwt.WithOptions(cfg.JWTOptions), jwt.WithStore(revoked))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize jwt: %w", err)
	}
	return j, nil
}

func needsHuggingFace(o *docqaopts.Options) bool {
	return o.QA.Reader == docqaopts.ReaderHuggingFace ||
		(o.NER.Enabled && o.NER.Recognizer == docqaopts.RecognizerHuggingFace)
}
