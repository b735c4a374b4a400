package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fitrank/internal/config"
	"fitrank/internal/handlers"
	"fitrank/internal/logger"
	"fitrank/internal/services/catalog"
	"fitrank/internal/services/history"
	"fitrank/internal/services/interaction"
	"fitrank/internal/services/ranking"
	"fitrank/internal/services/search"
	"fitrank/internal/services/vector"
	"fitrank/internal/storage"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.LogError(err, "Failed to load configuration")
		os.Exit(1)
	}

	log, err := logger.InitLogger(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, "fitrank")
	if err != nil {
		logger.LogError(err, "Failed to initialize logger")
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := storage.Open(cfg.Database)
	if err != nil {
		log.Fatal("Failed to open database", logger.Fields{"error": err.Error()})
	}
	defer db.Close()

	products := storage.NewProductStore(db)
	profiles := storage.NewProfileStore(db)
	interactions := storage.NewInteractionStore(db)

	embedder, err := vector.NewEmbeddingService(cfg.Embedding)
	if err != nil {
		log.Fatal("Failed to initialize embedding service", logger.Fields{"error": err.Error()})
	}

	index, err := openIndex(ctx, cfg.VectorDB)
	if err != nil {
		log.Fatal("Failed to initialize vector index", logger.Fields{"error": err.Error()})
	}

	cache, closeCache := openProfileCache(ctx, cfg.Cache, log)
	defer closeCache()

	queryVectors := vector.NewQueryVectorBuilder(embedder, cache, vector.QueryVectorOptions{
		Strategy:        vector.EmbeddingStrategy(cfg.Embedding.Strategy),
		QueryWeight:     cfg.Embedding.QueryWeight,
		MaxUnifiedChars: cfg.Embedding.MaxUnifiedChars,
	})

	interactionLogger := interaction.NewLogger(interactions, products, cfg.Interaction.WriteTimeout)
	catalogService := catalog.NewService(products, embedder, index)
	// 内存索引不持久化，启动时从存储重建
	if cfg.VectorDB.Type == "memory" {
		if _, err := catalogService.Reindex(ctx); err != nil {
			log.Fatal("Failed to rebuild memory vector index", logger.Fields{"error": err.Error()})
		}
	}
	engine := search.NewEngine(search.Dependencies{
		Profiles: profiles,
		History:  history.NewAggregator(interactions, cfg.Ranking.LookbackDays),
		Vectors:  queryVectors,
		Index:    index,
		Logger:   interactionLogger,
	}, ranking.PolicyFromConfig(cfg.Ranking), search.LimitsFromConfig(cfg.Ranking))

	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(logger.NewLogger("http")))

	handlers.RegisterHealthRoutes(r, map[string]handlers.HealthCheck{
		"database":     func(ctx context.Context) error { return db.Ping() },
		"vector_index": index.HealthCheck,
	})

	api := r.Group("/api/v1")
	handlers.NewProductHandler(catalogService).RegisterRoutes(api)
	handlers.NewSearchHandler(engine).RegisterRoutes(api)
	handlers.NewProfileHandler(profiles).RegisterRoutes(api)
	handlers.NewInteractionHandler(interactionLogger).RegisterRoutes(api)

	srv := &http.Server{
		Addr:         config.GetServerAddress(),
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("Server starting", logger.Fields{"addr": srv.Addr})
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", logger.Fields{"error": err.Error()})
		}
	}()

	// 等待中断信号优雅关闭服务器
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", logger.Fields{"error": err.Error()})
	}
	// 搜索事件在后台写入，关闭前等待落盘
	if err := interactionLogger.Close(shutdownCtx); err != nil {
		log.Warn("Pending interaction writes dropped", logger.Fields{"error": err.Error()})
	}

	log.Info("Server exited")
}

func openIndex(ctx context.Context, cfg config.VectorDBConfig) (vector.Index, error) {
	if cfg.Type == "memory" {
		return vector.NewMemoryIndex(), nil
	}
	index, err := vector.NewChromaIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return index, nil
}

// openProfileCache Redis 不可用时退回进程内缓存
func openProfileCache(ctx context.Context, cfg config.CacheConfig, log *logger.Logger) (vector.ProfileVectorCache, func()) {
	if !cfg.Enabled {
		return vector.NoopProfileCache(), func() {}
	}
	if cfg.Type == "redis" {
		redisCache, err := vector.NewRedisProfileCache(ctx, cfg)
		if err == nil {
			return redisCache, func() { redisCache.Close() }
		}
		log.Warn("Redis profile cache unavailable, using memory cache", logger.Fields{"error": err.Error()})
	}
	return vector.NewMemoryProfileCache(cfg.MaxItems), func() {}
}

// requestLogger 为每个请求分配 request_id 并记录耗时
func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.New().String()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.ContextWithRequestID(c.Request.Context(), requestID))

		c.Next()

		log.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
			"method":  c.Request.Method,
			"path":    c.FullPath(),
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Info("Request handled")
	}
}
