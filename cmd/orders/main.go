// cmd/orders/main.go
package main

import (
	"context"
	"errors"
	"log"
	"os"

	"orders-service/internal/api/handlers"
	"orders-service/internal/api/middleware"
	"orders-service/internal/api/responses"
	"orders-service/internal/config"
	"orders-service/internal/core/dashboard"
	"orders-service/internal/core/ingest"
	"orders-service/internal/core/orders"
	"orders-service/internal/metrics"
	"orders-service/internal/store"

	"cloud.google.com/go/firestore"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// --- Helper Functions ---

func initFirestoreClient(ctx context.Context, cfg config.StorageConfig, logger *zap.Logger) *firestore.Client {
	client, err := firestore.NewClientWithDatabase(ctx, cfg.ProjectID, cfg.DatabaseID)
	if err != nil {
		logger.Fatal("Erro ao inicializar cliente Firestore", zap.Error(err))
	}
	logger.Info("Conectado com sucesso ao Firestore", zap.String("database", cfg.DatabaseID))
	return client
}

func initRepository(ctx context.Context, cfg *config.Config, rec *metrics.Recorder, logger *zap.Logger) (store.Repository, func()) {
	var base store.Repository
	closers := []func(){}
	switch cfg.Storage.Mode {
	case "memory":
		logger.Warn("Usando repositório em memória; os dados não sobrevivem ao reinício")
		base = store.NewMemoryRepository()
	default:
		client := initFirestoreClient(ctx, cfg.Storage, logger)
		closers = append(closers, func() { client.Close() })
		base = store.NewFirestoreRepository(client)
	}

	var cache store.Cache
	switch cfg.Cache.Backend {
	case "redis":
		rc := store.NewRedisCache(cfg.Cache.RedisAddr, cfg.Cache.RedisPassword, cfg.Cache.RedisDB, cfg.Cache.TTL)
		if err := rc.Ping(ctx); err != nil {
			logger.Fatal("Erro ao conectar ao Redis", zap.String("addr", cfg.Cache.RedisAddr), zap.Error(err))
		}
		closers = append(closers, func() { rc.Close() })
		cache = rc
	default:
		cache = store.NewMemoryCache(cfg.Cache.TTL, nil)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return store.NewCachedRepository(base, cache, rec, logger), closeAll
}

func applySeed(ctx context.Context, repo store.Repository, path string, logger *zap.Logger) {
	seed, err := store.LoadSeed(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("Arquivo de configuração inicial não encontrado", zap.String("path", path))
		return
	}
	if err != nil {
		logger.Fatal("Erro ao ler configuração inicial", zap.Error(err))
	}
	if err := store.ApplySeed(ctx, repo, seed, logger); err != nil {
		logger.Fatal("Erro ao aplicar configuração inicial", zap.Error(err))
	}
}

// --- Main Service Runner ---
func main() {
	found, err := config.LoadEnv(".env")
	switch {
	case err != nil:
		log.Printf("Erro ao carregar .env: %v", err)
	case found:
		log.Print("Variáveis de ambiente carregadas de .env")
	default:
		log.Print("Arquivo .env não encontrado, prosseguindo com variáveis de ambiente")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}

	logger, err := config.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	defer logger.Sync()
	responses.InitLogger(logger)

	ctx := context.Background()
	rec := metrics.New()
	repo, closeRepo := initRepository(ctx, cfg, rec, logger)
	defer closeRepo()
	applySeed(ctx, repo, cfg.SeedPath, logger)

	dashboardService := dashboard.NewService(
		repo,
		ingest.NewService(logger),
		orders.NewService(logger),
		rec,
		logger,
		dashboard.Options{SessionTTL: cfg.Session.TTL},
	)
	ordersHandler := handlers.NewOrdersHandler(dashboardService, logger)
	importLimiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, logger)

	router := gin.Default()

	apiV1 := router.Group("/api/v1")
	apiV1.Use(middleware.Auth([]byte(cfg.JWTSecret)))
	ordersHandler.RegisterRoutes(apiV1, importLimiter.Handler())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "UP", "service": "orders-service"})
	})
	router.GET("/metrics", gin.WrapH(rec.Handler()))

	logger.Info("🚀 Orders Service (Go) iniciado", zap.String("port", cfg.Port))
	if err := router.Run(":" + cfg.Port); err != nil {
		logger.Fatal("Falha ao iniciar o servidor de pedidos", zap.Error(err))
	}
}
