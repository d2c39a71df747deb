package router

import (
	"fmt"

	"corpus-gen/internal/config"
	"corpus-gen/internal/handler"
	"corpus-gen/internal/middleware"
	"corpus-gen/internal/repository"
	"corpus-gen/internal/service"
	"corpus-gen/pkg/model_caller"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// NewCorpusGenService 按配置组装语料生成服务
func NewCorpusGenService(
	cfg *config.Config,
	logger *logrus.Logger,
	db *gorm.DB,
	caller model_caller.StructuredCaller,
) (*service.CorpusGenService, error) {
	// 初始化Repository
	catalogRepo := repository.NewCatalogRepository(db)
	corpusRepo := repository.NewCorpusRepository(db)

	sessions, err := service.NewSessionStore(cfg.Staging.MaxSessions, cfg.Generation.DefaultScore)
	if err != nil {
		return nil, fmt.Errorf("创建会话存储失败: %w", err)
	}

	generator := service.NewStructuredGenerator(caller, service.GeneratorOptions{
		Model:        cfg.Model.Model,
		Temperature:  cfg.Model.Temperature,
		RoundTimeout: cfg.Model.GetTimeout(),
	}, logger)
	importer := service.NewCorpusImporter(corpusRepo, logger)

	return service.NewCorpusGenService(catalogRepo, generator, importer, sessions, cfg.Generation, logger), nil
}

// SetupRouter 设置路由
func SetupRouter(
	cfg *config.Config,
	logger *logrus.Logger,
	db *gorm.DB,
	corpusGenService *service.CorpusGenService,
) *gin.Engine {
	// 设置Gin模式
	if cfg.Server.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// 全局中间件
	r.Use(middleware.LoggerMiddleware(logger))
	r.Use(gin.Recovery())
	r.Use(middleware.CORS(cfg))

	// 健康检查
	r.GET("/", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"message": "语料生成与导入 API",
			"version": "1.0.0",
		})
	})

	// 初始化Handler
	catalogHandler := handler.NewCatalogHandler(repository.NewCatalogRepository(db))
	corpusGenHandler := handler.NewCorpusGenHandler(corpusGenService)

	// API路由组
	api := r.Group("/api")
	{
		// 级联选择
		api.GET("/products", catalogHandler.ListProducts)
		api.GET("/products/:id/features", catalogHandler.ListFeatures)
		api.GET("/products/:id/slots", catalogHandler.ListSlots)
		api.GET("/intents", catalogHandler.ListIntents)

		corpusGen := api.Group("/corpus_gen")
		{
			corpusGen.GET("/styles", corpusGenHandler.ListStyles)
			corpusGen.POST("/sessions", corpusGenHandler.CreateSession)

			// 暂存会话
			sessions := corpusGen.Group("/sessions/:id")
			sessions.Use(middleware.SessionID("id"))
			{
				sessions.GET("", corpusGenHandler.GetSession)
				sessions.DELETE("", corpusGenHandler.DeleteSession)
				sessions.POST("/generate", corpusGenHandler.Generate)
				sessions.PUT("/candidates/:index", corpusGenHandler.EditCandidate)
				sessions.POST("/candidates/select", corpusGenHandler.SelectCandidates)
				sessions.DELETE("/candidates", corpusGenHandler.RemoveCandidates)
				sessions.POST("/commit", corpusGenHandler.Commit)
				sessions.POST("/reset", corpusGenHandler.Reset)
				sessions.GET("/export_csv", corpusGenHandler.ExportCSV)
			}
		}
	}

	return r
}
