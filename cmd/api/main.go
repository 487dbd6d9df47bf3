package main

import (
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/Mandaris-LLC/stagemaster-ai/internal/cleanup"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/config"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/database"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/handlers"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/scheduler"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/search"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/storage"
	"github.com/Mandaris-LLC/stagemaster-ai/internal/worker"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// .envファイルを読み込む(存在しない場合は無視)
	if err := godotenv.Load(); err != nil {
		log.Println("main: no .env file found, using environment variables")
	}

	configPath := getEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		log.Printf("main: failed to load config from %s: %v, using defaults", configPath, err)
		cfg = config.DefaultConfig()
	}
	cfg.ApplyEnvOverrides()

	db, err := database.NewGormDB(cfg.Database)
	if err != nil {
		log.Fatalf("main: failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Fatalf("main: failed to migrate schema: %v", err)
	}

	files, err := storage.NewDiskStore(cfg.Storage.BaseDir, cfg.Storage.PublicBaseURL)
	if err != nil {
		log.Fatalf("main: failed to init storage: %v", err)
	}

	// Meilisearchは任意。未設定なら検索エンドポイントは503を返す
	var searchClient *search.SearchClient
	if cfg.Search.Meilisearch.Host != "" {
		searchClient = search.NewSearchClient(cfg.Search.Meilisearch.Host, cfg.Search.Meilisearch.APIKey)
		if err := searchClient.InitIndex(); err != nil {
			log.Printf("main: failed to init search index, search disabled: %v", err)
			searchClient = nil
		}
	}

	stagingWorker := worker.NewWorker(db, files, worker.StubRenderer{}, cfg.Storage.ResultsBucket, cfg.Worker)
	stagingWorker.Start()
	defer stagingWorker.Stop()

	cleanupService := cleanup.NewService(db.DB(), files,
		cfg.Storage.UploadsBucket, cfg.Storage.ResultsBucket, cfg.Storage.ThumbsBucket)
	sched := scheduler.NewScheduler(cleanupService, cfg)
	if err := sched.Start(); err != nil {
		log.Printf("main: failed to start scheduler: %v", err)
	}
	defer sched.Stop()

	// 設定ファイルの変更を監視してワーカー設定を反映
	watcher, err := config.Watch(configPath, func(next *config.Config) {
		log.Println("main: config reloaded, updating worker")
		stagingWorker.UpdateConfig(next.Worker)
	})
	if err != nil {
		log.Printf("main: config watch disabled: %v", err)
	} else {
		defer watcher.Close()
	}

	router := setupRouter(cfg, db, files, searchClient, sched)

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit
		log.Println("main: shutting down")
		stagingWorker.Stop()
		sched.Stop()
		os.Exit(0)
	}()

	addr := ":" + cfg.Server.Port
	log.Printf("main: starting server on %s", addr)
	if err := router.Run(addr); err != nil {
		log.Fatalf("main: server failed: %v", err)
	}
}

func setupRouter(cfg *config.Config, db *database.GormDB, files *storage.DiskStore, searchClient *search.SearchClient, sched *scheduler.Scheduler) *gin.Engine {
	if cfg.Logging.Level == "error" || cfg.Logging.Level == "warn" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Logging.LogRequests {
		router.Use(gin.Logger())
	}

	corsConfig := cors.DefaultConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	} else {
		corsConfig.AllowAllOrigins = true
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	router.Use(cors.New(corsConfig))

	// アップロードと結果ファイルの静的配信
	router.Static("/files", files.BaseDir())

	propertyHandler := handlers.NewPropertyHandler(db, searchClient)
	imageHandler := handlers.NewImageHandler(db, files,
		cfg.Storage.UploadsBucket, cfg.Storage.ThumbsBucket, cfg.Storage.ResultsBucket)
	jobHandler := handlers.NewJobHandler(db)
	adminHandler := handlers.NewAdminHandler(sched)

	router.GET("/health", adminHandler.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/properties", propertyHandler.ListProperties)
		v1.POST("/properties", propertyHandler.CreateProperty)
		v1.GET("/properties/:id", propertyHandler.GetProperty)
		v1.POST("/properties/:id/rooms", propertyHandler.CreateRoom)
		v1.GET("/rooms/:id", propertyHandler.GetRoom)
		v1.DELETE("/rooms/:id", propertyHandler.DeleteRoom)

		v1.POST("/images/upload", imageHandler.UploadImage)
		v1.GET("/images/:id", imageHandler.GetImage)
		v1.DELETE("/images/:id", imageHandler.DeleteImage)

		v1.POST("/jobs", jobHandler.CreateJob)
		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
		v1.DELETE("/jobs/:id", jobHandler.DeleteJob)

		v1.GET("/search", propertyHandler.SearchProperties)
		v1.POST("/admin/cleanup/run", adminHandler.RunCleanup)
	}

	return router
}

// getEnv は環境変数を取得し、空の場合はデフォルト値を返す
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
