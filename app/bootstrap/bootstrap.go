package bootstrap

import (
	"context"
	"log"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/docuhub/vector-go/app/controllers"
	"github.com/docuhub/vector-go/internal/config"
	"github.com/docuhub/vector-go/internal/di"
	"github.com/docuhub/vector-go/internal/logger"
	"github.com/docuhub/vector-go/internal/pipeline"
	"github.com/docuhub/vector-go/internal/retrieval"
	"github.com/docuhub/vector-go/internal/vecstore"
)

// App encapsulates lifecycle resources that need to be cleaned up on shutdown.
type App struct {
	cleanupTasks []func() error
	cancel       context.CancelFunc
}

// Global app instance for controllers to access
var globalApp *App

// GetApp returns the global app instance
func GetApp() *App {
	return globalApp
}

// Init bootstraps configuration, logger, storage engine, pipeline and watcher
// required by the Beego application.
func Init() (*App, error) {
	// Load environment variables from .env if present (non-fatal if missing).
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	// Initialize structured logger.
	if err := logger.InitLogger(); err != nil {
		return nil, err
	}

	// Load dynamic configuration.
	if err := config.LoadConfig(); err != nil {
		return nil, err
	}
	if err := config.ValidatePaths(config.AppConfig); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	app := &App{cancel: cancel}
	globalApp = app

	if _, err := di.BuildContainer(); err != nil {
		cancel()
		return nil, err
	}

	err := di.Invoke(func(
		cfg *config.Config,
		engine *vecstore.Engine,
		embedder pipeline.Embedder,
		processor *pipeline.Processor,
		watcher *pipeline.Watcher,
		service *retrieval.Service,
	) error {
		controllers.InitDependencies(engine, service, processor)
		app.cleanupTasks = append(app.cleanupTasks, engine.Close)

		if !embedder.Ready() {
			logger.Warn("embedding provider not configured, ingestion requests will fail")
		}

		// 启动时全量处理已有文档，不阻塞HTTP服务启动
		go func() {
			processed, failed, err := processor.ProcessAll(ctx, false)
			if err != nil {
				logger.Error("initial document processing failed", zap.Error(err))
				return
			}
			logger.Info("initial document processing complete",
				zap.Int("processed", processed),
				zap.Int("failed", failed))
		}()

		if cfg.Documents.WatchEnabled {
			if err := watcher.Start(ctx); err != nil {
				return err
			}
			app.cleanupTasks = append(app.cleanupTasks, watcher.Close)
		}
		return nil
	})
	if err != nil {
		cancel()
		return nil, err
	}

	return app, nil
}

// Shutdown flushes/logs and closes resources gracefully.
func (a *App) Shutdown() {
	a.cancel()

	// Execute cleanup tasks in reverse order (best effort).
	for i := len(a.cleanupTasks) - 1; i >= 0; i-- {
		if err := a.cleanupTasks[i](); err != nil {
			log.Printf("Cleanup error: %v\n", err)
		}
	}

	// Flush logger buffers.
	logger.Sync()
}
