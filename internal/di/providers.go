package di

import (
	"fmt"

	"go.uber.org/dig"

	"github.com/docuhub/vector-go/internal/config"
	"github.com/docuhub/vector-go/internal/pipeline"
	"github.com/docuhub/vector-go/internal/retrieval"
	"github.com/docuhub/vector-go/internal/vecstore"
)

// RegisterProviders 注册所有依赖提供者
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册向量存储引擎
	if err := container.Provide(func(cfg *config.Config) (*vecstore.Engine, error) {
		return vecstore.NewEngine(cfg.Store.DataDir, cfg.Store.Dimension)
	}); err != nil {
		return err
	}

	// 注册嵌入向量生成器
	if err := container.Provide(func(cfg *config.Config) pipeline.Embedder {
		return pipeline.NewOpenAIEmbedder(cfg.Embedding)
	}); err != nil {
		return err
	}

	// 注册文档处理管线
	if err := container.Provide(pipeline.NewProcessor); err != nil {
		return err
	}

	// 注册文件监听器
	if err := container.Provide(func(processor *pipeline.Processor, cfg *config.Config) (*pipeline.Watcher, error) {
		return pipeline.NewWatcher(processor, cfg.Documents.Dir, cfg.Documents.Debounce)
	}); err != nil {
		return err
	}

	// 注册检索服务
	if err := container.Provide(retrieval.NewService); err != nil {
		return err
	}

	return nil
}
