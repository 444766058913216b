package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Store     StoreConfig
	Documents DocumentsConfig
	Embedding EmbeddingConfig
	Metrics   MetricsConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

// StoreConfig 向量存储配置
type StoreConfig struct {
	DataDir   string
	Dimension int
	// Overfetch 类型过滤时的候选放大倍数
	Overfetch int
}

// DocumentsConfig 文档目录与监听配置
type DocumentsConfig struct {
	Dir          string
	IgnoreGlobs  []string
	Extensions   []string
	Debounce     time.Duration
	WatchEnabled bool
}

// EmbeddingConfig 嵌入服务配置
type EmbeddingConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	BatchSize int
}

type MetricsConfig struct {
	Enabled bool
}

var AppConfig *Config

// GetAppConfig 获取全局配置实例
func GetAppConfig() *Config {
	return AppConfig
}

// LoadConfig 加载配置，优先级：环境变量 > 默认值
func LoadConfig() error {
	v := viper.New()

	// 设置默认值
	v.SetDefault("server.port", "8000")
	v.SetDefault("server.env", "development")

	v.SetDefault("store.data_dir", "./data")
	v.SetDefault("store.dimension", 1024)
	v.SetDefault("store.overfetch", 2)

	v.SetDefault("documents.dir", "./documents")
	v.SetDefault("documents.ignore_globs", []string{
		"*/templates/*",
		"*/.git/*",
		"*/node_modules/*",
		"*.swp",
		"*.tmp",
	})
	v.SetDefault("documents.extensions", []string{".md"})
	v.SetDefault("documents.debounce", "1s")
	v.SetDefault("documents.watch_enabled", true)

	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "text-embedding-3-small")
	v.SetDefault("embedding.batch_size", 100)

	v.SetDefault("metrics.enabled", true)

	// 读取环境变量
	v.SetEnvPrefix("DOCUHUB")
	v.AutomaticEnv()

	if port := os.Getenv("PORT"); port != "" {
		v.Set("server.port", port)
	}
	if env := os.Getenv("ENV"); env != "" {
		v.Set("server.env", env)
	}
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		v.Set("store.data_dir", dataDir)
	}
	if dim := os.Getenv("VECTOR_DIMENSION"); dim != "" {
		if n, err := strconv.Atoi(dim); err == nil && n > 0 {
			v.Set("store.dimension", n)
		}
	}
	if docsDir := os.Getenv("DOCUMENTS_DIR"); docsDir != "" {
		v.Set("documents.dir", docsDir)
	}
	if globs := os.Getenv("IGNORE_GLOBS"); globs != "" {
		// 支持逗号分隔的glob列表
		parts := strings.Split(globs, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		v.Set("documents.ignore_globs", parts)
	}
	if debounce := os.Getenv("WATCH_DEBOUNCE"); debounce != "" {
		v.Set("documents.debounce", debounce)
	}
	if watch := os.Getenv("WATCH_ENABLED"); watch == "false" {
		v.Set("documents.watch_enabled", false)
	}
	if apiKey := os.Getenv("EMBEDDING_API_KEY"); apiKey != "" {
		v.Set("embedding.api_key", apiKey)
	}
	if baseURL := os.Getenv("EMBEDDING_BASE_URL"); baseURL != "" {
		v.Set("embedding.base_url", baseURL)
	}
	if model := os.Getenv("EMBEDDING_MODEL"); model != "" {
		v.Set("embedding.model", model)
	}
	if batch := os.Getenv("EMBEDDING_BATCH_SIZE"); batch != "" {
		if n, err := strconv.Atoi(batch); err == nil && n > 0 {
			v.Set("embedding.batch_size", n)
		}
	}
	if metrics := os.Getenv("METRICS_ENABLED"); metrics == "false" {
		v.Set("metrics.enabled", false)
	}

	debounce, err := time.ParseDuration(v.GetString("documents.debounce"))
	if err != nil {
		return fmt.Errorf("invalid documents.debounce: %w", err)
	}

	AppConfig = &Config{
		Server: ServerConfig{
			Port: v.GetString("server.port"),
			Env:  v.GetString("server.env"),
		},
		Store: StoreConfig{
			DataDir:   v.GetString("store.data_dir"),
			Dimension: v.GetInt("store.dimension"),
			Overfetch: v.GetInt("store.overfetch"),
		},
		Documents: DocumentsConfig{
			Dir:          v.GetString("documents.dir"),
			IgnoreGlobs:  v.GetStringSlice("documents.ignore_globs"),
			Extensions:   v.GetStringSlice("documents.extensions"),
			Debounce:     debounce,
			WatchEnabled: v.GetBool("documents.watch_enabled"),
		},
		Embedding: EmbeddingConfig{
			APIKey:    v.GetString("embedding.api_key"),
			BaseURL:   v.GetString("embedding.base_url"),
			Model:     v.GetString("embedding.model"),
			BatchSize: v.GetInt("embedding.batch_size"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
		},
	}

	if AppConfig.Store.Overfetch < 1 {
		AppConfig.Store.Overfetch = 2
	}

	return nil
}

// ValidatePaths 校验并创建数据与文档目录，目录不可写时返回错误
func ValidatePaths(cfg *Config) error {
	paths := map[string]string{
		"data":      cfg.Store.DataDir,
		"documents": cfg.Documents.Dir,
	}
	for name, path := range paths {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("cannot create %s directory at %s: %w", name, path, err)
		}
		probe := path + string(os.PathSeparator) + ".write_test"
		if err := os.WriteFile(probe, nil, 0o644); err != nil {
			return fmt.Errorf("cannot write to %s directory at %s: %w", name, path, err)
		}
		os.Remove(probe)
	}
	return nil
}
