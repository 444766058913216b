package pipeline

import (
	"context"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/docuhub/vector-go/internal/config"
	apperrors "github.com/docuhub/vector-go/internal/errors"
)

// EmbeddingMode 查询向量化模式
type EmbeddingMode string

const (
	// ModePlain 不加任何引导前缀
	ModePlain EmbeddingMode = "plain"
	// ModeQuery 查询侧优化编码
	ModeQuery EmbeddingMode = "query"
	// ModeDocument 文档侧编码，用于HyDE式查询
	ModeDocument EmbeddingMode = "document"
)

// ParseEmbeddingMode 解析模式，空值按plain处理
func ParseEmbeddingMode(s string) (EmbeddingMode, error) {
	switch EmbeddingMode(s) {
	case "", ModePlain:
		return ModePlain, nil
	case ModeQuery:
		return ModeQuery, nil
	case ModeDocument:
		return ModeDocument, nil
	}
	return "", apperrors.NewValidationError("embedding mode must be one of plain, query, document")
}

// Embedder 文本向量化接口。一次调用返回与输入同序的向量，失败无部分结果。
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, mode EmbeddingMode) ([][]float32, error)
	Ready() bool
}

// NoopEmbedder 未配置时的占位实现
type NoopEmbedder struct{}

func (n *NoopEmbedder) EmbedBatch(ctx context.Context, texts []string, mode EmbeddingMode) ([][]float32, error) {
	return nil, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
		"embedding provider not configured", nil)
}

func (n *NoopEmbedder) Ready() bool {
	return false
}

// 模式前缀，对称于检索型嵌入模型的query/passage约定
var modePrefixes = map[EmbeddingMode]string{
	ModePlain:    "",
	ModeQuery:    "query: ",
	ModeDocument: "passage: ",
}

// OpenAIEmbedder 通过OpenAI兼容接口生成嵌入向量
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder 创建嵌入向量生成器，apiKey为空时返回占位实现
func NewOpenAIEmbedder(cfg config.EmbeddingConfig) Embedder {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return &NoopEmbedder{}
	}

	clientConfig := openai.DefaultConfig(apiKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	model := cfg.Model
	if model == "" {
		model = "text-embedding-3-small"
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		model:  model,
	}
}

// EmbedBatch 批量向量化。返回向量与输入同序，任一失败则整批失败。
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string, mode EmbeddingMode) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, apperrors.NewValidationError("texts batch is empty")
	}

	prefix := modePrefixes[mode]
	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = prefix + text
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(e.model),
		Input: input,
	})
	if err != nil {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
			"embedding request failed", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
			"embedding response size mismatch", nil)
	}

	vectors := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		vec := make([]float32, len(item.Embedding))
		copy(vec, item.Embedding)
		vectors[i] = vec
	}
	return vectors, nil
}

func (e *OpenAIEmbedder) Ready() bool {
	return e.client != nil
}
