package retrieval

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/docuhub/vector-go/internal/config"
	"github.com/docuhub/vector-go/internal/document"
	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/logger"
	"github.com/docuhub/vector-go/internal/pipeline"
	"github.com/docuhub/vector-go/internal/vecstore"
)

// chunk元数据中由管线注入的键，重建文档视图时剔除
var chunkOnlyKeys = []string{"chunk_id", "chunk_index", "total_chunks"}

// SearchResult 单条检索结果，Score为余弦相似度[-1,1]
type SearchResult struct {
	ChunkID  string                 `json:"chunk_id"`
	DocID    string                 `json:"doc_id"`
	Score    float32                `json:"score"`
	Content  string                 `json:"content"`
	Metadata map[string]interface{} `json:"metadata"`
}

// DocumentView 由全部chunk重建的文档视图
type DocumentView struct {
	DocID      string                 `json:"doc_id"`
	Content    string                 `json:"content"`
	Metadata   map[string]interface{} `json:"metadata"`
	ChunkCount int                    `json:"chunk_count"`
}

// Service 检索服务：查询向量化、top-k检索、类型过滤与文档重建
type Service struct {
	engine    *vecstore.Engine
	embedder  pipeline.Embedder
	overfetch int
	log       *zap.Logger
}

// NewService 创建检索服务
func NewService(engine *vecstore.Engine, embedder pipeline.Embedder, cfg *config.Config) *Service {
	overfetch := cfg.Store.Overfetch
	if overfetch < 1 {
		overfetch = 2
	}
	return &Service{
		engine:    engine,
		embedder:  embedder,
		overfetch: overfetch,
		log:       logger.Component("retrieval"),
	}
}

// SearchByText 文本检索。
// 带类型过滤时先取overfetch*k条候选再按类型集合筛选；
// 候选耗尽时结果不足k条，照常返回短列表。
func (s *Service) SearchByText(ctx context.Context, query string, k int, mode pipeline.EmbeddingMode, filterTypes []string) ([]SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.NewValidationError("query must not be empty")
	}
	if k <= 0 {
		return nil, apperrors.NewValidationError("top_k must be positive")
	}
	for _, t := range filterTypes {
		if _, err := document.ParseType(t); err != nil {
			return nil, err
		}
	}

	vectors, err := s.embedder.EmbedBatch(ctx, []string{query}, mode)
	if err != nil {
		return nil, err
	}
	return s.SearchByVector(ctx, vectors[0], k, filterTypes)
}

// SearchByVector 向量检索，query无需预先单位化
func (s *Service) SearchByVector(ctx context.Context, query []float32, k int, filterTypes []string) ([]SearchResult, error) {
	fetchK := k
	if len(filterTypes) > 0 {
		fetchK = k * s.overfetch
	}

	hits, err := s.engine.Search(ctx, query, fetchK)
	if err != nil {
		return nil, err
	}

	allowed := make(map[string]struct{}, len(filterTypes))
	for _, t := range filterTypes {
		allowed[t] = struct{}{}
	}

	results := make([]SearchResult, 0, k)
	for _, hit := range hits {
		chunk, err := s.engine.GetByPosition(ctx, hit.Position)
		if err != nil {
			// 检索与取行之间存在删除窗口，缺行跳过
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		if len(allowed) > 0 {
			if _, ok := allowed[fmt.Sprint(chunk.Metadata["type"])]; !ok {
				continue
			}
		}
		results = append(results, SearchResult{
			ChunkID:  chunk.ChunkID,
			DocID:    chunk.DocID,
			Score:    hit.Score,
			Content:  chunk.Content,
			Metadata: chunk.Metadata,
		})
		if len(results) == k {
			break
		}
	}

	s.log.Debug("search completed",
		zap.Int("top_k", k),
		zap.Strings("filter_types", filterTypes),
		zap.Int("results", len(results)))
	return results, nil
}

// ReconstructDocument 按chunk_index顺序拼回整篇文档。
// 文档级元数据取自首个chunk，剔除chunk粒度的键。
func (s *Service) ReconstructDocument(ctx context.Context, docID string) (*DocumentView, error) {
	chunks, err := s.engine.ChunksByDocID(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, apperrors.NewNotFoundError(apperrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document %q", docID))
	}

	parts := make([]string, len(chunks))
	for i, chunk := range chunks {
		parts[i] = chunk.Content
	}

	metadata := make(map[string]interface{}, len(chunks[0].Metadata))
	for k, v := range chunks[0].Metadata {
		metadata[k] = v
	}
	for _, key := range chunkOnlyKeys {
		delete(metadata, key)
	}

	return &DocumentView{
		DocID:      docID,
		Content:    strings.Join(parts, "\n\n"),
		Metadata:   metadata,
		ChunkCount: len(chunks),
	}, nil
}

// DocumentsByType 按类型（可选子类型）列出完整文档视图。
// 子类型对类型的适用性是调用方错误而非静默忽略。
func (s *Service) DocumentsByType(ctx context.Context, docType, projectSubtype, otherSubtype string) ([]DocumentView, error) {
	parsed, err := document.ParseType(docType)
	if err != nil {
		return nil, err
	}
	if err := document.ValidateSubtypeApplicability(parsed, projectSubtype, otherSubtype); err != nil {
		return nil, err
	}
	subType := projectSubtype
	if subType == "" {
		subType = otherSubtype
	}

	docIDs, err := s.engine.DocIDsByType(ctx, docType, subType)
	if err != nil {
		return nil, err
	}

	views := make([]DocumentView, 0, len(docIDs))
	for _, docID := range docIDs {
		view, err := s.ReconstructDocument(ctx, docID)
		if err != nil {
			if apperrors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		views = append(views, *view)
	}
	return views, nil
}

// RandomSample 随机抽取chunk正文。抽样是尽力而为的，失败返回空列表。
func (s *Service) RandomSample(ctx context.Context, n int) []string {
	if n <= 0 {
		n = 1
	}
	contents, err := s.engine.RandomContents(ctx, n)
	if err != nil {
		s.log.Error("random sample failed", zap.Error(err))
		return []string{}
	}
	return contents
}
