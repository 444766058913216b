package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuhub/vector-go/internal/config"
	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/pipeline"
	"github.com/docuhub/vector-go/internal/vecstore"
)

const testDim = 4

// mapEmbedder 按固定映射返回向量，查询文本必须预先注册
type mapEmbedder struct {
	vectors map[string][]float32
	// lastMode 记录最近一次调用的模式，用于断言模式透传
	lastMode pipeline.EmbeddingMode
}

func (m *mapEmbedder) EmbedBatch(ctx context.Context, texts []string, mode pipeline.EmbeddingMode) ([][]float32, error) {
	m.lastMode = mode
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec, ok := m.vectors[text]
		if !ok {
			return nil, apperrors.NewExternalError(apperrors.ErrCodeEmbeddingFailed,
				fmt.Sprintf("no vector registered for %q", text), nil)
		}
		out[i] = vec
	}
	return out, nil
}

func (m *mapEmbedder) Ready() bool { return true }

func axisVector(axis int) []float32 {
	vec := make([]float32, testDim)
	vec[axis%testDim] = 1
	return vec
}

func chunkRecord(docID string, idx int, docType string, embedding []float32) vecstore.Record {
	chunkID := fmt.Sprintf("%s_%d", docID, idx)
	return vecstore.Record{
		ChunkID:   chunkID,
		DocID:     docID,
		Embedding: embedding,
		Metadata: map[string]interface{}{
			"doc_id":       docID,
			"chunk_id":     chunkID,
			"chunk_index":  idx,
			"total_chunks": 3,
			"type":         docType,
			"title":        "Fixture",
		},
		Content: fmt.Sprintf("content %s %d", docID, idx),
	}
}

func newTestService(t *testing.T, embedder pipeline.Embedder) (*Service, *vecstore.Engine) {
	t.Helper()
	engine, err := vecstore.NewEngine(t.TempDir(), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })

	cfg := &config.Config{Store: config.StoreConfig{Overfetch: 2}}
	return NewService(engine, embedder, cfg), engine
}

func TestSearchByTextReturnsRankedResults(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"query one": axisVector(1),
	}}
	service, engine := newTestService(t, embedder)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []vecstore.Record{
		chunkRecord("doc-a", 0, "experience", axisVector(0)),
		chunkRecord("doc-a", 1, "experience", axisVector(1)),
		chunkRecord("doc-b", 0, "project", axisVector(2)),
	}))

	results, err := service.SearchByText(ctx, "query one", 2, pipeline.ModeQuery, nil)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "doc-a_1", results[0].ChunkID)
	assert.InDelta(t, 1.0, float64(results[0].Score), 1e-5)
	assert.Equal(t, pipeline.ModeQuery, embedder.lastMode)
	assert.Equal(t, "content doc-a 1", results[0].Content)
}

func TestSearchRejectsBadInput(t *testing.T) {
	service, _ := newTestService(t, &mapEmbedder{vectors: map[string][]float32{}})
	ctx := context.Background()

	_, err := service.SearchByText(ctx, "  ", 5, pipeline.ModePlain, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.SearchByText(ctx, "q", 0, pipeline.ModePlain, nil)
	assert.True(t, apperrors.IsValidation(err))

	_, err = service.SearchByText(ctx, "q", 5, pipeline.ModePlain, []string{"recipes"})
	assert.True(t, apperrors.IsValidation(err))
}

func TestTypeFilteredSearchBoundary(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"query": {1, 1, 1, 1},
	}}
	service, engine := newTestService(t, embedder)
	ctx := context.Background()

	// 8条候选中只有2条project，k=5只返回2条而不是报错或凑数
	records := make([]vecstore.Record, 0, 8)
	for i := 0; i < 6; i++ {
		records = append(records, chunkRecord("doc-exp", i, "experience", axisVector(i)))
	}
	records = append(records,
		chunkRecord("doc-proj", 0, "project", axisVector(0)),
		chunkRecord("doc-proj", 1, "project", axisVector(1)),
	)
	require.NoError(t, engine.Store(ctx, records))

	results, err := service.SearchByText(ctx, "query", 5, pipeline.ModePlain, []string{"project"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	for _, r := range results {
		assert.Equal(t, "doc-proj", r.DocID)
	}
}

func TestReconstructDocumentOrdering(t *testing.T) {
	service, engine := newTestService(t, &mapEmbedder{})
	ctx := context.Background()

	// 物理插入顺序与chunk_index相反，重建仍按chunk_index排序
	require.NoError(t, engine.Store(ctx, []vecstore.Record{
		chunkRecord("doc-a", 2, "experience", axisVector(2)),
		chunkRecord("doc-a", 0, "experience", axisVector(0)),
		chunkRecord("doc-a", 1, "experience", axisVector(1)),
	}))

	view, err := service.ReconstructDocument(ctx, "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "content doc-a 0\n\ncontent doc-a 1\n\ncontent doc-a 2", view.Content)
	assert.Equal(t, 3, view.ChunkCount)

	// 文档级元数据剔除chunk粒度的键
	assert.Equal(t, "experience", view.Metadata["type"])
	assert.Equal(t, "Fixture", view.Metadata["title"])
	for _, key := range []string{"chunk_id", "chunk_index", "total_chunks"} {
		_, present := view.Metadata[key]
		assert.False(t, present, "key %s should be stripped", key)
	}
}

func TestReconstructUnknownDocument(t *testing.T) {
	service, _ := newTestService(t, &mapEmbedder{})
	_, err := service.ReconstructDocument(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestDocumentsByTypeWithSubtype(t *testing.T) {
	service, engine := newTestService(t, &mapEmbedder{})
	ctx := context.Background()

	productChunk := chunkRecord("doc-p", 0, "project", axisVector(0))
	productChunk.Metadata["sub_type"] = "product"
	processChunk := chunkRecord("doc-q", 0, "project", axisVector(1))
	processChunk.Metadata["sub_type"] = "process"

	require.NoError(t, engine.Store(ctx, []vecstore.Record{
		productChunk,
		processChunk,
		chunkRecord("doc-e", 0, "experience", axisVector(2)),
	}))

	views, err := service.DocumentsByType(ctx, "project", "", "")
	require.NoError(t, err)
	assert.Len(t, views, 2)

	views, err = service.DocumentsByType(ctx, "project", "product", "")
	require.NoError(t, err)
	require.Len(t, views, 1)
	assert.Equal(t, "doc-p", views[0].DocID)

	// 子类型与类型错配是调用方错误
	_, err = service.DocumentsByType(ctx, "project", "", "recommendation")
	assert.True(t, apperrors.IsValidation(err))
	_, err = service.DocumentsByType(ctx, "experience", "product", "")
	assert.True(t, apperrors.IsValidation(err))
	_, err = service.DocumentsByType(ctx, "recipes", "", "")
	assert.True(t, apperrors.IsValidation(err))
}

func TestRandomSampleBestEffort(t *testing.T) {
	service, engine := newTestService(t, &mapEmbedder{})
	ctx := context.Background()

	// 空存储返回空列表而不是错误
	assert.Empty(t, service.RandomSample(ctx, 5))

	require.NoError(t, engine.Store(ctx, []vecstore.Record{
		chunkRecord("doc-a", 0, "experience", axisVector(0)),
		chunkRecord("doc-a", 1, "experience", axisVector(1)),
	}))

	contents := service.RandomSample(ctx, 5)
	assert.Len(t, contents, 2)
}

func TestEndToEndStoreSearchRemove(t *testing.T) {
	embedder := &mapEmbedder{vectors: map[string][]float32{
		"chunk one": axisVector(1),
	}}
	service, engine := newTestService(t, embedder)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []vecstore.Record{
		chunkRecord("A", 0, "experience", axisVector(0)),
		chunkRecord("A", 1, "experience", axisVector(1)),
		chunkRecord("A", 2, "experience", axisVector(2)),
	}))

	results, err := service.SearchByText(ctx, "chunk one", 3, pipeline.ModePlain, nil)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, "A_1", results[0].ChunkID)

	require.NoError(t, engine.RemoveByDocument(ctx, "A"))

	results, err = service.SearchByText(ctx, "chunk one", 3, pipeline.ModePlain, nil)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "A", r.DocID)
	}

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalDocuments)
}
