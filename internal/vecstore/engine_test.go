package vecstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

const testDim = 4

// axisVector 返回指定轴上的单位向量
func axisVector(axis int) []float32 {
	vec := make([]float32, testDim)
	vec[axis%testDim] = 1
	return vec
}

func testRecord(docID string, idx int, axis int) Record {
	chunkID := fmt.Sprintf("%s_%d", docID, idx)
	return Record{
		ChunkID:   chunkID,
		DocID:     docID,
		Embedding: axisVector(axis),
		Metadata: map[string]interface{}{
			"doc_id":      docID,
			"chunk_id":    chunkID,
			"chunk_index": idx,
			"type":        "experience",
		},
		Content: fmt.Sprintf("content of %s", chunkID),
	}
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(t.TempDir(), testDim)
	require.NoError(t, err)
	t.Cleanup(func() { engine.Close() })
	return engine
}

func TestStoreAndSearchRoundTrip(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	records := []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
		testRecord("doc-b", 0, 2),
	}
	require.NoError(t, engine.Store(ctx, records))

	// 以已入库向量查询，top-1应是它自己且得分约等于1
	hits, err := engine.Search(ctx, axisVector(1), 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-5)

	chunk, err := engine.GetByPosition(ctx, hits[0].Position)
	require.NoError(t, err)
	assert.Equal(t, "doc-a_1", chunk.ChunkID)
}

func TestStoreNormalizesVectors(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	rec := testRecord("doc-a", 0, 0)
	rec.Embedding = []float32{3, 0, 0, 0}
	require.NoError(t, engine.Store(ctx, []Record{rec}))

	hits, err := engine.Search(ctx, []float32{7, 0, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-5)
}

func TestPositionContiguityAfterRemoval(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
		testRecord("doc-b", 0, 2),
		testRecord("doc-b", 1, 3),
		testRecord("doc-c", 0, 0),
	}))

	require.NoError(t, engine.RemoveByDocument(ctx, "doc-a"))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalVectors)
	assert.Equal(t, 3, stats.VectorsInMetadata)
	assert.Equal(t, 2, stats.TotalDocuments)

	// 占用的position必须是[0,N)无空洞
	for pos := 0; pos < stats.TotalVectors; pos++ {
		chunk, err := engine.GetByPosition(ctx, pos)
		require.NoError(t, err, "position %d should exist", pos)
		assert.NotEqual(t, "doc-a", chunk.DocID)
	}
	_, err = engine.GetByPosition(ctx, stats.TotalVectors)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemoveByDocumentCompleteness(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
		testRecord("doc-b", 0, 2),
	}))
	require.NoError(t, engine.RemoveByDocument(ctx, "doc-a"))

	chunks, err := engine.ChunksByDocID(ctx, "doc-a")
	require.NoError(t, err)
	assert.Empty(t, chunks)

	// 检索任意方向都不应再返回doc-a的chunk
	for axis := 0; axis < testDim; axis++ {
		hits, err := engine.Search(ctx, axisVector(axis), 10)
		require.NoError(t, err)
		for _, hit := range hits {
			chunk, err := engine.GetByPosition(ctx, hit.Position)
			require.NoError(t, err)
			assert.NotEqual(t, "doc-a", chunk.DocID)
		}
	}
}

func TestRemoveUnknownDocumentIsNotFound(t *testing.T) {
	engine := newTestEngine(t)
	err := engine.RemoveByDocument(context.Background(), "missing")
	assert.True(t, apperrors.IsNotFound(err))
}

func TestRemoveByChunkKeepsRemainder(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
		testRecord("doc-a", 2, 2),
	}))
	require.NoError(t, engine.RemoveByChunk(ctx, "doc-a_1"))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)

	_, err = engine.GetByChunkID(ctx, "doc-a_1")
	assert.True(t, apperrors.IsNotFound(err))

	// 留下的chunk仍可通过检索命中
	hits, err := engine.Search(ctx, axisVector(2), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	chunk, err := engine.GetByPosition(ctx, hits[0].Position)
	require.NoError(t, err)
	assert.Equal(t, "doc-a_2", chunk.ChunkID)
}

func TestDuplicateChunkIDRejectedBeforeMutation(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{testRecord("doc-a", 0, 0)}))

	err := engine.Store(ctx, []Record{
		testRecord("doc-b", 0, 1),
		testRecord("doc-a", 0, 2), // chunk_id已存在
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	// 整批被拒绝，doc-b也不应入库
	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalVectors)
	assert.Equal(t, 1, stats.VectorsInMetadata)
}

func TestDimensionMismatchBatchAtomicity(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	bad := testRecord("doc-a", 1, 0)
	bad.Embedding = []float32{1, 0}

	err := engine.Store(ctx, []Record{testRecord("doc-a", 0, 0), bad})
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalVectors)
	assert.Equal(t, 0, stats.VectorsInMetadata)
}

func TestZeroVectorRejected(t *testing.T) {
	engine := newTestEngine(t)

	rec := testRecord("doc-a", 0, 0)
	rec.Embedding = make([]float32, testDim)
	err := engine.Store(context.Background(), []Record{rec})
	assert.True(t, apperrors.IsValidation(err))
}

func TestResetFinality(t *testing.T) {
	dataDir := t.TempDir()
	engine, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	defer engine.Close()
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-b", 0, 1),
	}))
	require.NoError(t, engine.Reset(ctx))

	stats, err := engine.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalVectors)
	assert.Equal(t, 0, stats.VectorsInMetadata)
	assert.Equal(t, 0, stats.TotalDocuments)

	hits, err := engine.Search(ctx, axisVector(0), 5)
	require.NoError(t, err)
	assert.Empty(t, hits)

	_, err = os.Stat(filepath.Join(dataDir, backupFileName))
	assert.True(t, os.IsNotExist(err))

	// 清空后可以重新入库
	require.NoError(t, engine.Store(ctx, []Record{testRecord("doc-a", 0, 0)}))
}

func TestLoadFallsBackToBackupOnCorruptIndex(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	engine, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
	}))
	require.NoError(t, engine.Close())

	indexPath := filepath.Join(dataDir, indexFileName)
	backupPath := filepath.Join(dataDir, backupFileName)

	valid, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(backupPath, valid, 0o644))
	require.NoError(t, os.WriteFile(indexPath, []byte("garbage"), 0o644))

	reopened, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)
}

func TestLoadFallsBackToBackupOnForgedCount(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	engine, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-a", 1, 1),
	}))
	require.NoError(t, engine.Close())

	indexPath := filepath.Join(dataDir, indexFileName)
	backupPath := filepath.Join(dataDir, backupFileName)

	valid, err := os.ReadFile(indexPath)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(backupPath, valid, 0o644))

	// 头部magic/version/dim合法，count为垃圾值：启动必须走备份回退而非超量分配
	var forged bytes.Buffer
	for _, v := range []uint32{indexMagic, indexVersion, uint32(testDim), 0xFFFFFFFF} {
		require.NoError(t, binary.Write(&forged, binary.LittleEndian, v))
	}
	require.NoError(t, os.WriteFile(indexPath, forged.Bytes(), 0o644))

	reopened, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	defer reopened.Close()

	stats, err := reopened.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalVectors)
}

func TestPersistenceAcrossRestart(t *testing.T) {
	dataDir := t.TempDir()
	ctx := context.Background()

	engine, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	require.NoError(t, engine.Store(ctx, []Record{
		testRecord("doc-a", 0, 0),
		testRecord("doc-b", 0, 1),
	}))
	require.NoError(t, engine.Close())

	reopened, err := NewEngine(dataDir, testDim)
	require.NoError(t, err)
	defer reopened.Close()

	hits, err := reopened.Search(ctx, axisVector(1), 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	chunk, err := reopened.GetByPosition(ctx, hits[0].Position)
	require.NoError(t, err)
	assert.Equal(t, "doc-b_0", chunk.ChunkID)
}

func TestUpdateChunkInPlace(t *testing.T) {
	engine := newTestEngine(t)
	ctx := context.Background()

	require.NoError(t, engine.Store(ctx, []Record{testRecord("doc-a", 0, 0)}))

	newContent := "updated content"
	err := engine.UpdateChunk(ctx, "doc-a_0", map[string]interface{}{"reviewed": true}, &newContent)
	require.NoError(t, err)

	chunk, err := engine.GetByChunkID(ctx, "doc-a_0")
	require.NoError(t, err)
	assert.Equal(t, "updated content", chunk.Content)
	assert.Equal(t, true, chunk.Metadata["reviewed"])

	err = engine.UpdateChunk(ctx, "missing_0", nil, &newContent)
	assert.True(t, apperrors.IsNotFound(err))
}
