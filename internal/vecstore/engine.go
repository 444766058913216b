package vecstore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/logger"
	"github.com/docuhub/vector-go/internal/metrics"
)

const (
	indexFileName  = "vectors.index"
	backupFileName = "vectors.index.bak"
	metadataDBName = "metadata.db"
)

// Record 待入库的chunk向量
type Record struct {
	ChunkID   string
	DocID     string
	Embedding []float32
	Metadata  map[string]interface{}
	Content   string
}

// Stats 存储统计信息
type Stats struct {
	TotalVectors      int     `json:"total_vectors"`
	TotalDocuments    int     `json:"total_documents"`
	VectorsInMetadata int     `json:"vectors_in_metadata"`
	Dimension         int     `json:"dimension"`
	IndexSizeMB       float64 `json:"index_size_mb"`
	DataDirectory     string  `json:"data_directory"`
}

// Engine 向量索引与元数据的一致性引擎。
// 索引与元数据库由Engine独占持有，全部变更经由Engine的操作进行。
// 重建类操作持写锁，检索持读锁，避免读到换到一半的索引。
type Engine struct {
	mu sync.RWMutex

	dim        int
	dataDir    string
	indexPath  string
	backupPath string

	index *FlatIndex
	meta  *MetadataStore

	log *zap.Logger
}

// NewEngine 创建引擎：加载（或新建）索引文件并打开元数据库
func NewEngine(dataDir string, dimension int) (*Engine, error) {
	if dimension <= 0 {
		return nil, apperrors.NewValidationError("vector dimension must be positive")
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, apperrors.NewStorageError("failed to create data directory", err)
	}

	e := &Engine{
		dim:        dimension,
		dataDir:    dataDir,
		indexPath:  filepath.Join(dataDir, indexFileName),
		backupPath: filepath.Join(dataDir, backupFileName),
		log:        logger.Component("vector_store"),
	}

	index, err := e.loadOrCreateIndex()
	if err != nil {
		return nil, err
	}
	e.index = index

	meta, err := OpenMetadataStore(filepath.Join(dataDir, metadataDBName))
	if err != nil {
		return nil, err
	}
	e.meta = meta

	e.log.Info("vector store initialized",
		zap.Int("dimension", dimension),
		zap.Int("total_vectors", index.Size()),
		zap.String("data_dir", dataDir))

	return e, nil
}

// loadOrCreateIndex 加载索引，主文件损坏时回退到备份，再失败则新建空索引
func (e *Engine) loadOrCreateIndex() (*FlatIndex, error) {
	if _, err := os.Stat(e.indexPath); err == nil {
		index, err := ReadIndexFile(e.indexPath, e.dim)
		if err == nil {
			e.log.Info("loaded existing index", zap.Int("total_vectors", index.Size()))
			return index, nil
		}
		e.log.Error("failed to load index", zap.Error(err))

		if _, berr := os.Stat(e.backupPath); berr == nil {
			index, berr := ReadIndexFile(e.backupPath, e.dim)
			if berr == nil {
				e.log.Info("restored index from backup", zap.Int("total_vectors", index.Size()))
				return index, nil
			}
			e.log.Error("failed to restore backup", zap.Error(berr))
		}
	}

	index := NewFlatIndex(e.dim)
	if err := WriteIndexFile(e.indexPath, index); err != nil {
		return nil, apperrors.NewStorageError("failed to create index file", err)
	}
	e.log.Info("created new index")
	return index, nil
}

// Close 关闭引擎持有的资源
func (e *Engine) Close() error {
	return e.meta.Close()
}

// Dimension 返回索引维度
func (e *Engine) Dimension() int {
	return e.dim
}

// persistIndex 按备份纪律写索引文件：
// 主文件先改名为备份，写入成功后删除备份，失败则把备份改回主文件。
// 返回的commit/rollback由调用方在元数据事务落定后执行。
func (e *Engine) persistIndex(index *FlatIndex) (commit func(), rollback func(), err error) {
	start := time.Now()
	hadPrimary := false
	if _, statErr := os.Stat(e.indexPath); statErr == nil {
		hadPrimary = true
		if renameErr := os.Rename(e.indexPath, e.backupPath); renameErr != nil {
			return nil, nil, apperrors.NewStorageError("failed to back up index file", renameErr)
		}
	}

	if writeErr := WriteIndexFile(e.indexPath, index); writeErr != nil {
		if hadPrimary {
			if restoreErr := os.Rename(e.backupPath, e.indexPath); restoreErr != nil {
				e.log.Error("failed to restore index backup", zap.Error(restoreErr))
			}
		}
		return nil, nil, apperrors.NewStorageError("failed to write index file", writeErr)
	}

	commit = func() {
		if hadPrimary {
			os.Remove(e.backupPath)
		}
		metrics.PersistDuration.Observe(time.Since(start).Seconds())
	}
	rollback = func() {
		if hadPrimary {
			if restoreErr := os.Rename(e.backupPath, e.indexPath); restoreErr != nil {
				e.log.Error("failed to restore index backup", zap.Error(restoreErr))
			}
		} else {
			os.Remove(e.indexPath)
		}
	}
	return commit, rollback, nil
}

// Store 追加一批向量及其元数据。
// 批内任一向量维度不符、chunk_id重复或已存在时，整批在任何变更前被拒绝。
func (e *Engine) Store(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return apperrors.NewValidationError("records batch is empty")
	}

	normalized := make([][]float32, len(records))
	seen := make(map[string]struct{}, len(records))
	for i, rec := range records {
		if rec.ChunkID == "" {
			return apperrors.NewValidationError(fmt.Sprintf("record %d missing chunk_id", i))
		}
		if _, dup := seen[rec.ChunkID]; dup {
			return apperrors.NewValidationErrorWithCode(apperrors.ErrCodeDuplicateChunk,
				fmt.Sprintf("duplicate chunk_id %q in batch", rec.ChunkID))
		}
		seen[rec.ChunkID] = struct{}{}

		if len(rec.Embedding) != e.dim {
			return apperrors.NewValidationErrorWithCode(apperrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("record %q has dimension %d, expected %d", rec.ChunkID, len(rec.Embedding), e.dim))
		}
		vec, err := Normalize(rec.Embedding)
		if err != nil {
			return err
		}
		normalized[i] = vec
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	for _, rec := range records {
		exists, err := e.meta.HasChunkID(ctx, rec.ChunkID)
		if err != nil {
			return err
		}
		if exists {
			return apperrors.NewValidationErrorWithCode(apperrors.ErrCodeDuplicateChunk,
				fmt.Sprintf("chunk_id %q already stored", rec.ChunkID))
		}
	}

	start, err := e.index.Append(normalized)
	if err != nil {
		return err
	}

	rows := make([]StoredChunk, len(records))
	for i, rec := range records {
		rows[i] = StoredChunk{
			Position: start + i,
			DocID:    rec.DocID,
			ChunkID:  rec.ChunkID,
			Metadata: rec.Metadata,
			Content:  rec.Content,
		}
	}

	tx, err := e.meta.BeginTx(ctx)
	if err != nil {
		e.index.Truncate(start)
		return err
	}
	if err := e.meta.InsertTx(tx, rows); err != nil {
		tx.Rollback()
		e.index.Truncate(start)
		return err
	}

	commitFile, rollbackFile, err := e.persistIndex(e.index)
	if err != nil {
		tx.Rollback()
		e.index.Truncate(start)
		return err
	}
	if err := tx.Commit(); err != nil {
		rollbackFile()
		e.index.Truncate(start)
		return apperrors.NewStorageError("failed to commit metadata", err)
	}
	commitFile()

	e.updateGauges(ctx)
	e.log.Info("stored vectors",
		zap.Int("batch_size", len(records)),
		zap.Int("total_vectors", e.index.Size()))
	return nil
}

// Search 对单位化后的query做内积top-k检索，得分为余弦相似度[-1,1]
func (e *Engine) Search(ctx context.Context, query []float32, k int) ([]Hit, error) {
	if len(query) != e.dim {
		return nil, apperrors.NewValidationErrorWithCode(apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has dimension %d, expected %d", len(query), e.dim))
	}
	normalized, err := Normalize(query)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	e.mu.RLock()
	hits, err := e.index.Search(normalized, k)
	e.mu.RUnlock()
	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	return hits, err
}

// RemoveByDocument 删除文档的全部向量。
// 索引不支持单点删除，保留向量被整体重建为新索引后原子换入。
func (e *Engine) RemoveByDocument(ctx context.Context, docID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	positions, err := e.meta.PositionsByDocID(ctx, docID)
	if err != nil {
		return err
	}
	if len(positions) == 0 {
		return apperrors.NewNotFoundError(apperrors.ErrCodeDocumentNotFound, fmt.Sprintf("document %q", docID))
	}

	if err := e.rebuildWithout(ctx, positions); err != nil {
		return err
	}

	e.log.Info("removed document vectors",
		zap.String("doc_id", docID),
		zap.Int("vectors_removed", len(positions)),
		zap.Int("total_vectors", e.index.Size()))
	return nil
}

// RemoveByChunk 删除单个chunk的向量
func (e *Engine) RemoveByChunk(ctx context.Context, chunkID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	position, err := e.meta.PositionByChunkID(ctx, chunkID)
	if err != nil {
		return err
	}

	if err := e.rebuildWithout(ctx, []int{position}); err != nil {
		return err
	}

	e.log.Info("removed chunk vector",
		zap.String("chunk_id", chunkID),
		zap.Int("total_vectors", e.index.Size()))
	return nil
}

// rebuildWithout 以保留向量重建索引并同步删除元数据行。调用方必须持写锁。
func (e *Engine) rebuildWithout(ctx context.Context, doomed []int) error {
	doomedSet := make(map[int]struct{}, len(doomed))
	for _, pos := range doomed {
		doomedSet[pos] = struct{}{}
	}

	size := e.index.Size()
	kept := make([][]float32, 0, size-len(doomed))
	for pos := 0; pos < size; pos++ {
		if _, gone := doomedSet[pos]; gone {
			continue
		}
		vec, err := Normalize(e.index.Reconstruct(pos))
		if err != nil {
			return err
		}
		kept = append(kept, vec)
	}

	newIndex := NewFlatIndex(e.dim)
	if len(kept) > 0 {
		if _, err := newIndex.Append(kept); err != nil {
			return err
		}
	}

	tx, err := e.meta.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := e.meta.DeleteAndRenumberTx(tx, doomed); err != nil {
		tx.Rollback()
		return err
	}

	commitFile, rollbackFile, err := e.persistIndex(newIndex)
	if err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		rollbackFile()
		return apperrors.NewStorageError("failed to commit metadata", err)
	}

	e.index = newIndex
	commitFile()
	e.updateGauges(ctx)
	return nil
}

// Reset 清空存储：元数据单事务清空，索引文件temp写入后原子替换，最后换入内存引用
func (e *Engine) Reset(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.log.Info("initiating vector store reset")

	tx, err := e.meta.BeginTx(ctx)
	if err != nil {
		return err
	}
	if err := e.meta.ResetTx(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return apperrors.NewStorageError("failed to commit metadata reset", err)
	}

	empty := NewFlatIndex(e.dim)
	if err := WriteIndexFile(e.indexPath, empty); err != nil {
		return apperrors.NewStorageError("failed to write empty index", err)
	}
	os.Remove(e.backupPath)

	e.index = empty
	e.updateGauges(ctx)
	e.log.Info("vector store reset completed", zap.Int("dimension", e.dim))
	return nil
}

// Stats 返回存储统计
func (e *Engine) Stats(ctx context.Context) (*Stats, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	metaCount, err := e.meta.Count(ctx)
	if err != nil {
		return nil, err
	}
	docCount, err := e.meta.DistinctDocCount(ctx)
	if err != nil {
		return nil, err
	}

	var sizeMB float64
	if info, err := os.Stat(e.indexPath); err == nil {
		sizeMB = float64(info.Size()) / (1024 * 1024)
	}

	return &Stats{
		TotalVectors:      e.index.Size(),
		TotalDocuments:    docCount,
		VectorsInMetadata: metaCount,
		Dimension:         e.dim,
		IndexSizeMB:       sizeMB,
		DataDirectory:     e.dataDir,
	}, nil
}

// GetByPosition 按position读取chunk元数据
func (e *Engine) GetByPosition(ctx context.Context, position int) (*StoredChunk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.GetByPosition(ctx, position)
}

// GetByChunkID 按chunk_id读取chunk元数据
func (e *Engine) GetByChunkID(ctx context.Context, chunkID string) (*StoredChunk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.GetByChunkID(ctx, chunkID)
}

// UpdateChunk 原位更新chunk的元数据与正文，不触碰向量
func (e *Engine) UpdateChunk(ctx context.Context, chunkID string, metadata map[string]interface{}, content *string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.meta.UpdateChunk(ctx, chunkID, metadata, content)
}

// ChunksByDocID 按chunk_index升序返回文档全部chunk
func (e *Engine) ChunksByDocID(ctx context.Context, docID string) ([]StoredChunk, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.ChunksByDocID(ctx, docID)
}

// DocIDsByType 按类型过滤文档ID
func (e *Engine) DocIDsByType(ctx context.Context, docType, subType string) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.DocIDsByType(ctx, docType, subType)
}

// RandomContents 随机抽样chunk正文
func (e *Engine) RandomContents(ctx context.Context, n int) ([]string, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.meta.RandomContents(ctx, n)
}

func (e *Engine) updateGauges(ctx context.Context) {
	metrics.VectorCount.Set(float64(e.index.Size()))
	if docCount, err := e.meta.DistinctDocCount(ctx); err == nil {
		metrics.DocumentCount.Set(float64(docCount))
	}
}
