package vecstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

// StoredChunk 元数据表中的一行
type StoredChunk struct {
	Position int
	DocID    string
	ChunkID  string
	Metadata map[string]interface{}
	Content  string
}

// MetadataStore position到chunk元数据的持久映射，
// 支持按position、doc_id、chunk_id三条查找路径。
type MetadataStore struct {
	db *sql.DB
}

// OpenMetadataStore 打开（或创建）sqlite元数据库
func OpenMetadataStore(dbPath string) (*MetadataStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to open metadata database", err)
	}
	// 单写者模型，避免sqlite并发写冲突
	db.SetMaxOpenConns(1)

	store := &MetadataStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *MetadataStore) initSchema() error {
	const schema = `
CREATE TABLE IF NOT EXISTS chunks (
	position INTEGER PRIMARY KEY,
	doc_id   TEXT NOT NULL,
	chunk_id TEXT NOT NULL UNIQUE,
	metadata TEXT NOT NULL,
	content  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc_id ON chunks(doc_id);
CREATE INDEX IF NOT EXISTS idx_chunks_chunk_id ON chunks(chunk_id);
`
	if _, err := s.db.Exec(schema); err != nil {
		return apperrors.NewStorageError("failed to initialize metadata schema", err)
	}
	return nil
}

// Close 关闭数据库连接
func (s *MetadataStore) Close() error {
	return s.db.Close()
}

// BeginTx 开启事务，引擎的变更操作都在事务内执行
func (s *MetadataStore) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to begin transaction", err)
	}
	return tx, nil
}

// InsertTx 在事务内按顺序插入一批行
func (s *MetadataStore) InsertTx(tx *sql.Tx, rows []StoredChunk) error {
	stmt, err := tx.Prepare(
		"INSERT INTO chunks (position, doc_id, chunk_id, metadata, content) VALUES (?, ?, ?, ?, ?)")
	if err != nil {
		return apperrors.NewStorageError("failed to prepare insert", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		metaJSON, err := json.Marshal(row.Metadata)
		if err != nil {
			return apperrors.NewStorageError("failed to encode chunk metadata", err)
		}
		if _, err := stmt.Exec(row.Position, row.DocID, row.ChunkID, string(metaJSON), row.Content); err != nil {
			return apperrors.NewStorageError("failed to insert chunk row", err)
		}
	}
	return nil
}

// DeleteAndRenumberTx 在事务内删除指定position集合并重新编号剩余行，
// 保证position与重建后的索引保持连续一致。
func (s *MetadataStore) DeleteAndRenumberTx(tx *sql.Tx, doomed []int) error {
	for _, pos := range doomed {
		if _, err := tx.Exec("DELETE FROM chunks WHERE position = ?", pos); err != nil {
			return apperrors.NewStorageError("failed to delete chunk row", err)
		}
	}

	rows, err := tx.Query("SELECT position FROM chunks ORDER BY position ASC")
	if err != nil {
		return apperrors.NewStorageError("failed to list remaining positions", err)
	}
	var remaining []int
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			rows.Close()
			return apperrors.NewStorageError("failed to scan position", err)
		}
		remaining = append(remaining, pos)
	}
	if err := rows.Close(); err != nil {
		return apperrors.NewStorageError("failed to read remaining positions", err)
	}

	// 新position恒小于等于旧position，升序更新不会撞主键
	for newPos, oldPos := range remaining {
		if newPos == oldPos {
			continue
		}
		if _, err := tx.Exec("UPDATE chunks SET position = ? WHERE position = ?", newPos, oldPos); err != nil {
			return apperrors.NewStorageError("failed to renumber chunk row", err)
		}
	}
	return nil
}

// ResetTx 在事务内清空全部行
func (s *MetadataStore) ResetTx(tx *sql.Tx) error {
	if _, err := tx.Exec("DELETE FROM chunks"); err != nil {
		return apperrors.NewStorageError("failed to reset metadata store", err)
	}
	return nil
}

// PositionsByDocID 返回文档的全部position，升序
func (s *MetadataStore) PositionsByDocID(ctx context.Context, docID string) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT position FROM chunks WHERE doc_id = ? ORDER BY position ASC", docID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query document positions", err)
	}
	defer rows.Close()

	var positions []int
	for rows.Next() {
		var pos int
		if err := rows.Scan(&pos); err != nil {
			return nil, apperrors.NewStorageError("failed to scan position", err)
		}
		positions = append(positions, pos)
	}
	return positions, rows.Err()
}

// PositionByChunkID 返回chunk的position，不存在时返回not-found错误
func (s *MetadataStore) PositionByChunkID(ctx context.Context, chunkID string) (int, error) {
	var pos int
	err := s.db.QueryRowContext(ctx,
		"SELECT position FROM chunks WHERE chunk_id = ?", chunkID).Scan(&pos)
	if err == sql.ErrNoRows {
		return 0, apperrors.NewNotFoundError(apperrors.ErrCodeChunkNotFound, fmt.Sprintf("chunk %q", chunkID))
	}
	if err != nil {
		return 0, apperrors.NewStorageError("failed to query chunk position", err)
	}
	return pos, nil
}

// GetByPosition 按position取单行
func (s *MetadataStore) GetByPosition(ctx context.Context, position int) (*StoredChunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT position, doc_id, chunk_id, metadata, content FROM chunks WHERE position = ?", position)
	return scanChunk(row, fmt.Sprintf("position %d", position), apperrors.ErrCodeChunkNotFound)
}

// GetByChunkID 按chunk_id取单行
func (s *MetadataStore) GetByChunkID(ctx context.Context, chunkID string) (*StoredChunk, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT position, doc_id, chunk_id, metadata, content FROM chunks WHERE chunk_id = ?", chunkID)
	return scanChunk(row, fmt.Sprintf("chunk %q", chunkID), apperrors.ErrCodeChunkNotFound)
}

func scanChunk(row *sql.Row, what string, code apperrors.ErrorCode) (*StoredChunk, error) {
	var chunk StoredChunk
	var metaJSON string
	err := row.Scan(&chunk.Position, &chunk.DocID, &chunk.ChunkID, &metaJSON, &chunk.Content)
	if err == sql.ErrNoRows {
		return nil, apperrors.NewNotFoundError(code, what)
	}
	if err != nil {
		return nil, apperrors.NewStorageError("failed to scan chunk row", err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
		return nil, apperrors.NewStorageError("failed to decode chunk metadata", err)
	}
	return &chunk, nil
}

// ChunksByDocID 返回文档全部chunk，按chunk_index升序
func (s *MetadataStore) ChunksByDocID(ctx context.Context, docID string) ([]StoredChunk, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT position, doc_id, chunk_id, metadata, content
FROM chunks
WHERE doc_id = ?
ORDER BY json_extract(metadata, '$.chunk_index') ASC`, docID)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query document chunks", err)
	}
	defer rows.Close()
	return scanChunks(rows)
}

// DocIDsByType 按类型与可选子类型精确匹配文档ID
func (s *MetadataStore) DocIDsByType(ctx context.Context, docType, subType string) ([]string, error) {
	query := "SELECT DISTINCT doc_id FROM chunks WHERE json_extract(metadata, '$.type') = ?"
	args := []interface{}{docType}
	if subType != "" {
		query += " AND json_extract(metadata, '$.sub_type') = ?"
		args = append(args, subType)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to query documents by type", err)
	}
	defer rows.Close()

	var docIDs []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, apperrors.NewStorageError("failed to scan doc_id", err)
		}
		docIDs = append(docIDs, id)
	}
	return docIDs, rows.Err()
}

// RandomContents 随机返回n条chunk正文
func (s *MetadataStore) RandomContents(ctx context.Context, n int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT content FROM chunks ORDER BY RANDOM() LIMIT ?", n)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to sample random chunks", err)
	}
	defer rows.Close()

	var contents []string
	for rows.Next() {
		var content string
		if err := rows.Scan(&content); err != nil {
			return nil, apperrors.NewStorageError("failed to scan content", err)
		}
		contents = append(contents, content)
	}
	return contents, rows.Err()
}

// UpdateChunk 按chunk_id更新元数据与正文，chunk不存在时返回not-found错误
func (s *MetadataStore) UpdateChunk(ctx context.Context, chunkID string, metadata map[string]interface{}, content *string) error {
	if metadata == nil && content == nil {
		return apperrors.NewValidationError("no updates provided")
	}

	query := "UPDATE chunks SET "
	var args []interface{}
	if metadata != nil {
		metaJSON, err := json.Marshal(metadata)
		if err != nil {
			return apperrors.NewStorageError("failed to encode chunk metadata", err)
		}
		query += "metadata = ?"
		args = append(args, string(metaJSON))
	}
	if content != nil {
		if metadata != nil {
			query += ", "
		}
		query += "content = ?"
		args = append(args, *content)
	}
	query += " WHERE chunk_id = ?"
	args = append(args, chunkID)

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return apperrors.NewStorageError("failed to update chunk", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return apperrors.NewStorageError("failed to check update result", err)
	}
	if affected == 0 {
		return apperrors.NewNotFoundError(apperrors.ErrCodeChunkNotFound, fmt.Sprintf("chunk %q", chunkID))
	}
	return nil
}

// HasChunkID 判断chunk_id是否已存在
func (s *MetadataStore) HasChunkID(ctx context.Context, chunkID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM chunks WHERE chunk_id = ?", chunkID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, apperrors.NewStorageError("failed to check chunk existence", err)
	}
	return true, nil
}

// Count 返回行数
func (s *MetadataStore) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM chunks").Scan(&count); err != nil {
		return 0, apperrors.NewStorageError("failed to count chunks", err)
	}
	return count, nil
}

// DistinctDocCount 返回文档数
func (s *MetadataStore) DistinctDocCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(DISTINCT doc_id) FROM chunks").Scan(&count); err != nil {
		return 0, apperrors.NewStorageError("failed to count documents", err)
	}
	return count, nil
}

func scanChunks(rows *sql.Rows) ([]StoredChunk, error) {
	var chunks []StoredChunk
	for rows.Next() {
		var chunk StoredChunk
		var metaJSON string
		if err := rows.Scan(&chunk.Position, &chunk.DocID, &chunk.ChunkID, &metaJSON, &chunk.Content); err != nil {
			return nil, apperrors.NewStorageError("failed to scan chunk row", err)
		}
		if err := json.Unmarshal([]byte(metaJSON), &chunk.Metadata); err != nil {
			return nil, apperrors.NewStorageError("failed to decode chunk metadata", err)
		}
		chunks = append(chunks, chunk)
	}
	return chunks, rows.Err()
}
