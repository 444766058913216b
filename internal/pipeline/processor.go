package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuhub/vector-go/internal/config"
	"github.com/docuhub/vector-go/internal/document"
	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/logger"
	"github.com/docuhub/vector-go/internal/metrics"
	"github.com/docuhub/vector-go/internal/vecstore"
)

// Processor 文档处理管线：解析front-matter、切分、批量向量化并写入引擎。
// 持有source path到doc_id的映射，重复处理同一来源时复用文档身份。
type Processor struct {
	engine   *vecstore.Engine
	embedder Embedder
	chunker  *SectionChunker

	docsDir     string
	ignoreGlobs []string
	extensions  []string
	batchSize   int

	mu     sync.Mutex
	docMap map[string]string // source path -> doc_id

	log *zap.Logger
}

// NewProcessor 创建文档处理管线
func NewProcessor(engine *vecstore.Engine, embedder Embedder, cfg *config.Config) *Processor {
	batchSize := cfg.Embedding.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}
	return &Processor{
		engine:      engine,
		embedder:    embedder,
		chunker:     NewSectionChunker(),
		docsDir:     cfg.Documents.Dir,
		ignoreGlobs: cfg.Documents.IgnoreGlobs,
		extensions:  cfg.Documents.Extensions,
		batchSize:   batchSize,
		docMap:      make(map[string]string),
		log:         logger.Component("document_processor"),
	}
}

// ShouldProcess 判断路径是否属于待处理文档
func (p *Processor) ShouldProcess(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	matched := false
	for _, allowed := range p.extensions {
		if ext == allowed {
			matched = true
			break
		}
	}
	if !matched {
		return false
	}
	return !matchesIgnore(filepath.ToSlash(path), p.ignoreGlobs)
}

func matchesIgnore(path string, globs []string) bool {
	for _, glob := range globs {
		if ok, _ := filepath.Match(glob, path); ok {
			return true
		}
		if ok, _ := filepath.Match(glob, filepath.Base(path)); ok {
			return true
		}
		// 目录型模式（*/x/*）按路径分量匹配，filepath.Match的*不跨分隔符
		if strings.Contains(glob, "/") {
			segment := strings.Trim(glob, "*/")
			if segment != "" && strings.Contains(path, "/"+segment+"/") {
				return true
			}
		}
	}
	return false
}

// ProcessDocument 处理单个文档。
// 已见过的来源先删除旧向量再插入新chunk集合，保持存储与最新内容一致。
func (p *Processor) ProcessDocument(ctx context.Context, path string) (string, error) {
	docID, err := p.processDocument(ctx, path)
	if err != nil {
		metrics.DocumentsProcessed.WithLabelValues("error").Inc()
		return "", err
	}
	metrics.DocumentsProcessed.WithLabelValues("ok").Inc()
	return docID, nil
}

func (p *Processor) processDocument(ctx context.Context, path string) (string, error) {
	p.log.Info("processing document", zap.String("file_path", path))

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", apperrors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}
	if len(raw) == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf("file %s is empty", path))
	}

	doc, body, err := document.Parse(string(raw), path)
	if err != nil {
		return "", err
	}

	// 删除旧向量与更新映射在同一临界区内决定，保证removal先于insert
	p.mu.Lock()
	docID, seen := p.docMap[path]
	if !seen {
		docID = uuid.NewString()
	}
	p.docMap[path] = docID
	p.mu.Unlock()

	if seen {
		if err := p.engine.RemoveByDocument(ctx, docID); err != nil && !apperrors.IsNotFound(err) {
			return "", err
		}
		p.log.Info("removed existing vectors for document",
			zap.String("file_path", path), zap.String("doc_id", docID))
	}

	chunks := p.prepareChunks(body, docID, doc, path)
	if len(chunks) == 0 {
		return "", apperrors.NewValidationError(fmt.Sprintf("document %s has no content", path))
	}

	if err := p.embedAndStore(ctx, chunks); err != nil {
		return "", err
	}

	p.log.Info("processed document",
		zap.String("file_path", path),
		zap.String("doc_id", docID),
		zap.Int("chunks", len(chunks)))
	return docID, nil
}

// reservedMetadataKeys 管线注入的元数据键，front-matter不允许覆盖
var reservedMetadataKeys = map[string]struct{}{
	"doc_id":       {},
	"chunk_id":     {},
	"chunk_index":  {},
	"total_chunks": {},
	"source_file":  {},
}

// chunkDraft 待向量化的chunk
type chunkDraft struct {
	chunkID  string
	docID    string
	content  string
	metadata map[string]interface{}
}

func (p *Processor) prepareChunks(body, docID string, doc document.Document, path string) []chunkDraft {
	sections := p.chunker.Split(body)
	drafts := make([]chunkDraft, 0, len(sections))
	fields := doc.Fields()

	for idx, section := range sections {
		chunkID := fmt.Sprintf("%s_%d", docID, idx)
		metadata := map[string]interface{}{
			"doc_id":       docID,
			"chunk_id":     chunkID,
			"chunk_index":  idx,
			"total_chunks": len(sections),
			"source_file":  path,
		}
		for k, v := range fields {
			if _, reserved := reservedMetadataKeys[k]; reserved {
				p.log.Warn("front matter field shadows reserved metadata key, ignored",
					zap.String("field", k), zap.String("file_path", path))
				continue
			}
			metadata[k] = v
		}
		drafts = append(drafts, chunkDraft{
			chunkID:  chunkID,
			docID:    docID,
			content:  section,
			metadata: metadata,
		})
	}
	return drafts
}

// embedAndStore 按固定批量向量化并入库，单批失败即中止并向上传播
func (p *Processor) embedAndStore(ctx context.Context, chunks []chunkDraft) error {
	for start := 0; start < len(chunks); start += p.batchSize {
		end := start + p.batchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, chunk := range batch {
			texts[i] = chunk.content
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts, ModeDocument)
		if err != nil {
			metrics.EmbeddingBatches.WithLabelValues("error").Inc()
			return err
		}
		metrics.EmbeddingBatches.WithLabelValues("ok").Inc()

		records := make([]vecstore.Record, len(batch))
		for i, chunk := range batch {
			records[i] = vecstore.Record{
				ChunkID:   chunk.chunkID,
				DocID:     chunk.docID,
				Embedding: vectors[i],
				Metadata:  chunk.metadata,
				Content:   chunk.content,
			}
		}
		if err := p.engine.Store(ctx, records); err != nil {
			return err
		}
	}
	return nil
}

// RemoveDocumentByPath 按来源路径删除文档并丢弃其doc_id映射
func (p *Processor) RemoveDocumentByPath(ctx context.Context, path string) error {
	p.mu.Lock()
	docID, ok := p.docMap[path]
	if ok {
		delete(p.docMap, path)
	}
	p.mu.Unlock()

	if !ok {
		return apperrors.NewNotFoundError(apperrors.ErrCodeDocumentNotFound,
			fmt.Sprintf("document at %q", path))
	}
	return p.engine.RemoveByDocument(ctx, docID)
}

// ProcessAll 扫描文档目录并处理全部文档。
// force为true时先重置存储与映射；单个文件失败只计数，不中止扫描。
func (p *Processor) ProcessAll(ctx context.Context, force bool) (processed, failed int, err error) {
	p.log.Info("starting batch document processing", zap.Bool("force", force))

	if force {
		p.mu.Lock()
		p.docMap = make(map[string]string)
		p.mu.Unlock()
		if err := p.engine.Reset(ctx); err != nil {
			return 0, 0, err
		}
	}

	var paths []string
	walkErr := filepath.WalkDir(p.docsDir, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if p.ShouldProcess(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if walkErr != nil {
		return 0, 0, apperrors.NewStorageError("failed to scan documents directory", walkErr)
	}

	p.removeObsolete(ctx, paths)

	for _, path := range paths {
		if _, err := p.ProcessDocument(ctx, path); err != nil {
			failed++
			p.log.Error("failed to process document",
				zap.String("file_path", path), zap.Error(err))
			continue
		}
		processed++
	}

	p.log.Info("batch processing complete",
		zap.Int("processed", processed),
		zap.Int("failed", failed),
		zap.Int("total_files", len(paths)))
	return processed, failed, nil
}

// removeObsolete 清理磁盘上已不存在但仍有映射的来源
func (p *Processor) removeObsolete(ctx context.Context, currentPaths []string) {
	current := make(map[string]struct{}, len(currentPaths))
	for _, path := range currentPaths {
		current[path] = struct{}{}
	}

	p.mu.Lock()
	var obsolete []string
	for path := range p.docMap {
		if _, ok := current[path]; !ok {
			obsolete = append(obsolete, path)
		}
	}
	p.mu.Unlock()

	for _, path := range obsolete {
		if err := p.RemoveDocumentByPath(ctx, path); err != nil && !apperrors.IsNotFound(err) {
			p.log.Error("failed to remove obsolete document",
				zap.String("file_path", path), zap.Error(err))
		} else {
			p.log.Info("removed obsolete document", zap.String("file_path", path))
		}
	}
}

// TrackedPaths 返回当前映射中的来源数量
func (p *Processor) TrackedPaths() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.docMap)
}
