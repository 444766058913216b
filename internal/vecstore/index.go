package vecstore

import (
	"fmt"
	"math"
	"sort"

	apperrors "github.com/docuhub/vector-go/internal/errors"
)

// FlatIndex 稠密内积索引。向量按插入顺序连续存放，
// 只支持追加与整体重建，不支持单点删除。
type FlatIndex struct {
	dim  int
	data []float32
}

// NewFlatIndex 创建空索引，维度在构造时固定
func NewFlatIndex(dim int) *FlatIndex {
	return &FlatIndex{dim: dim}
}

// Dimension 返回向量维度
func (idx *FlatIndex) Dimension() int {
	return idx.dim
}

// Size 返回当前向量数量
func (idx *FlatIndex) Size() int {
	if idx.dim == 0 {
		return 0
	}
	return len(idx.data) / idx.dim
}

// Append 追加一批向量，返回首个向量的position。
// 向量维度不符时整批拒绝，不产生任何追加。
func (idx *FlatIndex) Append(vectors [][]float32) (int, error) {
	for i, vec := range vectors {
		if len(vec) != idx.dim {
			return 0, apperrors.NewValidationErrorWithCode(
				apperrors.ErrCodeDimensionMismatch,
				fmt.Sprintf("vector %d has dimension %d, index expects %d", i, len(vec), idx.dim))
		}
	}
	start := idx.Size()
	for _, vec := range vectors {
		idx.data = append(idx.data, vec...)
	}
	return start, nil
}

// Truncate 回退到指定数量，仅用于追加失败后的回滚
func (idx *FlatIndex) Truncate(size int) {
	if size < 0 || size > idx.Size() {
		return
	}
	idx.data = idx.data[:size*idx.dim]
}

// Reconstruct 返回指定position向量的副本
func (idx *FlatIndex) Reconstruct(position int) []float32 {
	if position < 0 || position >= idx.Size() {
		return nil
	}
	out := make([]float32, idx.dim)
	copy(out, idx.data[position*idx.dim:(position+1)*idx.dim])
	return out
}

// Hit 相似度检索命中结果
type Hit struct {
	Position int
	Score    float32
}

// Search 返回与query内积最大的k个向量。
// query与存储向量均为单位向量时，得分即余弦相似度，取值[-1,1]。
func (idx *FlatIndex) Search(query []float32, k int) ([]Hit, error) {
	if len(query) != idx.dim {
		return nil, apperrors.NewValidationErrorWithCode(
			apperrors.ErrCodeDimensionMismatch,
			fmt.Sprintf("query has dimension %d, index expects %d", len(query), idx.dim))
	}
	if k <= 0 {
		return nil, nil
	}

	size := idx.Size()
	hits := make([]Hit, 0, size)
	for pos := 0; pos < size; pos++ {
		row := idx.data[pos*idx.dim : (pos+1)*idx.dim]
		var dot float32
		for i, q := range query {
			dot += q * row[i]
		}
		hits = append(hits, Hit{Position: pos, Score: dot})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		return hits[i].Score > hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Normalize 返回单位化后的向量副本，零向量视为非法输入
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return nil, apperrors.NewValidationError("cannot normalize zero vector")
	}
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out, nil
}
