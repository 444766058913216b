package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/docuhub/vector-go/internal/pipeline"
)

var validate = validator.New()

// SearchRequest 检索请求体
type SearchRequest struct {
	Query       string   `json:"query" validate:"required,min=1,max=8192"`
	K           int      `json:"k" validate:"omitempty,min=1,max=100"`
	FilterTypes []string `json:"filter_types" validate:"omitempty,dive,oneof=experience education project other"`
	Mode        string   `json:"mode" validate:"omitempty,oneof=plain query document"`
}

// SearchResponseItem 单条检索结果。score为余弦相似度[-1,1]，
// normalized_score为线性映射到[0,1]后的值。
type SearchResponseItem struct {
	DocID           string                 `json:"doc_id"`
	ChunkID         string                 `json:"chunk_id"`
	Score           float32                `json:"score"`
	NormalizedScore float32                `json:"normalized_score"`
	Content         string                 `json:"content"`
	Metadata        map[string]interface{} `json:"metadata"`
}

// SearchController 向量检索控制器
type SearchController struct {
	BaseController
}

// Search 文本相似度检索
func (c *SearchController) Search() {
	var req SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return
	}

	if req.K == 0 {
		req.K = 5
	}
	mode, err := pipeline.ParseEmbeddingMode(req.Mode)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	results, err := retrievalService.SearchByText(c.Ctx.Request.Context(), req.Query, req.K, mode, req.FilterTypes)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	items := make([]SearchResponseItem, len(results))
	for i, r := range results {
		items[i] = SearchResponseItem{
			DocID:           r.DocID,
			ChunkID:         r.ChunkID,
			Score:           r.Score,
			NormalizedScore: (r.Score + 1) / 2,
			Content:         r.Content,
			Metadata:        r.Metadata,
		}
	}

	c.JSONSuccess(map[string]interface{}{
		"query":   req.Query,
		"count":   len(items),
		"results": items,
	})
}
