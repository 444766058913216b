package controllers

import (
	"net/http"
	"strconv"
)

const (
	defaultRandomCount = 5
	maxRandomCount     = 20
)

// DocumentController 文档查询控制器
type DocumentController struct {
	BaseController
}

// Random 随机抽样chunk正文，抽样失败返回空列表而不报错
func (c *DocumentController) Random() {
	count, err := strconv.Atoi(c.GetString("count", strconv.Itoa(defaultRandomCount)))
	if err != nil || count < 1 || count > maxRandomCount {
		c.JSONError(http.StatusBadRequest, "count must be an integer between 1 and 20")
		return
	}

	contents := retrievalService.RandomSample(c.Ctx.Request.Context(), count)
	c.JSONSuccess(map[string]interface{}{
		"count":    len(contents),
		"contents": contents,
	})
}

// Get 按doc_id返回重建后的完整文档
func (c *DocumentController) Get() {
	docID := c.GetString(":doc_id")
	if docID == "" {
		c.JSONError(http.StatusBadRequest, "doc_id is required")
		return
	}

	view, err := retrievalService.ReconstructDocument(c.Ctx.Request.Context(), docID)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(view)
}

// ByType 按类型（可选子类型）列出文档
func (c *DocumentController) ByType() {
	docType := c.GetString(":type")
	if docType == "" {
		c.JSONError(http.StatusBadRequest, "type is required")
		return
	}

	projectSubtype := c.GetString("project_subtype")
	otherSubtype := c.GetString("other_subtype")
	if projectSubtype != "" && otherSubtype != "" {
		c.JSONError(http.StatusBadRequest, "provide at most one of project_subtype and other_subtype")
		return
	}

	views, err := retrievalService.DocumentsByType(c.Ctx.Request.Context(), docType, projectSubtype, otherSubtype)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"type":      docType,
		"count":     len(views),
		"documents": views,
	})
}
