package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"

	apperrors "github.com/docuhub/vector-go/internal/errors"
	"github.com/docuhub/vector-go/internal/pipeline"
	"github.com/docuhub/vector-go/internal/retrieval"
	"github.com/docuhub/vector-go/internal/vecstore"
)

// 控制器依赖。beego按请求反射新建控制器实例，实例字段不会保留，
// 依赖以包级变量形式在bootstrap阶段注入。
var (
	storeEngine      *vecstore.Engine
	retrievalService *retrieval.Service
	docProcessor     *pipeline.Processor
)

// InitDependencies 注入控制器层依赖，必须在路由注册前调用
func InitDependencies(engine *vecstore.Engine, service *retrieval.Service, processor *pipeline.Processor) {
	storeEngine = engine
	retrievalService = service
	docProcessor = processor
}

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按错误分类映射HTTP状态码
func (c *BaseController) JSONAppError(err error) {
	status := apperrors.HTTPStatus(err)
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   err.Error(),
	})
}
