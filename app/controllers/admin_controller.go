package controllers

// AdminController 运维操作控制器
type AdminController struct {
	BaseController
}

// Reprocess 全量重新处理文档目录。force=true时先清空存储。
func (c *AdminController) Reprocess() {
	force, _ := c.GetBool("force", false)

	processed, failed, err := docProcessor.ProcessAll(c.Ctx.Request.Context(), force)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	c.JSONSuccess(map[string]interface{}{
		"processed": processed,
		"failed":    failed,
		"force":     force,
	})
}
