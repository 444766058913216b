package controllers

// RootController 根控制器
type RootController struct {
	BaseController
}

func (c *RootController) Index() {
	c.JSONSuccess(map[string]string{"message": "Document Vector Service API"})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

func (c *HealthController) Health() {
	c.JSON(200, map[string]string{"status": "healthy"})
}

// StatsController 存储统计控制器
type StatsController struct {
	BaseController
}

func (c *StatsController) Stats() {
	stats, err := storeEngine.Stats(c.Ctx.Request.Context())
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSON(200, stats)
}
