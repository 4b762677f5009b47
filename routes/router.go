package routes

import (
	"context"
	"net/http"

	"github.com/BerniceZTT/crm_sync/controllers"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StatusReporter 提供存储状态
type StatusReporter interface {
	Status(ctx context.Context) (map[string]interface{}, error)
}

// Dependencies 路由需要的组件
type Dependencies struct {
	Customers *controllers.CustomerController
	Agents    *controllers.AgentController
	Store     StatusReporter
	// PushHandler 处理 /ws 连接
	PushHandler gin.HandlerFunc
}

// RegisterRoutes 注册所有路由
func RegisterRoutes(router *gin.Engine, deps Dependencies) {
	RegisterCustomerRoutes(router, deps.Customers)
	RegisterAgentRoutes(router, deps.Agents)

	// 实时推送
	router.GET("/ws", deps.PushHandler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// 健康检查路由
	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 数据库状态检查路由
	router.GET("/api/db-status", func(c *gin.Context) {
		status, err := deps.Store.Status(c.Request.Context())
		if err != nil {
			utils.ErrorResponse(c, "获取数据库状态失败: "+err.Error(), http.StatusInternalServerError)
			return
		}
		c.JSON(http.StatusOK, status)
	})
}
