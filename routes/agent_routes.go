package routes

import (
	"github.com/BerniceZTT/crm_sync/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterAgentRoutes 注册代表相关路由
func RegisterAgentRoutes(router *gin.Engine, ctl *controllers.AgentController) {
	agentRoutes := router.Group("/api/agents")

	agentRoutes.GET("", ctl.GetAllAgents)
	agentRoutes.POST("", ctl.CreateAgent)
	agentRoutes.GET("/:id", ctl.GetAgentDetail)
	agentRoutes.PUT("/:id", ctl.UpdateAgent)
	agentRoutes.DELETE("/:id", ctl.DeleteAgent)
}
