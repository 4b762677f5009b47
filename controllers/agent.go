package controllers

import (
	"net/http"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/service"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
)

const agentResource = "代表"

// AgentController 客服代表接口
type AgentController struct {
	service *service.AgentService
}

// NewAgentController 创建代表接口
func NewAgentController(svc *service.AgentService) *AgentController {
	return &AgentController{service: svc}
}

// GetAllAgents 获取所有代表
func (ctl *AgentController) GetAllAgents(c *gin.Context) {
	agents, err := ctl.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err, agentResource)
		return
	}
	c.JSON(http.StatusOK, agents)
}

// GetAgentDetail 获取代表详情
func (ctl *AgentController) GetAgentDetail(c *gin.Context) {
	agent, err := ctl.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, agentResource)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// CreateAgent 创建代表
func (ctl *AgentController) CreateAgent(c *gin.Context) {
	var input models.AgentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badJSON(c, err)
		return
	}

	agent, err := ctl.service.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, agentResource)
		return
	}

	utils.LogInfo(map[string]interface{}{
		"id":   agent.ID,
		"name": agent.Name,
	}, "代表创建成功")

	c.JSON(http.StatusOK, agent)
}

// UpdateAgent 部分更新代表
func (ctl *AgentController) UpdateAgent(c *gin.Context) {
	var patch models.AgentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c, err)
		return
	}

	agent, err := ctl.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, agentResource)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// DeleteAgent 删除代表，引用它的客户保持不变
func (ctl *AgentController) DeleteAgent(c *gin.Context) {
	id := c.Param("id")
	deleted, err := ctl.service.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, agentResource)
		return
	}

	if deleted {
		utils.LogInfo(map[string]interface{}{"id": id}, "代表删除成功")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Agent deleted successfully"})
}
