package controllers

import (
	"net/http"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/service"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
)

const customerResource = "客户"

// CustomerController 客户接口
type CustomerController struct {
	service *service.CustomerService
}

// NewCustomerController 创建客户接口
func NewCustomerController(svc *service.CustomerService) *CustomerController {
	return &CustomerController{service: svc}
}

// GetCustomerList 获取客户列表，assignedAgent 展开为代表
func (ctl *CustomerController) GetCustomerList(c *gin.Context) {
	customers, err := ctl.service.List(c.Request.Context())
	if err != nil {
		respondError(c, err, customerResource)
		return
	}
	c.JSON(http.StatusOK, customers)
}

// GetCustomerDetail 获取客户详情
func (ctl *CustomerController) GetCustomerDetail(c *gin.Context) {
	customer, err := ctl.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err, customerResource)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// CreateCustomer 创建客户
func (ctl *CustomerController) CreateCustomer(c *gin.Context) {
	var input models.CustomerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badJSON(c, err)
		return
	}

	customer, err := ctl.service.Create(c.Request.Context(), input)
	if err != nil {
		respondError(c, err, customerResource)
		return
	}

	utils.LogInfo(map[string]interface{}{
		"id":   customer.ID,
		"name": customer.Name,
	}, "客户创建成功")

	c.JSON(http.StatusOK, customer)
}

// UpdateCustomer 部分更新客户
func (ctl *CustomerController) UpdateCustomer(c *gin.Context) {
	var patch models.CustomerPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		badJSON(c, err)
		return
	}

	customer, err := ctl.service.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		respondError(c, err, customerResource)
		return
	}
	c.JSON(http.StatusOK, customer)
}

// DeleteCustomer 删除客户，客户不存在时同样返回成功
func (ctl *CustomerController) DeleteCustomer(c *gin.Context) {
	id := c.Param("id")
	deleted, err := ctl.service.Delete(c.Request.Context(), id)
	if err != nil {
		respondError(c, err, customerResource)
		return
	}

	if deleted {
		utils.LogInfo(map[string]interface{}{"id": id}, "客户删除成功")
	}
	c.JSON(http.StatusOK, gin.H{"message": "Customer deleted successfully"})
}
