package routes

import (
	"github.com/BerniceZTT/crm_sync/controllers"

	"github.com/gin-gonic/gin"
)

// RegisterCustomerRoutes 注册客户相关路由
func RegisterCustomerRoutes(router *gin.Engine, ctl *controllers.CustomerController) {
	customerRoutes := router.Group("/api/customers")

	customerRoutes.GET("", ctl.GetCustomerList)
	customerRoutes.POST("", ctl.CreateCustomer)
	customerRoutes.GET("/:id", ctl.GetCustomerDetail)
	customerRoutes.PUT("/:id", ctl.UpdateCustomer)
	customerRoutes.DELETE("/:id", ctl.DeleteCustomer)
}
