package controllers

import (
	"errors"

	"github.com/BerniceZTT/crm_sync/repository"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/gin-gonic/gin"
)

// respondError 把存储层错误转换为API错误
func respondError(c *gin.Context, err error, resource string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		utils.HandleError(c, utils.CreateNotFoundError(resource))
	case errors.Is(err, repository.ErrInvalidReference):
		apiErr := utils.CreateBadRequestError("分配的代表无效")
		apiErr.Err = err
		utils.HandleError(c, apiErr)
	default:
		utils.HandleError(c, utils.CreatePersistenceError(err, repository.IsUnavailable(err)))
	}
}

func badJSON(c *gin.Context, err error) {
	apiErr := utils.CreateBadRequestError("请求数据格式不正确")
	apiErr.Err = err
	utils.HandleError(c, apiErr)
}
