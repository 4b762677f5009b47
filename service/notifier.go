package service

import (
	"errors"

	"github.com/BerniceZTT/crm_sync/metrics"
	"github.com/BerniceZTT/crm_sync/repository"
)

// Notifier 把变更事件推送给所有当前连接的观察者
//
// Broadcast 不返回错误：投递失败由实现自行记录，不能影响发起请求的响应。
type Notifier interface {
	Broadcast(event string, payload interface{})
}

// NotifierFunc 把普通函数适配为 Notifier
type NotifierFunc func(event string, payload interface{})

// Broadcast 实现 Notifier
func (f NotifierFunc) Broadcast(event string, payload interface{}) {
	f(event, payload)
}

const (
	kindCustomer = "customer"
	kindAgent    = "agent"

	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

func observe(kind, op string, err error) {
	result := metrics.ResultOK
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrNotFound):
		result = metrics.ResultNotFound
	case errors.Is(err, repository.ErrInvalidReference):
		result = metrics.ResultRejected
	default:
		result = metrics.ResultFailed
	}
	metrics.ObserveMutation(kind, op, result)
}
