package service

import (
	"context"
	"errors"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/repository"
	"github.com/BerniceZTT/crm_sync/utils"
)

// CustomerService 客户的读写与变更推送
//
// 每个写操作严格按顺序执行：写入存储、展开引用、推送事件、返回结果。
// 推送与返回使用同一个写入后的快照。写入失败时不推送。
type CustomerService struct {
	store    repository.CustomerStore
	resolver ReferenceResolver
	notifier Notifier
}

// NewCustomerService 创建客户服务
func NewCustomerService(store repository.CustomerStore, resolver ReferenceResolver, notifier Notifier) *CustomerService {
	return &CustomerService{store: store, resolver: resolver, notifier: notifier}
}

// List 获取全部客户并展开代表
func (s *CustomerService) List(ctx context.Context) ([]models.CustomerView, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, err
	}
	return s.resolver.ResolveCustomers(ctx, customers)
}

// Get 获取单个客户
func (s *CustomerService) Get(ctx context.Context, id string) (*models.CustomerView, error) {
	c, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		return nil, err
	}
	view, err := s.resolver.ResolveCustomer(ctx, *c)
	if err != nil {
		return nil, err
	}
	return &view, nil
}

// Create 创建客户并推送 customerAdded
func (s *CustomerService) Create(ctx context.Context, in models.CustomerInput) (view *models.CustomerView, err error) {
	defer func() { observe(kindCustomer, opCreate, err) }()

	if err := s.resolver.CheckAssignment(ctx, in.AssignedAgent); err != nil {
		return nil, err
	}
	c, err := s.store.CreateCustomer(ctx, in)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, models.EventCustomerAdded, *c)
}

// Update 部分更新客户并推送 customerUpdated
func (s *CustomerService) Update(ctx context.Context, id string, patch models.CustomerPatch) (view *models.CustomerView, err error) {
	defer func() { observe(kindCustomer, opUpdate, err) }()

	if patch.AssignedAgent.Set {
		if err := s.resolver.CheckAssignment(ctx, patch.AssignedAgent.ID); err != nil {
			return nil, err
		}
	}
	c, err := s.store.UpdateCustomer(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	return s.publish(ctx, models.EventCustomerUpdated, *c)
}

// Delete 删除客户并推送 customerDeleted
//
// 删除不存在的客户视为成功的空操作，返回 false 且不推送。
func (s *CustomerService) Delete(ctx context.Context, id string) (bool, error) {
	err := s.store.DeleteCustomer(ctx, id)
	observe(kindCustomer, opDelete, err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.notifier.Broadcast(models.EventCustomerDeleted, id)
	return true, nil
}

// publish 展开已提交的客户并推送，请求被取消也会完成
func (s *CustomerService) publish(ctx context.Context, event string, c models.Customer) (*models.CustomerView, error) {
	ctx = context.WithoutCancel(ctx)

	view, err := s.resolver.ResolveCustomer(ctx, c)
	if err != nil {
		utils.Logger.Error().Err(err).
			Str("event", event).
			Str("customerId", c.ID).
			Msg("客户已写入但展开代表失败，未推送")
		return nil, err
	}
	s.notifier.Broadcast(event, view)
	return &view, nil
}
