package service

import (
	"context"
	"errors"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/repository"
)

// AgentService 代表的读写与变更推送
type AgentService struct {
	store    repository.AgentStore
	notifier Notifier
}

// NewAgentService 创建代表服务
func NewAgentService(store repository.AgentStore, notifier Notifier) *AgentService {
	return &AgentService{store: store, notifier: notifier}
}

// List 获取全部代表
func (s *AgentService) List(ctx context.Context) ([]models.Agent, error) {
	return s.store.ListAgents(ctx)
}

// Get 获取单个代表
func (s *AgentService) Get(ctx context.Context, id string) (*models.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// Create 创建代表并推送 agentAdded
func (s *AgentService) Create(ctx context.Context, in models.AgentInput) (agent *models.Agent, err error) {
	defer func() { observe(kindAgent, opCreate, err) }()

	agent, err = s.store.CreateAgent(ctx, in)
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(models.EventAgentAdded, *agent)
	return agent, nil
}

// Update 部分更新代表并推送 agentUpdated
func (s *AgentService) Update(ctx context.Context, id string, patch models.AgentPatch) (agent *models.Agent, err error) {
	defer func() { observe(kindAgent, opUpdate, err) }()

	agent, err = s.store.UpdateAgent(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.notifier.Broadcast(models.EventAgentUpdated, *agent)
	return agent, nil
}

// Delete 删除代表并推送 agentDeleted
//
// 引用该代表的客户不做处理，读取时展开为空。
func (s *AgentService) Delete(ctx context.Context, id string) (bool, error) {
	err := s.store.DeleteAgent(ctx, id)
	observe(kindAgent, opDelete, err)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	s.notifier.Broadcast(models.EventAgentDeleted, id)
	return true, nil
}
