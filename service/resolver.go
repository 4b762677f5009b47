package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/repository"
)

// ReferenceResolver 负责客户 assignedAgent 引用的展开与写入校验
type ReferenceResolver interface {
	// ResolveCustomer 展开单个客户；引用悬空时 assignedAgent 为 nil
	ResolveCustomer(ctx context.Context, c models.Customer) (models.CustomerView, error)
	// ResolveCustomers 展开一组客户，每个代表在一次调用内只查询一次
	ResolveCustomers(ctx context.Context, customers []models.Customer) ([]models.CustomerView, error)
	// CheckAssignment 在写入前校验代表引用
	CheckAssignment(ctx context.Context, agentID string) error
}

// AgentReader 解析引用所需的只读能力
type AgentReader interface {
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	ValidID(id string) bool
}

// Resolver 默认的引用解析器
//
// 宽松模式只校验 ID 格式；严格模式还要求被引用的代表存在。
// 读取时始终宽松：代表不存在时展开为 nil 而不是报错。
type Resolver struct {
	agents AgentReader
	strict bool
}

// NewResolver 创建引用解析器
func NewResolver(agents AgentReader, strict bool) *Resolver {
	return &Resolver{agents: agents, strict: strict}
}

func (r *Resolver) lookup(ctx context.Context, id string) (*models.Agent, error) {
	agent, err := r.agents.GetAgent(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("展开代表 %s 失败: %w", id, err)
	}
	return agent, nil
}

func (r *Resolver) ResolveCustomer(ctx context.Context, c models.Customer) (models.CustomerView, error) {
	if c.AssignedAgent == "" {
		return models.NewCustomerView(c, nil), nil
	}
	agent, err := r.lookup(ctx, c.AssignedAgent)
	if err != nil {
		return models.CustomerView{}, err
	}
	return models.NewCustomerView(c, agent), nil
}

func (r *Resolver) ResolveCustomers(ctx context.Context, customers []models.Customer) ([]models.CustomerView, error) {
	resolved := make(map[string]*models.Agent)
	out := make([]models.CustomerView, 0, len(customers))
	for _, c := range customers {
		if c.AssignedAgent == "" {
			out = append(out, models.NewCustomerView(c, nil))
			continue
		}
		agent, ok := resolved[c.AssignedAgent]
		if !ok {
			var err error
			if agent, err = r.lookup(ctx, c.AssignedAgent); err != nil {
				return nil, err
			}
			resolved[c.AssignedAgent] = agent
		}
		out = append(out, models.NewCustomerView(c, agent))
	}
	return out, nil
}

func (r *Resolver) CheckAssignment(ctx context.Context, agentID string) error {
	if agentID == "" {
		return nil
	}
	if !r.agents.ValidID(agentID) {
		return fmt.Errorf("%w: %q 不是合法的ID", repository.ErrInvalidReference, agentID)
	}
	if !r.strict {
		return nil
	}
	agent, err := r.lookup(ctx, agentID)
	if err != nil {
		return err
	}
	if agent == nil {
		return fmt.Errorf("%w: 代表 %s 不存在", repository.ErrInvalidReference, agentID)
	}
	return nil
}
