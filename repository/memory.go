package repository

import (
	"context"
	"sync"

	"github.com/BerniceZTT/crm_sync/models"

	"github.com/oklog/ulid/v2"
)

// table 按插入顺序保存记录的并发安全映射
type table[T any] struct {
	mu    sync.RWMutex
	items map[string]T
	order []string
}

func newTable[T any]() *table[T] {
	return &table[T]{items: make(map[string]T)}
}

func (t *table[T]) insert(id string, item T) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[id]; !exists {
		t.order = append(t.order, id)
	}
	t.items[id] = item
}

func (t *table[T]) get(id string) (T, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	item, ok := t.items[id]
	return item, ok
}

// update 在锁内对记录执行 fn，返回更新后的值
func (t *table[T]) update(id string, fn func(*T)) (T, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	item, ok := t.items[id]
	if !ok {
		return item, false
	}
	fn(&item)
	t.items[id] = item
	return item, true
}

func (t *table[T]) delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.items[id]; !exists {
		return false
	}
	delete(t.items, id)
	for i, oid := range t.order {
		if oid == id {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
	return true
}

func (t *table[T]) list() []T {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]T, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, t.items[id])
	}
	return out
}

// trim 只保留最新的 limit 条记录
func (t *table[T]) trim(limit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.order) <= limit {
		return
	}
	drop := len(t.order) - limit
	for _, id := range t.order[:drop] {
		delete(t.items, id)
	}
	t.order = append(t.order[:0:0], t.order[drop:]...)
}

func (t *table[T]) count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.items)
}

// maxOperations 内存中保留的操作日志条数，超出后丢弃最旧的
const maxOperations = 1000

// MemoryStore 进程内存储，用于开发和测试
type MemoryStore struct {
	customers  *table[models.Customer]
	agents     *table[models.Agent]
	operations *table[models.OperationLog]
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		customers:  newTable[models.Customer](),
		agents:     newTable[models.Agent](),
		operations: newTable[models.OperationLog](),
	}
}

// ValidID 判断是否为合法的 ULID
func (s *MemoryStore) ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func (s *MemoryStore) CreateCustomer(_ context.Context, in models.CustomerInput) (*models.Customer, error) {
	if in.AssignedAgent != "" && !s.ValidID(in.AssignedAgent) {
		return nil, ErrInvalidReference
	}
	c := models.Customer{
		ID:            ulid.Make().String(),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Status:        in.Status,
		AssignedAgent: in.AssignedAgent,
		CreatedAt:     now(),
	}
	s.customers.insert(c.ID, c)
	return &c, nil
}

func (s *MemoryStore) ListCustomers(_ context.Context) ([]models.Customer, error) {
	return s.customers.list(), nil
}

func (s *MemoryStore) GetCustomer(_ context.Context, id string) (*models.Customer, error) {
	c, ok := s.customers.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) UpdateCustomer(_ context.Context, id string, patch models.CustomerPatch) (*models.Customer, error) {
	if patch.AssignedAgent.Set && patch.AssignedAgent.ID != "" && !s.ValidID(patch.AssignedAgent.ID) {
		return nil, ErrInvalidReference
	}
	c, ok := s.customers.update(id, patch.Apply)
	if !ok {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (s *MemoryStore) DeleteCustomer(_ context.Context, id string) error {
	if !s.customers.delete(id) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) CreateAgent(_ context.Context, in models.AgentInput) (*models.Agent, error) {
	a := models.Agent{
		ID:            ulid.Make().String(),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Status:        in.Status,
		ActiveTickets: in.ActiveTickets,
		CreatedAt:     now(),
	}
	s.agents.insert(a.ID, a)
	return &a, nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]models.Agent, error) {
	return s.agents.list(), nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (*models.Agent, error) {
	a, ok := s.agents.get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) UpdateAgent(_ context.Context, id string, patch models.AgentPatch) (*models.Agent, error) {
	a, ok := s.agents.update(id, patch.Apply)
	if !ok {
		return nil, ErrNotFound
	}
	return &a, nil
}

func (s *MemoryStore) DeleteAgent(_ context.Context, id string) error {
	if !s.agents.delete(id) {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) RecordOperation(_ context.Context, log *models.OperationLog) error {
	entry := *log
	entry.ID = ulid.Make().String()
	s.operations.insert(entry.ID, entry)
	s.operations.trim(maxOperations)
	return nil
}

// Operations 返回已记录的操作日志
func (s *MemoryStore) Operations() []models.OperationLog {
	return s.operations.list()
}

func (s *MemoryStore) Status(_ context.Context) (map[string]interface{}, error) {
	return map[string]interface{}{
		CustomersCollection:        map[string]interface{}{"count": s.customers.count()},
		AgentsCollection:           map[string]interface{}{"count": s.agents.count()},
		ApiOperationLogsCollection: map[string]interface{}{"count": s.operations.count()},
	}, nil
}

func (s *MemoryStore) Close(_ context.Context) error {
	return nil
}
