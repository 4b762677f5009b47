package models

import (
	"encoding/json"
	"time"
)

// 推送事件名
const (
	EventCustomerAdded   = "customerAdded"
	EventCustomerUpdated = "customerUpdated"
	EventCustomerDeleted = "customerDeleted"
	EventAgentAdded      = "agentAdded"
	EventAgentUpdated    = "agentUpdated"
	EventAgentDeleted    = "agentDeleted"
)

// Agent 客服代表
type Agent struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Status        string    `json:"status"`
	ActiveTickets int       `json:"activeTickets"`
	CreatedAt     time.Time `json:"createdAt"`
}

// Customer 客户，AssignedAgent 为空表示未分配
type Customer struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Status        string    `json:"status"`
	AssignedAgent string    `json:"assignedAgent,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
}

// CustomerView 返回给调用方和推送给观察者的客户，assignedAgent 已展开
type CustomerView struct {
	ID            string    `json:"_id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	Phone         string    `json:"phone"`
	Status        string    `json:"status"`
	AssignedAgent *Agent    `json:"assignedAgent"`
	CreatedAt     time.Time `json:"createdAt"`
}

// NewCustomerView 用客户和（可能为空的）代表快照构建视图
func NewCustomerView(c Customer, agent *Agent) CustomerView {
	return CustomerView{
		ID:            c.ID,
		Name:          c.Name,
		Email:         c.Email,
		Phone:         c.Phone,
		Status:        c.Status,
		AssignedAgent: agent,
		CreatedAt:     c.CreatedAt,
	}
}

// CustomerInput 创建客户请求，id 与 createdAt 由系统生成
type CustomerInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Status        string `json:"status"`
	AssignedAgent string `json:"assignedAgent"`
}

// AgentInput 创建代表请求
type AgentInput struct {
	Name          string `json:"name"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Status        string `json:"status"`
	ActiveTickets int    `json:"activeTickets"`
}

// CustomerPatch 客户部分更新，nil 字段保持不变
type CustomerPatch struct {
	Name          *string    `json:"name"`
	Email         *string    `json:"email"`
	Phone         *string    `json:"phone"`
	Status        *string    `json:"status"`
	AssignedAgent NullableID `json:"assignedAgent"`
}

// IsEmpty 是否没有任何需要合并的字段
func (p CustomerPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Status == nil && !p.AssignedAgent.Set
}

// Apply 将补丁合并到客户上
func (p CustomerPatch) Apply(c *Customer) {
	if p.Name != nil {
		c.Name = *p.Name
	}
	if p.Email != nil {
		c.Email = *p.Email
	}
	if p.Phone != nil {
		c.Phone = *p.Phone
	}
	if p.Status != nil {
		c.Status = *p.Status
	}
	if p.AssignedAgent.Set {
		c.AssignedAgent = p.AssignedAgent.ID
	}
}

// AgentPatch 代表部分更新
type AgentPatch struct {
	Name          *string `json:"name"`
	Email         *string `json:"email"`
	Phone         *string `json:"phone"`
	Status        *string `json:"status"`
	ActiveTickets *int    `json:"activeTickets"`
}

// IsEmpty 是否没有任何需要合并的字段
func (p AgentPatch) IsEmpty() bool {
	return p.Name == nil && p.Email == nil && p.Phone == nil && p.Status == nil && p.ActiveTickets == nil
}

// Apply 将补丁合并到代表上
func (p AgentPatch) Apply(a *Agent) {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Email != nil {
		a.Email = *p.Email
	}
	if p.Phone != nil {
		a.Phone = *p.Phone
	}
	if p.Status != nil {
		a.Status = *p.Status
	}
	if p.ActiveTickets != nil {
		a.ActiveTickets = *p.ActiveTickets
	}
}

// NullableID 区分"未提供"、"置空"和"设置为某个ID"
//
// Set 为 false 表示请求体中没有该字段；Set 为 true 且 ID 为空表示取消分配。
type NullableID struct {
	Set bool
	ID  string
}

// AssignID 返回设置为 id 的 NullableID
func AssignID(id string) NullableID {
	return NullableID{Set: true, ID: id}
}

// Unassign 返回取消分配的 NullableID
func Unassign() NullableID {
	return NullableID{Set: true}
}

// UnmarshalJSON 实现 json.Unmarshaler，展开后的代表对象取其 _id
func (n *NullableID) UnmarshalJSON(data []byte) error {
	id, err := castID(data)
	if err != nil {
		return err
	}
	n.Set = true
	n.ID = id
	return nil
}

// MarshalJSON 实现 json.Marshaler
func (n NullableID) MarshalJSON() ([]byte, error) {
	if !n.Set || n.ID == "" {
		return []byte("null"), nil
	}
	return json.Marshal(n.ID)
}
