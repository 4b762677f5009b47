package repository

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"

	"github.com/BerniceZTT/crm_sync/models"
)

var (
	// ErrNotFound id 不对应任何已存储的记录
	ErrNotFound = errors.New("记录不存在")
	// ErrInvalidReference assignedAgent 引用无法被接受
	ErrInvalidReference = errors.New("无效的代表引用")
)

// CustomerStore 客户持久化
type CustomerStore interface {
	CreateCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error)
	ListCustomers(ctx context.Context) ([]models.Customer, error)
	GetCustomer(ctx context.Context, id string) (*models.Customer, error)
	UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) (*models.Customer, error)
	DeleteCustomer(ctx context.Context, id string) error
}

// AgentStore 代表持久化
type AgentStore interface {
	CreateAgent(ctx context.Context, in models.AgentInput) (*models.Agent, error)
	ListAgents(ctx context.Context) ([]models.Agent, error)
	GetAgent(ctx context.Context, id string) (*models.Agent, error)
	UpdateAgent(ctx context.Context, id string, patch models.AgentPatch) (*models.Agent, error)
	DeleteAgent(ctx context.Context, id string) error
}

// Store 一个后端实例提供的全部能力
type Store interface {
	CustomerStore
	AgentStore

	// ValidID 报告 id 是否符合该后端的标识格式
	ValidID(id string) bool
	// RecordOperation 保存一条操作日志
	RecordOperation(ctx context.Context, log *models.OperationLog) error
	// Status 返回各集合的记录数
	Status(ctx context.Context) (map[string]interface{}, error)
	Close(ctx context.Context) error
}

// Open 根据连接串的 scheme 选择存储后端并完成连接
func Open(ctx context.Context, uri, dbName string) (Store, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("解析存储连接串失败: %w", err)
	}

	switch u.Scheme {
	case "mongodb", "mongodb+srv":
		return NewMongoStore(ctx, uri, dbName)
	case "postgres", "postgresql":
		return NewPostgresStore(ctx, uri)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("不支持的存储类型: %q", u.Scheme)
	}
}

// IsUnavailable 判断错误是否表示存储后端不可达
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if isRetryableMongoError(err) || isPgUnavailable(err) {
		return true
	}
	return isNetworkError(err)
}

// isNetworkError 检查是否是网络错误
func isNetworkError(err error) bool {
	errMsg := strings.ToLower(err.Error())
	networkErrors := []string{
		"connection refused",
		"connection reset",
		"connection closed",
		"no reachable servers",
		"server selection error",
		"failed to connect",
	}

	for _, ne := range networkErrors {
		if strings.Contains(errMsg, ne) {
			return true
		}
	}

	return false
}

var (
	_ Store = (*MongoStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*MemoryStore)(nil)
)
