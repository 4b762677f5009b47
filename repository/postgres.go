package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/oklog/ulid/v2"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS agents (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL DEFAULT '',
		email          TEXT NOT NULL DEFAULT '',
		phone          TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		active_tickets INTEGER NOT NULL DEFAULT 0,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS customers (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL DEFAULT '',
		email          TEXT NOT NULL DEFAULT '',
		phone          TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL DEFAULT '',
		assigned_agent TEXT,
		created_at     TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS api_operation_logs (
		id               TEXT PRIMARY KEY,
		method           TEXT NOT NULL,
		path             TEXT NOT NULL,
		request_body     JSONB,
		response_data    JSONB,
		status_code      INTEGER NOT NULL,
		success          BOOLEAN NOT NULL,
		error_message    TEXT,
		operation_time   TIMESTAMPTZ NOT NULL,
		response_time_ms BIGINT NOT NULL,
		ip_address       TEXT,
		user_agent       TEXT
	)`,
}

const (
	customerColumns = `id, name, email, phone, status, assigned_agent, created_at`
	agentColumns    = `id, name, email, phone, status, active_tickets, created_at`
)

// PostgresStore PostgreSQL 存储
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore 连接PostgreSQL并确保表结构存在
func NewPostgresStore(ctx context.Context, uri string) (*PostgresStore, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(connectCtx, uri)
	if err != nil {
		return nil, fmt.Errorf("连接PostgreSQL失败: %w", err)
	}
	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping PostgreSQL失败: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	utils.Logger.Info().Msg("已连接到PostgreSQL")
	return s, nil
}

// EnsureSchema 创建缺失的表
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("初始化表结构失败: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) Close(_ context.Context) error {
	s.pool.Close()
	utils.Logger.Info().Msg("已断开PostgreSQL连接")
	return nil
}

// ValidID 判断是否为合法的 ULID
func (s *PostgresStore) ValidID(id string) bool {
	_, err := ulid.ParseStrict(id)
	return err == nil
}

func scanCustomer(row pgx.Row) (models.Customer, error) {
	var c models.Customer
	var agent *string
	if err := row.Scan(&c.ID, &c.Name, &c.Email, &c.Phone, &c.Status, &agent, &c.CreatedAt); err != nil {
		return c, err
	}
	if agent != nil {
		c.AssignedAgent = *agent
	}
	return c, nil
}

func scanAgent(row pgx.Row) (models.Agent, error) {
	var a models.Agent
	err := row.Scan(&a.ID, &a.Name, &a.Email, &a.Phone, &a.Status, &a.ActiveTickets, &a.CreatedAt)
	return a, err
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (s *PostgresStore) CreateCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error) {
	if in.AssignedAgent != "" && !s.ValidID(in.AssignedAgent) {
		return nil, ErrInvalidReference
	}
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + customerColumns

	c, err := scanCustomer(s.pool.QueryRow(ctx, query,
		ulid.Make().String(), in.Name, in.Email, in.Phone, in.Status, nullable(in.AssignedAgent), now(),
	))
	if err != nil {
		return nil, fmt.Errorf("创建客户失败: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("获取客户列表失败: %w", err)
	}
	defer rows.Close()

	out := []models.Customer{}
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("解析客户数据失败: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("获取客户列表失败: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	c, err := scanCustomer(s.pool.QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}
	return &c, nil
}

// customerAssignments 把补丁转换为 SET 子句和参数
func customerAssignments(patch models.CustomerPatch) ([]string, []interface{}) {
	var cols []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.AssignedAgent.Set {
		add("assigned_agent", nullable(patch.AssignedAgent.ID))
	}
	return cols, args
}

func (s *PostgresStore) UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) (*models.Customer, error) {
	if patch.AssignedAgent.Set && patch.AssignedAgent.ID != "" && !s.ValidID(patch.AssignedAgent.ID) {
		return nil, ErrInvalidReference
	}
	cols, args := customerAssignments(patch)
	if len(cols) == 0 {
		return s.GetCustomer(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE customers SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(cols, ", "), len(args), customerColumns)

	c, err := scanCustomer(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("更新客户失败: %w", err)
	}
	return &c, nil
}

func (s *PostgresStore) DeleteCustomer(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("删除客户失败: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) CreateAgent(ctx context.Context, in models.AgentInput) (*models.Agent, error) {
	query := `
		INSERT INTO agents (` + agentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + agentColumns

	a, err := scanAgent(s.pool.QueryRow(ctx, query,
		ulid.Make().String(), in.Name, in.Email, in.Phone, in.Status, in.ActiveTickets, now(),
	))
	if err != nil {
		return nil, fmt.Errorf("创建代表失败: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+agentColumns+` FROM agents ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("获取代表列表失败: %w", err)
	}
	defer rows.Close()

	out := []models.Agent{}
	for rows.Next() {
		a, err := scanAgent(rows)
		if err != nil {
			return nil, fmt.Errorf("解析代表数据失败: %w", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("获取代表列表失败: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	a, err := scanAgent(s.pool.QueryRow(ctx, `SELECT `+agentColumns+` FROM agents WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询代表失败: %w", err)
	}
	return &a, nil
}

// agentAssignments 把补丁转换为 SET 子句和参数
func agentAssignments(patch models.AgentPatch) ([]string, []interface{}) {
	var cols []string
	var args []interface{}
	add := func(col string, v interface{}) {
		args = append(args, v)
		cols = append(cols, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Status != nil {
		add("status", *patch.Status)
	}
	if patch.ActiveTickets != nil {
		add("active_tickets", *patch.ActiveTickets)
	}
	return cols, args
}

func (s *PostgresStore) UpdateAgent(ctx context.Context, id string, patch models.AgentPatch) (*models.Agent, error) {
	cols, args := agentAssignments(patch)
	if len(cols) == 0 {
		return s.GetAgent(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(`UPDATE agents SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(cols, ", "), len(args), agentColumns)

	a, err := scanAgent(s.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("更新代表失败: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) DeleteAgent(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("删除代表失败: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) RecordOperation(ctx context.Context, log *models.OperationLog) error {
	requestBody, err := json.Marshal(log.RequestBody)
	if err != nil {
		return fmt.Errorf("序列化请求体失败: %w", err)
	}
	responseData, err := json.Marshal(log.ResponseData)
	if err != nil {
		return fmt.Errorf("序列化响应体失败: %w", err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO api_operation_logs (
			id, method, path, request_body, response_data, status_code, success,
			error_message, operation_time, response_time_ms, ip_address, user_agent
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		ulid.Make().String(), log.Method, log.Path, requestBody, responseData, log.StatusCode, log.Success,
		nullable(log.ErrorMessage), log.OperationTime, log.ResponseTime, log.IPAddress, log.UserAgent,
	)
	return err
}

func (s *PostgresStore) Status(ctx context.Context) (map[string]interface{}, error) {
	tables := map[string]string{
		CustomersCollection:        "customers",
		AgentsCollection:           "agents",
		ApiOperationLogsCollection: "api_operation_logs",
	}

	result := make(map[string]interface{})
	for name, table := range tables {
		var count int64
		if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&count); err != nil {
			utils.Logger.Error().Err(err).Str("table", table).Msg("获取表计数失败")
			result[name] = map[string]interface{}{"count": 0, "error": err.Error()}
			continue
		}
		result[name] = map[string]interface{}{"count": count}
	}
	return result, nil
}

// isPgUnavailable 判断是否为连接类的PostgreSQL错误
func isPgUnavailable(err error) bool {
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	return pgconn.Timeout(err)
}
