package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BerniceZTT/crm_sync/models"
	"github.com/BerniceZTT/crm_sync/utils"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	// 集合名
	CustomersCollection        = "customers"
	AgentsCollection           = "agents"
	ApiOperationLogsCollection = "apiOperationLogs"
)

var collections = []string{
	CustomersCollection,
	AgentsCollection,
	ApiOperationLogsCollection,
}

type customerDocument struct {
	ID            primitive.ObjectID  `bson:"_id,omitempty"`
	Name          string              `bson:"name"`
	Email         string              `bson:"email"`
	Phone         string              `bson:"phone"`
	Status        string              `bson:"status"`
	AssignedAgent *primitive.ObjectID `bson:"assignedAgent,omitempty"`
	CreatedAt     time.Time           `bson:"createdAt"`
}

func (d customerDocument) model() models.Customer {
	c := models.Customer{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		Email:     d.Email,
		Phone:     d.Phone,
		Status:    d.Status,
		CreatedAt: d.CreatedAt,
	}
	if d.AssignedAgent != nil {
		c.AssignedAgent = d.AssignedAgent.Hex()
	}
	return c
}

type agentDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Name          string             `bson:"name"`
	Email         string             `bson:"email"`
	Phone         string             `bson:"phone"`
	Status        string             `bson:"status"`
	ActiveTickets int                `bson:"activeTickets"`
	CreatedAt     time.Time          `bson:"createdAt"`
}

func (d agentDocument) model() models.Agent {
	return models.Agent{
		ID:            d.ID.Hex(),
		Name:          d.Name,
		Email:         d.Email,
		Phone:         d.Phone,
		Status:        d.Status,
		ActiveTickets: d.ActiveTickets,
		CreatedAt:     d.CreatedAt,
	}
}

// MongoStore MongoDB 存储
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoStore 初始化MongoDB连接
func NewMongoStore(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	// 设置连接超时
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	// 创建客户端
	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("连接MongoDB失败: %w", err)
	}

	// 检查连接
	pingCtx, pingCancel := context.WithTimeout(ctx, 5*time.Second)
	defer pingCancel()

	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("ping MongoDB失败: %w", err)
	}

	// 选择数据库
	s := &MongoStore{client: client, db: client.Database(dbName)}
	utils.Logger.Info().Str("database", dbName).Msg("已连接到MongoDB")

	if err := s.InitializeCollections(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	return s, nil
}

// NewMongoStoreFromDatabase 使用已有的数据库句柄构建存储
func NewMongoStoreFromDatabase(db *mongo.Database) *MongoStore {
	return &MongoStore{client: db.Client(), db: db}
}

// Close 关闭MongoDB连接
func (s *MongoStore) Close(ctx context.Context) error {
	if s.client == nil {
		return nil
	}
	if err := s.client.Disconnect(ctx); err != nil {
		utils.Logger.Error().Err(err).Msg("断开MongoDB连接失败")
		return err
	}
	utils.Logger.Info().Msg("已断开MongoDB连接")
	return nil
}

// InitializeCollections 初始化数据库集合
func (s *MongoStore) InitializeCollections(ctx context.Context) error {
	existing, err := s.db.ListCollectionNames(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("检查集合失败: %w", err)
	}
	found := make(map[string]bool, len(existing))
	for _, name := range existing {
		found[name] = true
	}

	for _, collName := range collections {
		if found[collName] {
			utils.Logger.Debug().Str("collection", collName).Msg("集合已存在")
			continue
		}
		if err := s.db.CreateCollection(ctx, collName); err != nil {
			return fmt.Errorf("创建集合失败: %w", err)
		}
		utils.Logger.Info().Str("collection", collName).Msg("创建集合成功")
	}

	return nil
}

// ValidID 判断是否为合法的 ObjectID
func (s *MongoStore) ValidID(id string) bool {
	return primitive.IsValidObjectID(id)
}

func (s *MongoStore) customers() *mongo.Collection {
	return s.db.Collection(CustomersCollection)
}

func (s *MongoStore) agents() *mongo.Collection {
	return s.db.Collection(AgentsCollection)
}

// CreateCustomer 创建客户
func (s *MongoStore) CreateCustomer(ctx context.Context, in models.CustomerInput) (*models.Customer, error) {
	doc := customerDocument{
		ID:        primitive.NewObjectID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Status:    in.Status,
		CreatedAt: now(),
	}
	if in.AssignedAgent != "" {
		agentID, err := primitive.ObjectIDFromHex(in.AssignedAgent)
		if err != nil {
			return nil, ErrInvalidReference
		}
		doc.AssignedAgent = &agentID
	}

	if _, err := s.customers().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("创建客户失败: %w", err)
	}
	utils.LogDbOperation("insertOne", CustomersCollection, nil, doc.ID.Hex())

	c := doc.model()
	return &c, nil
}

// ListCustomers 获取所有客户
func (s *MongoStore) ListCustomers(ctx context.Context) ([]models.Customer, error) {
	cursor, err := s.customers().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("获取客户列表失败: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []customerDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("解析客户数据失败: %w", err)
	}

	out := make([]models.Customer, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// GetCustomer 根据ID获取客户
func (s *MongoStore) GetCustomer(ctx context.Context, id string) (*models.Customer, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc customerDocument
	if err := s.customers().FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询客户失败: %w", err)
	}

	c := doc.model()
	return &c, nil
}

// UpdateCustomer 部分更新客户，只写入请求中提供的字段
func (s *MongoStore) UpdateCustomer(ctx context.Context, id string, patch models.CustomerPatch) (*models.Customer, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{}
	unset := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.AssignedAgent.Set {
		if patch.AssignedAgent.ID == "" {
			unset["assignedAgent"] = ""
		} else {
			agentID, err := primitive.ObjectIDFromHex(patch.AssignedAgent.ID)
			if err != nil {
				return nil, ErrInvalidReference
			}
			set["assignedAgent"] = agentID
		}
	}

	// 没有需要更新的字段时直接返回当前记录
	if len(set) == 0 && len(unset) == 0 {
		return s.GetCustomer(ctx, id)
	}

	var doc customerDocument
	err = s.customers().FindOneAndUpdate(ctx,
		bson.M{"_id": objID},
		buildUpdate(set, unset),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("更新客户失败: %w", err)
	}
	utils.LogDbOperation("findOneAndUpdate", CustomersCollection, id, set)

	c := doc.model()
	return &c, nil
}

// DeleteCustomer 删除客户
func (s *MongoStore) DeleteCustomer(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.customers().DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("删除客户失败: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	utils.LogDbOperation("deleteOne", CustomersCollection, id, result.DeletedCount)
	return nil
}

// CreateAgent 创建代表
func (s *MongoStore) CreateAgent(ctx context.Context, in models.AgentInput) (*models.Agent, error) {
	doc := agentDocument{
		ID:            primitive.NewObjectID(),
		Name:          in.Name,
		Email:         in.Email,
		Phone:         in.Phone,
		Status:        in.Status,
		ActiveTickets: in.ActiveTickets,
		CreatedAt:     now(),
	}

	if _, err := s.agents().InsertOne(ctx, doc); err != nil {
		return nil, fmt.Errorf("创建代表失败: %w", err)
	}
	utils.LogDbOperation("insertOne", AgentsCollection, nil, doc.ID.Hex())

	a := doc.model()
	return &a, nil
}

// ListAgents 获取所有代表
func (s *MongoStore) ListAgents(ctx context.Context) ([]models.Agent, error) {
	cursor, err := s.agents().Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("获取代表列表失败: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []agentDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("解析代表数据失败: %w", err)
	}

	out := make([]models.Agent, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.model())
	}
	return out, nil
}

// GetAgent 根据ID获取代表
func (s *MongoStore) GetAgent(ctx context.Context, id string) (*models.Agent, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var doc agentDocument
	if err := s.agents().FindOne(ctx, bson.M{"_id": objID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("查询代表失败: %w", err)
	}

	a := doc.model()
	return &a, nil
}

// UpdateAgent 部分更新代表
func (s *MongoStore) UpdateAgent(ctx context.Context, id string, patch models.AgentPatch) (*models.Agent, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := bson.M{}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.Phone != nil {
		set["phone"] = *patch.Phone
	}
	if patch.Status != nil {
		set["status"] = *patch.Status
	}
	if patch.ActiveTickets != nil {
		set["activeTickets"] = *patch.ActiveTickets
	}

	if len(set) == 0 {
		return s.GetAgent(ctx, id)
	}

	var doc agentDocument
	err = s.agents().FindOneAndUpdate(ctx,
		bson.M{"_id": objID},
		buildUpdate(set, nil),
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("更新代表失败: %w", err)
	}
	utils.LogDbOperation("findOneAndUpdate", AgentsCollection, id, set)

	a := doc.model()
	return &a, nil
}

// DeleteAgent 删除代表，不处理引用该代表的客户
func (s *MongoStore) DeleteAgent(ctx context.Context, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrNotFound
	}

	result, err := s.agents().DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("删除代表失败: %w", err)
	}
	if result.DeletedCount == 0 {
		return ErrNotFound
	}
	utils.LogDbOperation("deleteOne", AgentsCollection, id, result.DeletedCount)
	return nil
}

// RecordOperation 保存操作日志
func (s *MongoStore) RecordOperation(ctx context.Context, log *models.OperationLog) error {
	_, err := s.db.Collection(ApiOperationLogsCollection).InsertOne(ctx, log)
	return err
}

// Status 获取数据库状态
func (s *MongoStore) Status(ctx context.Context) (map[string]interface{}, error) {
	result := make(map[string]interface{})

	for _, collName := range collections {
		count, err := s.db.Collection(collName).CountDocuments(ctx, bson.M{})
		if err != nil {
			utils.Logger.Error().Err(err).Str("collection", collName).Msg("获取集合计数失败")
			result[collName] = map[string]interface{}{
				"count": 0,
				"error": err.Error(),
			}
			continue
		}
		result[collName] = map[string]interface{}{
			"count": count,
		}
	}

	return result, nil
}

func buildUpdate(set, unset bson.M) bson.M {
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	return update
}

// isRetryableMongoError 判断是否为表示服务不可达的MongoDB错误
func isRetryableMongoError(err error) bool {
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) {
		return true
	}

	// MongoDB可重试错误代码
	retryableCodes := map[int32]bool{
		6:     true, // HostUnreachable
		7:     true, // HostNotFound
		89:    true, // NetworkTimeout
		91:    true, // ShutdownInProgress
		189:   true, // PrimarySteppedDown
		10107: true, // NotMaster
		13436: true, // NotMasterNoSlaveOk
		11600: true, // InterruptedAtShutdown
		11602: true, // InterruptedDueToReplStateChange
	}

	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		return retryableCodes[cmdErr.Code]
	}
	return false
}

// now 返回毫秒精度的当前时间，与 BSON 日期精度一致
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
