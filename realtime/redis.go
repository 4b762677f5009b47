package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BerniceZTT/crm_sync/metrics"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/redis/go-redis/v9"
)

// RelayChannel 多个实例之间转发事件的 Redis 频道
const RelayChannel = "crm:events"

const (
	publishTimeout = 2 * time.Second
	// recentSize 记住最近分发过的消息 ID 数量
	recentSize = 1024
)

// RedisRelay 通过 Redis 发布订阅把事件转发给所有实例的观察者
//
// 本实例的观察者也经由订阅收到事件。订阅未建立或发布失败时直接在本地分发，
// 同一条消息（按 Envelope.ID）在本实例最多分发一次。
type RedisRelay struct {
	client     *redis.Client
	hub        *Hub
	channel    string
	subscribed atomic.Bool
	recent     *recentIDs
}

// NewRedisRelay 连接 Redis 并创建转发器
func NewRedisRelay(ctx context.Context, url string, hub *Hub) (*RedisRelay, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("解析Redis地址失败: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("连接Redis失败: %w", err)
	}

	utils.Logger.Info().Str("addr", opts.Addr).Str("channel", RelayChannel).Msg("Redis事件转发已启用")
	return NewRedisRelayWithClient(client, hub), nil
}

// NewRedisRelayWithClient 使用已有的客户端创建转发器
func NewRedisRelayWithClient(client *redis.Client, hub *Hub) *RedisRelay {
	return &RedisRelay{
		client:  client,
		hub:     hub,
		channel: RelayChannel,
		recent:  newRecentIDs(recentSize),
	}
}

// Broadcast 实现 service.Notifier
func (r *RedisRelay) Broadcast(event string, payload interface{}) {
	id, message, err := encode(event, payload)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("encode").Inc()
		utils.Logger.Error().Err(err).Str("event", event).Msg("推送消息编码失败")
		return
	}
	metrics.Broadcasts.WithLabelValues(event).Inc()

	if !r.subscribed.Load() {
		r.deliver(id, message)
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := r.client.Publish(ctx, r.channel, message).Err(); err != nil {
		metrics.DeliveryFailures.WithLabelValues("relay").Inc()
		utils.Logger.Error().Err(err).Str("event", event).Msg("Redis发布失败，改为本地推送")
		// 超时的发布可能仍会经订阅到达，deliver 保证只分发一次
		r.deliver(id, message)
	}
}

// Run 订阅频道并把收到的事件交给本地推送中心，直到 ctx 结束
func (r *RedisRelay) Run(ctx context.Context) error {
	sub := r.client.Subscribe(ctx, r.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("订阅Redis频道失败: %w", err)
	}
	r.subscribed.Store(true)
	defer r.subscribed.Store(false)

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			r.forward([]byte(msg.Payload))
		}
	}
}

// forward 分发从频道收到的消息，没有 ID 的消息（其他发布者）直接分发
func (r *RedisRelay) forward(message []byte) {
	var head struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(message, &head); err != nil {
		utils.Logger.Warn().Err(err).Msg("忽略无法解析的转发消息")
		return
	}
	if head.ID == "" {
		r.hub.Deliver(message)
		return
	}
	r.deliver(head.ID, message)
}

// deliver 在本地分发，已经分发过的 ID 被跳过
func (r *RedisRelay) deliver(id string, message []byte) {
	if !r.recent.claim(id) {
		utils.Logger.Debug().Str("id", id).Msg("跳过重复的推送消息")
		return
	}
	r.hub.Deliver(message)
}

// recentIDs 固定容量的最近 ID 集合，满了以后淘汰最早的
type recentIDs struct {
	mu   sync.Mutex
	seen map[string]struct{}
	ring []string
	next int
}

func newRecentIDs(size int) *recentIDs {
	return &recentIDs{
		seen: make(map[string]struct{}, size),
		ring: make([]string, size),
	}
}

// claim 第一次见到 id 时返回 true
func (r *recentIDs) claim(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[id]; ok {
		return false
	}
	if old := r.ring[r.next]; old != "" {
		delete(r.seen, old)
	}
	r.ring[r.next] = id
	r.seen[id] = struct{}{}
	r.next = (r.next + 1) % len(r.ring)
	return true
}

// Close 关闭 Redis 连接
func (r *RedisRelay) Close() error {
	return r.client.Close()
}
