// Package realtime 通过 WebSocket 把实体变更推送给所有连接的观察者
package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/BerniceZTT/crm_sync/metrics"
	"github.com/BerniceZTT/crm_sync/utils"

	"github.com/oklog/ulid/v2"
)

const broadcastBuffer = 1024

// Envelope 推送给观察者的消息，ID 在每次广播时生成，用于跨实例转发时去重
type Envelope struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp time.Time   `json:"timestamp"`
}

// Encode 编码一条推送消息
func Encode(event string, payload interface{}) ([]byte, error) {
	_, message, err := encode(event, payload)
	return message, err
}

func encode(event string, payload interface{}) (string, []byte, error) {
	env := Envelope{
		ID:        ulid.Make().String(),
		Type:      event,
		Data:      payload,
		Timestamp: time.Now().UTC(),
	}
	message, err := json.Marshal(env)
	return env.ID, message, err
}

// Hub 管理所有已连接的观察者并按提交顺序分发事件
type Hub struct {
	clients map[*Client]struct{}
	mu      sync.RWMutex

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	done chan struct{}
	once sync.Once
}

// NewHub 创建推送中心，需要调用 Run 才会开始分发
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, broadcastBuffer),
		done:       make(chan struct{}),
	}
}

// Run 运行分发循环，直到 ctx 结束
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()
	for {
		select {
		case <-ctx.Done():
			return
		case client := <-h.register:
			h.add(client)
		case client := <-h.unregister:
			h.remove(client, "断开")
		case message := <-h.broadcast:
			h.fanOut(message)
		}
	}
}

// Broadcast 实现 service.Notifier
func (h *Hub) Broadcast(event string, payload interface{}) {
	message, err := Encode(event, payload)
	if err != nil {
		metrics.DeliveryFailures.WithLabelValues("encode").Inc()
		utils.Logger.Error().Err(err).Str("event", event).Msg("推送消息编码失败")
		return
	}
	metrics.Broadcasts.WithLabelValues(event).Inc()
	h.Deliver(message)
}

// Deliver 分发已编码的消息，不阻塞调用方
func (h *Hub) Deliver(message []byte) {
	select {
	case h.broadcast <- message:
	case <-h.done:
	default:
		metrics.DeliveryFailures.WithLabelValues("backlog").Inc()
		utils.Logger.Warn().Int("buffer", broadcastBuffer).Msg("推送队列已满，丢弃事件")
	}
}

// Count 当前连接的观察者数量
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Done 在分发循环退出后关闭
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	h.clients[client] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()

	metrics.Observers.Inc()
	utils.Logger.Info().
		Str("remote", client.remote).
		Int("total", total).
		Msg("观察者已连接")
}

func (h *Hub) remove(client *Client, reason string) {
	h.mu.Lock()
	if _, ok := h.clients[client]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, client)
	total := len(h.clients)
	h.mu.Unlock()

	close(client.send)
	metrics.Observers.Dec()
	utils.Logger.Info().
		Str("remote", client.remote).
		Str("reason", reason).
		Int("total", total).
		Msg("观察者已断开")
}

// fanOut 发送缓冲已满的观察者会被断开，不影响其他观察者
func (h *Hub) fanOut(message []byte) {
	var slow []*Client

	h.mu.RLock()
	for client := range h.clients {
		select {
		case client.send <- message:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		metrics.DeliveryFailures.WithLabelValues("slow_observer").Inc()
		h.remove(client, "发送缓冲已满")
	}
}

func (h *Hub) shutdown() {
	h.once.Do(func() { close(h.done) })

	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		h.remove(client, "服务关闭")
	}
	utils.Logger.Info().Msg("推送中心已停止")
}
