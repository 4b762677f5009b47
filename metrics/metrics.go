// Package metrics 定义服务的 Prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// 变更结果标签
const (
	ResultOK       = "ok"
	ResultNotFound = "not_found"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

var (
	// Mutations 按实体、操作和结果统计的写操作次数
	Mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "mutations_total",
		Help:      "Entity store mutations by entity kind, operation and result.",
	}, []string{"kind", "op", "result"})

	// Broadcasts 已发出的推送事件
	Broadcasts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "broadcasts_total",
		Help:      "Change events fanned out to connected observers.",
	}, []string{"event"})

	// DeliveryFailures 未能送达某个观察者的推送
	DeliveryFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "crm",
		Name:      "broadcast_delivery_failures_total",
		Help:      "Change events that could not be delivered to an observer or relay.",
	}, []string{"reason"})

	// Observers 当前连接的观察者数量
	Observers = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "crm",
		Name:      "observers_connected",
		Help:      "Currently connected push-channel observers.",
	})
)

// ObserveMutation 记录一次写操作的结果
func ObserveMutation(kind, op, result string) {
	Mutations.WithLabelValues(kind, op, result).Inc()
}
