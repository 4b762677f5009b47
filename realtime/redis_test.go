package realtime

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestRelay(t *testing.T) (*RedisRelay, *Hub, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	hub := NewHub()
	relay := NewRedisRelayWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), hub)
	t.Cleanup(func() { relay.Close() })
	return relay, hub, mr
}

// runRelay 启动订阅并等待其生效
func runRelay(t *testing.T, relay *RedisRelay) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- relay.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-errCh; err != nil {
			t.Errorf("Run: %v", err)
		}
	})
	waitFor(t, "relay subscription", relay.subscribed.Load)
}

// expectOnce 断言推送中心恰好收到一条消息
func expectOnce(t *testing.T, hub *Hub) []byte {
	t.Helper()
	var msg []byte
	select {
	case msg = <-hub.broadcast:
	case <-time.After(2 * time.Second):
		t.Fatal("no message reached the hub")
	}
	select {
	case dup := <-hub.broadcast:
		t.Fatalf("message delivered twice: %s", dup)
	case <-time.After(200 * time.Millisecond):
	}
	return msg
}

func publisher(t *testing.T, mr *miniredis.Miniredis) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client
}

func TestRelayRoundTripDeliversOnce(t *testing.T) {
	relay, hub, _ := newTestRelay(t)
	runRelay(t, relay)

	relay.Broadcast("customerAdded", map[string]string{"_id": "c1"})

	var env Envelope
	if err := json.Unmarshal(expectOnce(t, hub), &env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if env.ID == "" || env.Type != "customerAdded" {
		t.Errorf("unexpected envelope: %+v", env)
	}
}

func TestRelayForwardsOtherInstances(t *testing.T) {
	relay, hub, mr := newTestRelay(t)
	runRelay(t, relay)

	other := `{"id":"01J0000000000000000000000A","type":"agentUpdated","data":{"_id":"a1"},"timestamp":"2024-01-01T00:00:00Z"}`
	if err := publisher(t, mr).Publish(context.Background(), RelayChannel, other).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if got := string(expectOnce(t, hub)); got != other {
		t.Errorf("forwarded %s, want %s", got, other)
	}
}

func TestRelaySkipsLateCopyOfLocalDelivery(t *testing.T) {
	relay, hub, mr := newTestRelay(t)

	// 订阅建立前的广播直接在本地分发
	relay.Broadcast("customerDeleted", map[string]string{"_id": "c1"})
	local := expectOnce(t, hub)

	// 同一条消息之后才经订阅到达
	runRelay(t, relay)
	if err := publisher(t, mr).Publish(context.Background(), RelayChannel, string(local)).Err(); err != nil {
		t.Fatalf("publish: %v", err)
	}
	select {
	case dup := <-hub.broadcast:
		t.Fatalf("late copy delivered again: %s", dup)
	case <-time.After(300 * time.Millisecond):
	}

	// 新消息不受影响
	relay.Broadcast("customerAdded", map[string]string{"_id": "c2"})
	expectOnce(t, hub)
}

func TestRelayFallbackAfterFailedPublishIsNotRepeated(t *testing.T) {
	relay, hub, _ := newTestRelay(t)
	runRelay(t, relay)

	id, message, err := encode("agentAdded", map[string]string{"_id": "a1"})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	// 发布超时后的本地补发，以及随后经订阅到达的同一条消息
	relay.deliver(id, message)
	relay.forward(message)

	expectOnce(t, hub)
}

func TestRecentIDsEvictsOldest(t *testing.T) {
	recent := newRecentIDs(2)
	if !recent.claim("a") || !recent.claim("b") {
		t.Fatal("first claims should succeed")
	}
	if recent.claim("a") {
		t.Error("a claimed twice")
	}
	recent.claim("c")
	if !recent.claim("a") {
		t.Error("a should have been evicted")
	}
	if recent.claim("c") {
		t.Error("c claimed twice")
	}
}
