package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BerniceZTT/crm_sync/controllers"
	"github.com/BerniceZTT/crm_sync/realtime"
	"github.com/BerniceZTT/crm_sync/repository"
	"github.com/BerniceZTT/crm_sync/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func newServer(t *testing.T) (*httptest.Server, *realtime.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := repository.NewMemoryStore()
	hub := realtime.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	router := gin.New()
	RegisterRoutes(router, Dependencies{
		Customers:   controllers.NewCustomerController(service.NewCustomerService(store, service.NewResolver(store, false), hub)),
		Agents:      controllers.NewAgentController(service.NewAgentService(store, hub)),
		Store:       store,
		PushHandler: hub.ServeWS,
	})
	srv := httptest.NewServer(router)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-hub.Done()
	})
	return srv, hub
}

func call(t *testing.T, method, url, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, data
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

func next(t *testing.T, conn *websocket.Conn) envelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env envelope
	if err := conn.ReadJSON(&env); err != nil {
		t.Fatalf("read push: %v", err)
	}
	return env
}

func compactJSON(t *testing.T, data []byte) string {
	t.Helper()
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		t.Fatalf("compact %s: %v", data, err)
	}
	return buf.String()
}

func TestSynchronizedEndToEnd(t *testing.T) {
	srv, hub := newServer(t)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	deadline := time.Now().Add(2 * time.Second)
	for hub.Count() != 1 {
		if time.Now().After(deadline) {
			t.Fatal("observer not registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	status, body := call(t, http.MethodPost, srv.URL+"/api/agents", `{"name":"Bob"}`)
	if status != http.StatusOK {
		t.Fatalf("create agent: %d %s", status, body)
	}
	var agent struct {
		ID string `json:"_id"`
	}
	json.Unmarshal(body, &agent)
	if env := next(t, conn); env.Type != "agentAdded" || compactJSON(t, env.Data) != compactJSON(t, body) {
		t.Errorf("agentAdded push %s %s does not match response %s", env.Type, env.Data, body)
	}

	status, body = call(t, http.MethodPost, srv.URL+"/api/customers", `{"name":"Alice","assignedAgent":"`+agent.ID+`"}`)
	if status != http.StatusOK {
		t.Fatalf("create customer: %d %s", status, body)
	}
	var customer struct {
		ID            string `json:"_id"`
		AssignedAgent *struct {
			Name string `json:"name"`
		} `json:"assignedAgent"`
	}
	json.Unmarshal(body, &customer)
	if customer.AssignedAgent == nil || customer.AssignedAgent.Name != "Bob" {
		t.Fatalf("assignedAgent not resolved: %s", body)
	}
	if env := next(t, conn); env.Type != "customerAdded" || compactJSON(t, env.Data) != compactJSON(t, body) {
		t.Errorf("customerAdded push %s %s does not match response %s", env.Type, env.Data, body)
	}

	if status, _ := call(t, http.MethodDelete, srv.URL+"/api/agents/"+agent.ID, ""); status != http.StatusOK {
		t.Fatalf("delete agent: %d", status)
	}
	if env := next(t, conn); env.Type != "agentDeleted" || string(env.Data) != `"`+agent.ID+`"` {
		t.Errorf("agentDeleted push = %s %s", env.Type, env.Data)
	}

	status, body = call(t, http.MethodGet, srv.URL+"/api/customers", "")
	if status != http.StatusOK {
		t.Fatalf("list customers: %d", status)
	}
	var list []map[string]interface{}
	json.Unmarshal(body, &list)
	if len(list) != 1 {
		t.Fatalf("expected one customer, got %s", body)
	}
	if v, ok := list[0]["assignedAgent"]; !ok || v != nil {
		t.Errorf("dangling reference should be null, got %s", body)
	}
}

func TestOperationalEndpoints(t *testing.T) {
	srv, _ := newServer(t)

	if status, body := call(t, http.MethodGet, srv.URL+"/api/health", ""); status != http.StatusOK || !strings.Contains(string(body), "ok") {
		t.Errorf("health: %d %s", status, body)
	}

	call(t, http.MethodPost, srv.URL+"/api/agents", `{"name":"Bob"}`)
	status, body := call(t, http.MethodGet, srv.URL+"/api/db-status", "")
	if status != http.StatusOK {
		t.Fatalf("db-status: %d", status)
	}
	var dbStatus map[string]map[string]float64
	if err := json.Unmarshal(body, &dbStatus); err != nil {
		t.Fatalf("decode db-status %s: %v", body, err)
	}
	if dbStatus[repository.AgentsCollection]["count"] != 1 {
		t.Errorf("agents count = %v", dbStatus[repository.AgentsCollection])
	}

	status, body = call(t, http.MethodGet, srv.URL+"/metrics", "")
	if status != http.StatusOK || !strings.Contains(string(body), "crm_mutations_total") {
		t.Errorf("metrics endpoint missing mutation counter: %d", status)
	}
}
