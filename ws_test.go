package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func dialGame(t *testing.T, env *testEnv, playerID string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(newTestRouter(t, env))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + playerToken(t, playerID)
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readUntil returns the first envelope of the wanted type, skipping pushes.
func readUntil(t *testing.T, conn *websocket.Conn, want string) socketEnvelope {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var env socketEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			t.Fatalf("waiting for %s: %v", want, err)
		}
		if env.Type == want {
			return env
		}
	}
}

func quietSockets(c *EconomyConfig) {
	c.EnergyPushInterval = time.Hour
	c.AutoIncomeInterval = time.Hour
}

func TestGateway_InitialStateAndClick(t *testing.T) {
	env := newTestEnv(t, quietSockets)
	conn := dialGame(t, env, "p1")

	first := readUntil(t, conn, eventState)
	var state GameState
	if err := json.Unmarshal(first.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.PlayerID != "p1" || state.Energy != 10000 {
		t.Errorf("initial state = %+v", state)
	}

	err := conn.WriteJSON(map[string]any{"type": eventClick, "data": map[string]any{"clicks": 4}})
	if err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, eventClickResult)
	var res ClickResult
	if err := json.Unmarshal(msg.Data, &res); err != nil {
		t.Fatal(err)
	}
	if !res.Success || res.Coins != 4 || res.Energy != 9996 {
		t.Errorf("click result = %+v", res)
	}
}

func TestGateway_ErrorsAreReported(t *testing.T) {
	env := newTestEnv(t, quietSockets)
	conn := dialGame(t, env, "p1")
	readUntil(t, conn, eventState)

	tests := []struct {
		name       string
		frame      string
		wantKind   string
		wantReason string
		wantCode   int
	}{
		{"unknown_event", `{"type":"game:dance"}`, "invalid_input", "unknown_event", http.StatusBadRequest},
		{"malformed_json", `{"type":`, "invalid_input", "invalid_message", http.StatusBadRequest},
		{"invalid_count", `{"type":"game:click","data":{"clicks":0}}`, "invalid_input", ReasonInvalidCount, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.frame)); err != nil {
				t.Fatal(err)
			}
			msg := readUntil(t, conn, eventError)
			var got socketError
			if err := json.Unmarshal(msg.Data, &got); err != nil {
				t.Fatal(err)
			}
			if got.Kind != tt.wantKind || got.Reason != tt.wantReason || got.Code != tt.wantCode {
				t.Errorf("error = %+v", got)
			}
		})
	}
}

func TestGateway_GetState(t *testing.T) {
	env := newTestEnv(t, quietSockets)
	conn := dialGame(t, env, "p1")
	readUntil(t, conn, eventState)

	if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"game:getState"}`)); err != nil {
		t.Fatal(err)
	}
	msg := readUntil(t, conn, eventState)
	var state GameState
	if err := json.Unmarshal(msg.Data, &state); err != nil {
		t.Fatal(err)
	}
	if state.PlayerID != "p1" {
		t.Errorf("state = %+v", state)
	}
}

func TestGateway_PushesConnectedAutoIncome(t *testing.T) {
	env := newTestEnv(t, func(c *EconomyConfig) {
		c.EnergyPushInterval = time.Hour
		c.AutoIncomeInterval = 300 * time.Millisecond
	})
	env.ownership.mu.Lock()
	env.ownership.levels["p1"] = 5
	env.ownership.mu.Unlock()
	conn := dialGame(t, env, "p1")
	readUntil(t, conn, eventState)

	msg := readUntil(t, conn, eventAutoIncome)
	var credit AutoIncomeCredit
	if err := json.Unmarshal(msg.Data, &credit); err != nil {
		t.Fatal(err)
	}
	// 15000 coins/hour over 300ms floors to 1
	if credit.Earned != 1 || credit.Coins != 1 {
		t.Errorf("credit = %+v, want earned 1, coins 1", credit)
	}
}

func TestGateway_RejectsMissingToken(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(t, newTestEnv(t)))
	defer srv.Close()

	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err == nil {
		t.Fatal("dial without token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("response = %v, want 401", resp)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker([]string{"https://play.example.com"})

	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://play.example.com", true},
		{"https://evil.example.com", false},
		{"http://play.example.com", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		if got := check(r); got != tt.want {
			t.Errorf("origin %q allowed = %v, want %v", tt.origin, got, tt.want)
		}
	}

	if !originChecker(nil)(httptest.NewRequest(http.MethodGet, "/ws", nil)) {
		t.Error("empty allow list should accept any origin")
	}
}

func TestGateway_InitialStateFailureIsReported(t *testing.T) {
	env := newTestEnv(t, quietSockets)
	env.store.setLoadErr(storeError("load player", errBoom))
	conn := dialGame(t, env, "p1")

	msg := readUntil(t, conn, eventError)
	var got socketError
	if err := json.Unmarshal(msg.Data, &got); err != nil {
		t.Fatal(err)
	}
	if got.Kind != string(KindStoreUnavailable) || got.Code != http.StatusServiceUnavailable {
		t.Errorf("error = %+v, want store_unavailable 503", got)
	}

	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, _, err := conn.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		t.Errorf("read after error = %v, want normal close", err)
	}
}
