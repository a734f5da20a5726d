package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	socketWriteWait  = 10 * time.Second
	socketPongWait   = 60 * time.Second
	socketPingPeriod = (socketPongWait * 9) / 10
	socketMaxMessage = 8 << 10
	socketSendBuffer = 32
)

const (
	eventClick        = "game:click"
	eventClickResult  = "game:click:result"
	eventGetState     = "game:getState"
	eventState        = "game:state"
	eventEnergyUpdate = "game:energy:update"
	eventAutoIncome   = "game:autoclicker:earnings"
	eventError        = "game:error"
)

type socketEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

type socketError struct {
	Message string `json:"message"`
	Kind    string `json:"kind,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Code    int    `json:"code"`
}

type socketClient struct {
	conn     *websocket.Conn
	send     chan []byte
	playerID string
	limiter  *rate.Limiter
}

// Gateway serves the persistent game channel. Each connection gets a
// writer goroutine, an energy pusher and, with auto-income enabled, a
// connected-income ticker; the reader runs on the request goroutine.
type Gateway struct {
	engine   *Engine
	upgrader websocket.Upgrader
	logger   *slog.Logger

	mu          sync.Mutex
	connections map[string]int
}

func NewGateway(engine *Engine, allowedOrigins []string, logger *slog.Logger) *Gateway {
	return &Gateway{
		engine: engine,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			CheckOrigin:     originChecker(allowedOrigins),
		},
		logger:      logger,
		connections: make(map[string]int),
	}
}

func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 || slices.Contains(allowed, "*") {
		return func(r *http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		return slices.Contains(allowed, u.Scheme+"://"+u.Host)
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	playerID, ok := playerIDFrom(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("socket upgrade failed", "player_id", playerID, "error", err)
		return
	}

	cfg := g.engine.cfg
	c := &socketClient{
		conn:     conn,
		send:     make(chan []byte, socketSendBuffer),
		playerID: playerID,
		limiter:  rate.NewLimiter(rate.Limit(cfg.SocketFramesPerSecond), cfg.SocketFrameBurst),
	}

	ctx, cancel := context.WithCancel(context.Background())
	g.attach(playerID)
	defer func() {
		cancel()
		g.detach(playerID)
	}()

	go c.writer(ctx)

	state, err := g.engine.GameState(ctx, playerID)
	if err != nil {
		g.sendError(ctx, c, err)
		g.logger.Warn("initial game state failed", "player_id", playerID, "error", err)
		return
	}
	sendJSON(ctx, c, eventState, state)

	go g.pushEnergy(ctx, c)
	if g.engine.flags.AutoIncome {
		go g.creditAutoIncome(ctx, c)
	}

	g.logger.Info("socket connected", "player_id", playerID)
	g.reader(ctx, c)
	g.logger.Info("socket disconnected", "player_id", playerID)
}

func (g *Gateway) attach(playerID string) {
	g.mu.Lock()
	g.connections[playerID]++
	g.mu.Unlock()
}

// detach forgets connected auto-income state once the player's last
// connection closes.
func (g *Gateway) detach(playerID string) {
	g.mu.Lock()
	g.connections[playerID]--
	last := g.connections[playerID] <= 0
	if last {
		delete(g.connections, playerID)
	}
	g.mu.Unlock()

	if last {
		g.engine.Disconnect(playerID)
	}
}

func (g *Gateway) reader(ctx context.Context, c *socketClient) {
	c.conn.SetReadLimit(socketMaxMessage)
	c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(socketPongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				g.logger.Debug("socket read failed", "player_id", c.playerID, "error", err)
			}
			return
		}
		if !c.limiter.Allow() {
			g.sendError(ctx, c, &EconomyError{Kind: KindRateLimited, Message: "too many messages"})
			continue
		}

		var env socketEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			g.sendError(ctx, c, invalidInput("invalid_message", "malformed message"))
			continue
		}
		g.dispatch(ctx, c, env)
	}
}

func (g *Gateway) dispatch(ctx context.Context, c *socketClient, env socketEnvelope) {
	switch env.Type {
	case eventClick:
		var req ClickRequest
		if err := json.Unmarshal(env.Data, &req); err != nil {
			g.sendError(ctx, c, invalidInput("invalid_message", "malformed click batch"))
			return
		}
		req.PlayerID = c.playerID
		result, err := g.engine.ProcessClickBatch(ctx, req)
		if err != nil {
			g.sendError(ctx, c, err)
			return
		}
		sendJSON(ctx, c, eventClickResult, result)
	case eventGetState:
		state, err := g.engine.GameState(ctx, c.playerID)
		if err != nil {
			g.sendError(ctx, c, err)
			return
		}
		sendJSON(ctx, c, eventState, state)
	default:
		g.sendError(ctx, c, invalidInput("unknown_event", "unknown event %q", env.Type))
	}
}

// pushEnergy sends cached energy on an interval, only when it changed.
func (g *Gateway) pushEnergy(ctx context.Context, c *socketClient) {
	ticker := time.NewTicker(g.engine.cfg.EnergyPushInterval)
	defer ticker.Stop()

	lastSent := int64(-1)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			reading, ok := g.engine.ReadCachedEnergy(c.playerID)
			if !ok || reading.Energy == lastSent {
				continue
			}
			sendJSON(ctx, c, eventEnergyUpdate, reading)
			lastSent = reading.Energy
		}
	}
}

func (g *Gateway) creditAutoIncome(ctx context.Context, c *socketClient) {
	ticker := time.NewTicker(g.engine.cfg.AutoIncomeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			credit, ok, err := g.engine.CreditConnected(ctx, c.playerID)
			if err != nil {
				g.logger.Warn("connected auto-income failed", "player_id", c.playerID, "error", err)
				continue
			}
			if ok {
				sendJSON(ctx, c, eventAutoIncome, credit)
			}
		}
	}
}

func (g *Gateway) sendError(ctx context.Context, c *socketClient, err error) {
	payload := socketError{Message: "internal error", Code: statusForError(err)}
	var econ *EconomyError
	if errors.As(err, &econ) {
		payload.Message = econ.Error()
		payload.Kind = string(econ.Kind)
		payload.Reason = econ.Reason
	}
	if payload.Code >= http.StatusInternalServerError {
		g.logger.Error("socket request failed", "player_id", c.playerID, "error", err)
		payload.Message = "internal error"
	}
	sendJSON(ctx, c, eventError, payload)
}

func (c *socketClient) writer(ctx context.Context) {
	ticker := time.NewTicker(socketPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			c.flush()
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// flush writes whatever was queued before the connection was cancelled, so
// a final error reaches the client ahead of the close frame.
func (c *socketClient) flush() {
	for {
		select {
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(socketWriteWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

// sendJSON queues an envelope without blocking. The message is dropped
// when the client's buffer is full.
func sendJSON(ctx context.Context, c *socketClient, typ string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	out, err := json.Marshal(socketEnvelope{Type: typ, Data: data})
	if err != nil {
		return
	}
	select {
	case <-ctx.Done():
	case c.send <- out:
	default:
	}
}
