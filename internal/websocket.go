package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// 系統設計問題：
//   如何把兩條獨立的 WebSocket 連線安全地接到同一個房間上？
//
// 核心挑戰：
//   1. 邊界驗證：房間編號格式與存在性在任何 session 狀態建立前就要擋下
//   2. 投遞與狀態分離：房間操作回傳出站計畫，協調器在臨界區外投遞
//   3. 盡力而為的投遞：單一連線死掉不能回滾已接受的遊戲狀態
//   4. 心跳機制：檢測死連接（網絡異常、客戶端崩潰）
//
// 設計方案：
//   ✅ Hub 模式 - 集中管理所有房間的所有連接
//   ✅ 緩衝 channel - 異步發送（不阻塞）
//   ✅ Ping/Pong 心跳 - 檢測死連接（54s/60s）
//   ✅ 斷線即離房 - 讀取迴圈退出時觸發 Leave 與房間回收

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 54 * time.Second
	handshakeWait  = 30 * time.Second
	sendBufferSize = 64
)

// Hub WebSocket 連接中心
//
// 連接映射：map[roomID]map[playerID]*Connection，支援房間級廣播與
// 指定玩家的單播。投遞失敗（死連線、緩衝滿）一律吞掉，遊戲狀態
// 不以投遞成功為前提。
type Hub struct {
	manager     *Manager
	data        *GameData
	logger      *slog.Logger
	upgrader    websocket.Upgrader
	connections map[string]map[string]*Connection // roomID -> playerID -> Connection
	mu          sync.RWMutex
}

// Connection 單一玩家的 WebSocket 連接
type Connection struct {
	PlayerID string
	RoomID   string
	Conn     *websocket.Conn
	Send     chan []byte
	Hub      *Hub

	closeOnce sync.Once
}

// NewHub 創建 WebSocket Hub
//
// allowedOrigins 控制升級時的來源檢查；包含 "*" 時放行所有來源。
func NewHub(manager *Manager, data *GameData, logger *slog.Logger, allowedOrigins []string) *Hub {
	allowAll := false
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return &Hub{
		manager: manager,
		data:    data,
		logger:  logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if allowAll {
					return true
				}
				_, ok := allowed[r.Header.Get("Origin")]
				return ok
			},
		},
		connections: make(map[string]map[string]*Connection),
	}
}

// ServeWS 處理 /ws/{room_id} 的 WebSocket 連接
//
// 流程：升級 → 驗證房間編號（格式 + 存在性）→ join 握手 → 註冊連接
// → 讀取迴圈。任何一步失敗都以在地化錯誤回覆並用 1008 關閉，
// 不留下任何 session 狀態。
func (hub *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	roomID := r.PathValue("room_id")

	conn, err := hub.upgrader.Upgrade(w, r, nil)
	if err != nil {
		hub.logger.Error("升級 WebSocket 失敗", "error", err)
		return
	}

	room, err := hub.manager.GetRoom(roomID)
	if err != nil {
		hub.rejectConn(conn)
		return
	}

	pid, out, err := hub.handshake(conn, room)
	if err != nil {
		return
	}

	connection := &Connection{
		PlayerID: pid,
		RoomID:   roomID,
		Conn:     conn,
		Send:     make(chan []byte, sendBufferSize),
		Hub:      hub,
	}

	hub.register(connection)
	go connection.writePump()

	hub.deliver(roomID, out)

	hub.logger.Info("玩家已加入",
		"room_id", roomID,
		"player_id", pid)

	connection.readPump(room)
}

// handshake 執行 join 握手
//
// 連線後的第一則訊息必須是 join。失敗時直接回覆錯誤並關閉連線，
// 回傳的錯誤只用來中止流程。
func (hub *Hub) handshake(conn *websocket.Conn, room *Room) (string, []Outbound, error) {
	_ = conn.SetReadDeadline(time.Now().Add(handshakeWait))

	var req JoinRequest
	_, raw, err := conn.ReadMessage()
	if err == nil {
		var env Envelope
		if env, err = DecodeEnvelope(raw); err == nil && env.Type != MsgJoin {
			err = fmt.Errorf("第一則訊息必須是 %s，收到 %s", MsgJoin, env.Type)
		}
	}
	if err == nil {
		err = json.Unmarshal(raw, &req)
	}
	if err != nil {
		hub.closeWithError(conn, hub.data.Text(room.DefaultLang, "invalid_move"))
		return "", nil, err
	}

	pid, out, err := room.Join(req.Name, req.Lang)
	if err != nil {
		lang := hub.data.Resolve(req.Lang, room.DefaultLang)
		hub.closeWithError(conn, hub.data.Text(lang, ErrorKey(err)))
		return "", nil, err
	}

	return pid, out, nil
}

// rejectConn 拒絕編號無效或不存在的房間
//
// 盡力而為地讀一則訊息來取得客戶端語言，再以在地化錯誤回覆。
func (hub *Hub) rejectConn(conn *websocket.Conn) {
	lang := DefaultLang
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	if _, raw, err := conn.ReadMessage(); err == nil {
		var req JoinRequest
		if json.Unmarshal(raw, &req) == nil && req.Lang != "" {
			lang = req.Lang
		}
	}
	hub.closeWithError(conn, hub.data.Text(lang, "invalid_move"))
}

// closeWithError 回覆錯誤訊息後以 policy violation (1008) 關閉連線
func (hub *Hub) closeWithError(conn *websocket.Conn, message string) {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if raw, err := json.Marshal(ErrorMessage{Type: "error", Message: message}); err == nil {
		_ = conn.WriteMessage(websocket.TextMessage, raw)
	}
	_ = conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, ""))
	_ = conn.Close()
}

// register 註冊連接
func (hub *Hub) register(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	if hub.connections[conn.RoomID] == nil {
		hub.connections[conn.RoomID] = make(map[string]*Connection)
	}
	hub.connections[conn.RoomID][conn.PlayerID] = conn
}

// unregister 取消註冊連接
func (hub *Hub) unregister(conn *Connection) {
	hub.mu.Lock()
	defer hub.mu.Unlock()

	roomConns, exists := hub.connections[conn.RoomID]
	if !exists {
		return
	}
	if actual, ok := roomConns[conn.PlayerID]; ok && actual == conn {
		delete(roomConns, conn.PlayerID)
		conn.closeOnce.Do(func() {
			close(conn.Send)
		})
		if len(roomConns) == 0 {
			delete(hub.connections, conn.RoomID)
		}
	}
}

// deliver 投遞房間操作回傳的出站計畫
//
// To 為空的項目廣播給房內所有連接，否則單播給指定玩家。
// 投遞是盡力而為：序列化失敗記錄日誌後跳過，緩衝滿則丟棄。
func (hub *Hub) deliver(roomID string, out []Outbound) {
	for _, o := range out {
		raw, err := json.Marshal(o.Msg)
		if err != nil {
			hub.logger.Error("序列化出站訊息失敗", "error", err, "room_id", roomID)
			continue
		}
		if o.To == "" {
			hub.broadcast(roomID, raw)
		} else {
			hub.sendTo(roomID, o.To, raw)
		}
	}
}

// broadcast 廣播訊息到房間內所有連接
func (hub *Hub) broadcast(roomID string, message []byte) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	for _, conn := range hub.connections[roomID] {
		conn.trySend(message)
	}
}

// sendTo 單播訊息給指定玩家
func (hub *Hub) sendTo(roomID, playerID string, message []byte) {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	if conn, ok := hub.connections[roomID][playerID]; ok {
		conn.trySend(message)
	}
}

// sendError 把遊戲錯誤在地化後只發給肇事玩家
func (hub *Hub) sendError(room *Room, playerID string, err error) {
	text := hub.data.Text(room.PlayerLang(playerID), ErrorKey(err))
	if raw, merr := json.Marshal(ErrorMessage{Type: "error", Message: text}); merr == nil {
		hub.sendTo(room.ID, playerID, raw)
	}
}

// dispatch 把一則客戶端訊息路由到對應的房間操作
//
// 封閉的訊息集合：place / set_ready / set_lang / shot / ping。
// 格式不合法的訊息在這裡變成只發給肇事者的錯誤，絕不以半解析的
// 狀態流進房間。
func (hub *Hub) dispatch(room *Room, playerID string, raw []byte) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		hub.sendError(room, playerID, ErrInvalidTarget)
		return
	}

	switch env.Type {
	case MsgPlace:
		var req PlaceRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			hub.sendError(room, playerID, ErrInvalidPlacement)
			return
		}
		out, err := room.Place(playerID, req.Board)
		if err != nil {
			hub.sendError(room, playerID, err)
			return
		}
		hub.deliver(room.ID, out)

	case MsgSetReady:
		var req ReadyRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			hub.sendError(room, playerID, ErrInvalidTarget)
			return
		}
		out, err := room.SetReady(playerID, req.Ready)
		if err != nil {
			hub.sendError(room, playerID, err)
			return
		}
		hub.deliver(room.ID, out)

	case MsgSetLang:
		var req LangRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			hub.sendError(room, playerID, ErrInvalidTarget)
			return
		}
		out, err := room.SetLanguage(playerID, req.Lang)
		if err != nil {
			hub.sendError(room, playerID, err)
			return
		}
		hub.deliver(room.ID, out)

	case MsgShot:
		var req ShotRequest
		if err := json.Unmarshal(env.Raw, &req); err != nil {
			hub.sendError(room, playerID, ErrInvalidTarget)
			return
		}
		x, y := req.Target()
		out, err := room.Shoot(playerID, x, y)
		if err != nil {
			hub.sendError(room, playerID, err)
			return
		}
		hub.deliver(room.ID, out)

	case MsgPing:
		if raw, err := json.Marshal(PongMessage{Type: "pong"}); err == nil {
			hub.sendTo(room.ID, playerID, raw)
		}

	default:
		hub.logger.Debug("收到未知訊息類型",
			"type", env.Type,
			"room_id", room.ID,
			"player_id", playerID)
	}
}

// ConnectionCount 取得各房間的連接數
func (hub *Hub) ConnectionCount() map[string]int {
	hub.mu.RLock()
	defer hub.mu.RUnlock()

	result := make(map[string]int)
	for roomID, conns := range hub.connections {
		result[roomID] = len(conns)
	}
	return result
}

// Stop 關閉所有連接
func (hub *Hub) Stop() {
	hub.mu.Lock()
	for _, roomConns := range hub.connections {
		for _, conn := range roomConns {
			conn.closeOnce.Do(func() {
				close(conn.Send)
			})
			conn.Conn.Close()
		}
	}
	hub.connections = make(map[string]map[string]*Connection)
	hub.mu.Unlock()

	hub.logger.Info("WebSocket Hub 已停止")
}

// trySend 非阻塞發送
//
// 緩衝滿代表客戶端消費太慢，丟棄訊息，不讓慢連線拖住房間操作。
func (c *Connection) trySend(message []byte) {
	select {
	case c.Send <- message:
	default:
		c.Hub.logger.Warn("連接緩衝區滿，訊息丟棄",
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
	}
}

// readPump 讀取客戶端訊息並分派到房間操作
//
// 60 秒讀取超時配合 writePump 的 54 秒 Ping；收到 Pong 就延長超時。
// 讀取迴圈退出（斷線或任何讀取錯誤）一律視為離開房間：觸發 Leave、
// 投遞棄權/通知訊息，房間空了就從註冊表移除。
func (c *Connection) readPump(room *Room) {
	defer func() {
		c.Hub.unregister(c)
		c.Conn.Close()

		out, empty := room.Leave(c.PlayerID)
		c.Hub.deliver(c.RoomID, out)
		if empty {
			c.Hub.manager.Remove(c.RoomID)
		}

		c.Hub.logger.Info("玩家已離開",
			"room_id", c.RoomID,
			"player_id", c.PlayerID)
	}()

	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		messageType, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				c.Hub.logger.Error("WebSocket 讀取錯誤",
					"error", err,
					"room_id", c.RoomID,
					"player_id", c.PlayerID)
			}
			return
		}

		if messageType == websocket.TextMessage {
			c.Hub.dispatch(room, c.PlayerID, message)
		}
	}
}

// writePump 寫入訊息到客戶端並定期發送 Ping
func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// 批量送出佇列中的訊息
			n := len(c.Send)
			for i := 0; i < n; i++ {
				if err := c.Conn.WriteMessage(websocket.TextMessage, <-c.Send); err != nil {
					return
				}
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
