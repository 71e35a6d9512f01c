package internal

import (
	"encoding/json"
	"fmt"
)

// 客戶端 → 服務器的訊息是鬆散的 JSON，在邊界一次解成封閉的型別集合，
// 不合法的訊息在這裡就被擋下，不會以半解析的狀態流進 Room。

// Envelope 客戶端訊息的外層信封
type Envelope struct {
	Type string `json:"type"`
	Raw  json.RawMessage
}

// 客戶端訊息型別
const (
	MsgJoin     = "join"
	MsgPlace    = "place"
	MsgSetReady = "set_ready"
	MsgSetLang  = "set_lang"
	MsgShot     = "shot"
	MsgPing     = "ping"
)

// DecodeEnvelope 解析訊息信封，保留原始位元組供第二段解析
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil {
		return Envelope{}, fmt.Errorf("解析訊息失敗: %w", err)
	}
	if head.Type == "" {
		return Envelope{}, fmt.Errorf("訊息缺少 type 欄位")
	}
	return Envelope{Type: head.Type, Raw: raw}, nil
}

// JoinRequest 加入房間的握手訊息（連線後的第一則）
type JoinRequest struct {
	Name string `json:"name"`
	Lang string `json:"lang"`
}

// PlaceRequest 佈陣訊息，棋盤為 0/1 矩陣
type PlaceRequest struct {
	Board [][]int `json:"board"`
}

// ReadyRequest 準備狀態切換
type ReadyRequest struct {
	Ready bool `json:"ready"`
}

// LangRequest 語言切換
type LangRequest struct {
	Lang string `json:"lang"`
}

// ShotRequest 射擊目標
//
// 座標用指標表示「欄位缺席」：缺席視同越界，走 invalid 路徑而不是打到 (0,0)。
type ShotRequest struct {
	X *int `json:"x"`
	Y *int `json:"y"`
}

// Target 回傳射擊座標，欄位缺席時回傳棋盤外的座標
func (r ShotRequest) Target() (int, int) {
	x, y := -1, -1
	if r.X != nil {
		x = *r.X
	}
	if r.Y != nil {
		y = *r.Y
	}
	return x, y
}

// 服務器 → 客戶端的訊息。欄位名稱即線上協議，客戶端按名稱取值。

// InitMessage 加入成功後發給新玩家
type InitMessage struct {
	Type      string            `json:"type"` // "init"
	RoomID    string            `json:"room_id"`
	PID       string            `json:"pid"`
	UI        map[string]string `json:"ui"`
	Fleet     []int             `json:"fleet"`
	BoardSize int               `json:"board_size"`
}

// InitUIMessage 語言切換後發給請求者的新 UI 資料
type InitUIMessage struct {
	Type  string            `json:"type"` // "init_ui"
	UI    map[string]string `json:"ui"`
	Fleet []int             `json:"fleet"`
}

// PlayerState 狀態快照中的單一玩家
type PlayerState struct {
	Name   string `json:"name"`
	Ready  bool   `json:"ready"`
	Placed bool   `json:"placed"`
	Lang   string `json:"lang"`
}

// StateMessage 房間狀態快照，任何影響房間的變更後廣播
type StateMessage struct {
	Type     string        `json:"type"` // "state"
	Phase    Phase         `json:"phase"`
	TurnName string        `json:"turn_name,omitempty"`
	Players  []PlayerState `json:"players"`
	Winner   string        `json:"winner,omitempty"`
}

// PhaseMessage 階段轉換通知
type PhaseMessage struct {
	Type  string `json:"type"` // "phase"
	Phase Phase  `json:"phase"`
}

// TurnMessage 回合通知（逐玩家在地化）
type TurnMessage struct {
	Type     string `json:"type"` // "turn"
	YourTurn bool   `json:"your_turn"`
	Text     string `json:"text"`
}

// ShotResultMessage 每次射擊後發給雙方
type ShotResultMessage struct {
	Type       string      `json:"type"` // "shot_result"
	X          int         `json:"x"`
	Y          int         `json:"y"`
	Result     ShotOutcome `json:"result"`
	SunkCells  []Coord     `json:"sunk_cells,omitempty"`
	FiredByYou bool        `json:"fired_by_you"`
	YourTurn   bool        `json:"your_turn"`
	ResultText string      `json:"result_text"`
	Phase      Phase       `json:"phase"`
	Winner     string      `json:"winner,omitempty"`
}

// GameOverMessage 終局訊息（逐玩家在地化）
type GameOverMessage struct {
	Type    string `json:"type"` // "game_over"
	Message string `json:"message"`
}

// ErrorMessage 只發給肇事連線的錯誤
type ErrorMessage struct {
	Type    string `json:"type"` // "error"
	Message string `json:"message"`
}

// InfoMessage 提示訊息
type InfoMessage struct {
	Type    string `json:"type"` // "info"
	Message string `json:"message"`
}

// PongMessage 應用層 ping 的回應
type PongMessage struct {
	Type string `json:"type"` // "pong"
}
