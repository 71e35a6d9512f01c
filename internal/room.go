package internal

import (
	"crypto/rand"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 系統設計問題：
//   兩條獨立驅動的連線共享同一個房間，如何在交錯操作下維持狀態一致？
//
// 核心挑戰：
//   1. 狀態管理：lobby → battle → game_over 單向轉換，不可回退、不可跳過
//   2. 並發控制：兩位玩家可能同時佈陣、同時按準備，甚至射擊與離線互相競爭
//   3. 回合仲裁：battle 階段只有回合持有者能射擊，miss 才換手
//   4. I/O 分離：房間本身絕不做網路 I/O，每個操作回傳「要發給誰什麼」的清單
//
// 設計方案：
//   ✅ 有限狀態機（FSM）- 規範階段轉換
//   ✅ 單一 RWMutex - 每個操作都是對同房間的原子單元，跨房間互不阻塞
//   ✅ 出站計畫（Outbound）- 在臨界區內算好訊息，臨界區外投遞
//   ✅ crypto/rand - 公平選出先手

// Phase 房間階段
//
// 轉換規則（單調，永不回退）：
//
//	lobby → battle → game_over
//
//   - lobby → battle：兩位玩家都已佈陣且都按下準備
//   - battle → game_over：一方艦隊全滅，或一方中途離線（留下的人獲勝）
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseBattle   Phase = "battle"
	PhaseGameOver Phase = "game_over"
)

// MaxPlayers 每個房間固定兩位玩家
const MaxPlayers = 2

// emptyRoomTTL 空房間的存活時間（建立後始終無人加入的房間由清理迴圈回收）
const emptyRoomTTL = 10 * time.Minute

// 遊戲規則層的錯誤。全部可在 session 邊界恢復：
// 轉成在地化錯誤訊息發給肇事連線，房間狀態不變，對手不受影響。
var (
	ErrInvalidRoom      = errors.New("房間編號無效")
	ErrNameRequired     = errors.New("名稱不能為空")
	ErrNameTaken        = errors.New("名稱已被使用")
	ErrRoomFull         = errors.New("房間已滿")
	ErrWrongPhase       = errors.New("當前階段不允許此操作")
	ErrUnknownPlayer    = errors.New("玩家不在房間內")
	ErrNotPlaced        = errors.New("尚未完成佈陣")
	ErrInvalidPlacement = errors.New("佈陣不合法")
	ErrNotYourTurn      = errors.New("還沒輪到你")
	ErrInvalidTarget    = errors.New("射擊目標無效")
)

// ErrorKey 把遊戲錯誤映射成 UI 字串鍵，供 session 邊界在地化
func ErrorKey(err error) string {
	switch {
	case errors.Is(err, ErrNameRequired):
		return "enter_name"
	case errors.Is(err, ErrNameTaken):
		return "name_taken"
	case errors.Is(err, ErrRoomFull):
		return "room_full"
	case errors.Is(err, ErrInvalidPlacement), errors.Is(err, ErrNotPlaced):
		return "invalid_placement"
	default:
		return "invalid_move"
	}
}

// Outbound 單筆出站訊息：發給誰、發什麼
//
// To 為玩家 ID；空字串代表廣播給房內所有玩家。
// 訊息在臨界區內建好（含逐玩家在地化），投遞永遠發生在臨界區外。
type Outbound struct {
	To  string
	Msg any
}

// Player 玩家 session
//
// 佈陣圖（shipMap）在驗證通過後不再變動；狀態圖（stateBoard）以佈陣圖的
// 副本起始，射擊判定把 HIT/MISS 覆寫進去。兩張圖一起才能判定沉沒。
//
// 艦隊規格在加入時定格：之後切換語言只影響 UI 字串，不改變佈陣要求。
type Player struct {
	ID     string
	Name   string
	Lang   string
	Ready  bool
	Placed bool

	fleet      []int
	shipMap    Board
	stateBoard Board
}

// Room 遊戲房間
//
// 所有可變狀態（階段、回合、兩個玩家 session）由單一 RWMutex 保護，
// 每個操作都是原子單元。持鎖期間不做任何 I/O。
type Room struct {
	ID          string
	DefaultLang string
	CreatedAt   time.Time

	data *GameData

	mu         sync.RWMutex
	phase      Phase
	players    map[string]*Player
	turn       string // battle 階段的回合持有者，其餘階段為空
	winner     string // 勝者名稱，game_over 前為空
	lastActive time.Time
}

// NewRoom 創建新房間
func NewRoom(id, defaultLang string, data *GameData) *Room {
	now := time.Now()
	return &Room{
		ID:          id,
		DefaultLang: data.Resolve(defaultLang, DefaultLang),
		CreatedAt:   now,
		data:        data,
		phase:       PhaseLobby,
		players:     make(map[string]*Player),
		lastActive:  now,
	}
}

// Join 加入玩家
//
// 拒絕條件：非 lobby 階段、房間已滿、名稱為空、名稱與現有玩家
// 不分大小寫相同。成功時回傳新玩家 ID 與出站計畫（init 給新玩家 +
// 狀態快照廣播）。
func (r *Room) Join(name, lang string) (string, []Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return "", nil, ErrWrongPhase
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return "", nil, ErrNameRequired
	}

	if len(r.players) >= MaxPlayers {
		return "", nil, ErrRoomFull
	}

	for _, p := range r.players {
		if strings.EqualFold(p.Name, name) {
			return "", nil, ErrNameTaken
		}
	}

	lang = r.data.Resolve(lang, r.DefaultLang)
	pid := newPlayerID()

	r.players[pid] = &Player{
		ID:    pid,
		Name:  name,
		Lang:  lang,
		fleet: r.data.Fleet(lang),
	}
	r.touch()

	out := []Outbound{
		{To: pid, Msg: InitMessage{
			Type:      "init",
			RoomID:    r.ID,
			PID:       pid,
			UI:        r.data.UI(lang),
			Fleet:     r.data.Fleet(lang),
			BoardSize: BoardSize,
		}},
		{Msg: r.stateMessage()},
	}
	return pid, out, nil
}

// Place 提交佈陣
//
// 只在 lobby 階段允許。棋盤必須通過艦隊驗證（以玩家加入時定格的艦隊
// 規格），驗證失敗時狀態完全不變。成功時佈陣圖定格，狀態圖以其副本起始。
func (r *Room) Place(playerID string, board [][]int) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return nil, ErrWrongPhase
	}

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}

	if board == nil || !ValidateFleet(Board(board), p.fleet) {
		return nil, ErrInvalidPlacement
	}

	p.shipMap = Board(board).Clone()
	p.stateBoard = p.shipMap.Clone()
	p.Placed = true
	r.touch()

	return []Outbound{{Msg: r.stateMessage()}}, nil
}

// SetReady 切換準備狀態
//
// ready=true 要求已完成佈陣。當兩位玩家都存在且都準備好，房間進入
// battle 階段：以 crypto/rand 均勻選出先手，廣播 phase 與新快照，
// 並對每位玩家發送在地化的回合通知。
func (r *Room) SetReady(playerID string, ready bool) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseLobby {
		return nil, ErrWrongPhase
	}

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}

	if ready && !p.Placed {
		return nil, ErrNotPlaced
	}

	p.Ready = ready
	r.touch()

	out := []Outbound{{Msg: r.stateMessage()}}

	// 這段判斷和狀態翻轉在同一個臨界區內完成，兩位玩家同時按準備
	// 也只會有一次 lobby → battle 轉換。
	if len(r.players) == MaxPlayers && r.allReady() {
		r.phase = PhaseBattle
		r.turn = r.pickFirstTurn()

		out = append(out,
			Outbound{Msg: PhaseMessage{Type: "phase", Phase: PhaseBattle}},
			Outbound{Msg: r.stateMessage()},
		)
		for pid, pl := range r.players {
			key := "opponent_turn"
			if pid == r.turn {
				key = "your_turn"
			}
			out = append(out, Outbound{To: pid, Msg: TurnMessage{
				Type:     "turn",
				YourTurn: pid == r.turn,
				Text:     r.data.Text(pl.Lang, key),
			}})
		}
	}

	return out, nil
}

// Shoot 對對手棋盤射擊
//
// 只有 battle 階段的回合持有者能射擊。回合規則：miss 換手；
// hit / sunk / repeat 保留回合 —— 對已判定過的格子重複射擊不消耗
// 回合也不推進遊戲。射擊後若對手艦隊全滅，進入 game_over 並以
// 射擊者名稱定勝。
func (r *Room) Shoot(playerID string, x, y int) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.phase != PhaseBattle {
		return nil, ErrWrongPhase
	}
	if r.turn != playerID {
		return nil, ErrNotYourTurn
	}

	shooter, ok := r.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}
	opponent := r.opponentOf(playerID)
	if opponent == nil || opponent.shipMap == nil {
		return nil, ErrInvalidTarget
	}

	outcome, sunkCells := ApplyShot(opponent.stateBoard, opponent.shipMap, x, y)
	if outcome == OutcomeInvalid {
		return nil, ErrInvalidTarget
	}
	r.touch()

	if outcome == OutcomeMiss {
		r.turn = opponent.ID
	}

	gameOver := AllShipsSunk(opponent.stateBoard, opponent.shipMap)
	if gameOver {
		r.phase = PhaseGameOver
		r.winner = shooter.Name
		r.turn = ""
	}

	resultKey := map[ShotOutcome]string{
		OutcomeMiss:   "miss",
		OutcomeHit:    "hit",
		OutcomeSunk:   "sunk",
		OutcomeRepeat: "invalid_move",
	}[outcome]

	var out []Outbound
	for pid, pl := range r.players {
		out = append(out, Outbound{To: pid, Msg: ShotResultMessage{
			Type:       "shot_result",
			X:          x,
			Y:          y,
			Result:     outcome,
			SunkCells:  sunkCells,
			FiredByYou: pid == playerID,
			YourTurn:   r.phase == PhaseBattle && r.turn == pid,
			ResultText: r.data.Text(pl.Lang, resultKey),
			Phase:      r.phase,
			Winner:     r.winner,
		}})
	}
	out = append(out, Outbound{Msg: r.stateMessage()})

	if gameOver {
		for pid, pl := range r.players {
			key := "you_lose"
			if pid == playerID {
				key = "you_win"
			}
			out = append(out, Outbound{To: pid, Msg: GameOverMessage{
				Type:    "game_over",
				Message: r.data.Text(pl.Lang, key),
			}})
		}
	}

	return out, nil
}

// Leave 移除玩家
//
// battle 階段離開視同棄權：留下的玩家立刻獲勝，房間進入 game_over。
// lobby 或已 game_over 時只通知對手，階段不變。回傳 empty=true 時
// 房間已無人，呼叫端應將其從註冊表移除。
func (r *Room) Leave(playerID string) (out []Outbound, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[playerID]; !ok {
		return nil, len(r.players) == 0
	}

	delete(r.players, playerID)
	r.touch()

	if len(r.players) == 0 {
		return nil, true
	}

	if r.phase == PhaseBattle {
		remaining := r.anyPlayer()
		r.phase = PhaseGameOver
		r.winner = remaining.Name
		r.turn = ""

		out = append(out, Outbound{To: remaining.ID, Msg: GameOverMessage{
			Type:    "game_over",
			Message: r.data.Text(remaining.Lang, "you_win"),
		}})
	} else {
		for pid, pl := range r.players {
			out = append(out, Outbound{To: pid, Msg: InfoMessage{
				Type:    "info",
				Message: r.data.Text(pl.Lang, "opponent_left"),
			}})
		}
	}

	out = append(out, Outbound{Msg: r.stateMessage()})
	return out, false
}

// SetLanguage 切換玩家語言
//
// 純中繼資料更新，任何階段都允許。未知語言代碼退回玩家原本的語言，
// 永不失敗。回傳新語言的 UI 字串給請求者（艦隊維持加入時定格的規格），
// 並廣播新快照。
func (r *Room) SetLanguage(playerID, lang string) ([]Outbound, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[playerID]
	if !ok {
		return nil, ErrUnknownPlayer
	}

	p.Lang = r.data.Resolve(lang, p.Lang)
	r.touch()

	return []Outbound{
		{To: playerID, Msg: InitUIMessage{
			Type:  "init_ui",
			UI:    r.data.UI(p.Lang),
			Fleet: p.fleet,
		}},
		{Msg: r.stateMessage()},
	}, nil
}

// Snapshot 取得當前狀態快照
func (r *Room) Snapshot() StateMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stateMessage()
}

// Phase 取得當前階段
func (r *Room) Phase() Phase {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.phase
}

// Turn 取得回合持有者 ID（非 battle 階段為空字串）
func (r *Room) Turn() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.turn
}

// Winner 取得勝者名稱（未定勝前為空字串）
func (r *Room) Winner() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.winner
}

// PlayerCount 取得玩家數量
func (r *Room) PlayerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}

// PlayerLang 取得玩家語言，玩家不存在時退回房間預設語言
func (r *Room) PlayerLang(playerID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.players[playerID]; ok {
		return p.Lang
	}
	return r.DefaultLang
}

// IsExpired 檢查房間是否該被清理迴圈回收
//
// 正常的生命週期是「最後一人離開即拆除」；這裡只兜底處理
// 建立後始終無人加入的房間（HTTP 端點可以產生這種房間）。
func (r *Room) IsExpired() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players) == 0 && time.Since(r.lastActive) > emptyRoomTTL
}

// stateMessage 組出狀態快照（呼叫端需持鎖）
func (r *Room) stateMessage() StateMessage {
	players := make([]PlayerState, 0, len(r.players))
	for _, p := range r.players {
		players = append(players, PlayerState{
			Name:   p.Name,
			Ready:  p.Ready,
			Placed: p.Placed,
			Lang:   p.Lang,
		})
	}

	turnName := ""
	if r.turn != "" {
		if p, ok := r.players[r.turn]; ok {
			turnName = p.Name
		}
	}

	return StateMessage{
		Type:     "state",
		Phase:    r.phase,
		TurnName: turnName,
		Players:  players,
		Winner:   r.winner,
	}
}

// allReady 檢查所有玩家是否都已準備（呼叫端需持鎖）
func (r *Room) allReady() bool {
	for _, p := range r.players {
		if !p.Ready {
			return false
		}
	}
	return true
}

// opponentOf 取得對手（呼叫端需持鎖）
func (r *Room) opponentOf(playerID string) *Player {
	for pid, p := range r.players {
		if pid != playerID {
			return p
		}
	}
	return nil
}

// anyPlayer 取得任一玩家（呼叫端需持鎖；用於只剩一人的情況）
func (r *Room) anyPlayer() *Player {
	for _, p := range r.players {
		return p
	}
	return nil
}

// pickFirstTurn 均勻隨機選出先手（呼叫端需持鎖）
func (r *Room) pickFirstTurn() string {
	ids := make([]string, 0, len(r.players))
	for pid := range r.players {
		ids = append(ids, pid)
	}
	return ids[randInt(len(ids))]
}

// touch 更新最後活動時間（呼叫端需持鎖）
func (r *Room) touch() {
	r.lastActive = time.Now()
}

// newPlayerID 產生一次性的玩家 ID
func newPlayerID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// randInt 生成 [0, max) 的隨機數
func randInt(max int) int {
	b := make([]byte, 1)
	if _, err := rand.Read(b); err != nil {
		// 隨機讀取失敗時退回時間作為隨機源
		return int(time.Now().UnixNano()) % max
	}
	return int(b[0]) % max
}
