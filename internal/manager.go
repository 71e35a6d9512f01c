package internal

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"
)

// roomIDPattern 房間編號的格式：固定四位數字
var roomIDPattern = regexp.MustCompile(`^\d{4}$`)

// roomIDRetries 產生不重複編號的重試上限
//
// 四位數字只有一萬個組合，活躍房間接近上限時衝突機率會升高；
// 重試耗盡後接受低機率的重複，而不是讓創建失敗。
const roomIDRetries = 2000

// Manager 房間註冊表
//
// 行程內的全域狀態：房間在第一次創建時進表，最後一人離開時出表。
// 清理迴圈只兜底回收建立後始終無人加入的房間。
type Manager struct {
	rooms  map[string]*Room
	mu     sync.RWMutex
	data   *GameData
	logger *slog.Logger
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewManager 創建房間註冊表
func NewManager(data *GameData, logger *slog.Logger) *Manager {
	m := &Manager{
		rooms:  make(map[string]*Room),
		data:   data,
		logger: logger,
		stopCh: make(chan struct{}),
	}

	m.wg.Add(1)
	go m.cleanupLoop()

	return m
}

// CreateRoom 創建房間並回傳
//
// 編號為四位數字字串，重試至不與現存房間衝突為止（上限 roomIDRetries）。
func (m *Manager) CreateRoom(defaultLang string) *Room {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := genRoomID()
	for i := 0; i < roomIDRetries; i++ {
		if _, exists := m.rooms[id]; !exists {
			break
		}
		id = genRoomID()
	}

	room := NewRoom(id, defaultLang, m.data)
	m.rooms[id] = room

	m.logger.Info("房間已創建",
		"room_id", id,
		"default_lang", room.DefaultLang)

	return room
}

// ValidRoomID 檢查房間編號格式
func ValidRoomID(id string) bool {
	return roomIDPattern.MatchString(id)
}

// GetRoom 查找房間
//
// 格式不符或查無此房都回傳 ErrInvalidRoom，在任何 session 狀態
// 建立之前就把非法加入擋下。
func (m *Manager) GetRoom(id string) (*Room, error) {
	if !ValidRoomID(id) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, id)
	}

	m.mu.RLock()
	room, exists := m.rooms[id]
	m.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRoom, id)
	}
	return room, nil
}

// Remove 移除房間（最後一人離開時由 session 協調器呼叫）
func (m *Manager) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.rooms[id]; !exists {
		return
	}
	delete(m.rooms, id)

	m.logger.Info("房間已移除", "room_id", id)
}

// RoomCount 取得房間數量
func (m *Manager) RoomCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

// Stats 取得統計資訊
func (m *Manager) Stats() map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	phaseCount := make(map[Phase]int)
	totalPlayers := 0
	for _, room := range m.rooms {
		phaseCount[room.Phase()]++
		totalPlayers += room.PlayerCount()
	}

	return map[string]any{
		"total_rooms":   len(m.rooms),
		"total_players": totalPlayers,
		"by_phase":      phaseCount,
	}
}

// cleanupLoop 定期清理過期房間
func (m *Manager) cleanupLoop() {
	defer m.wg.Done()

	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stopCh:
			return
		}
	}
}

// Cleanup 回收過期的空房間（公開供測試使用）
func (m *Manager) Cleanup() {
	m.mu.RLock()
	var toRemove []string
	for id, room := range m.rooms {
		if room.IsExpired() {
			toRemove = append(toRemove, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range toRemove {
		m.Remove(id)
		m.logger.Info("空房間已過期清理", "room_id", id)
	}
}

// Stop 停止註冊表（等待清理迴圈退出）
func (m *Manager) Stop() {
	close(m.stopCh)
	m.wg.Wait()

	m.logger.Info("房間註冊表已停止")
}

// genRoomID 產生四位數字的房間編號
//
// 逐位拒絕取樣：只接受 [0, 250) 的位元組再取 %10，0-9 才會等機率出現。
func genRoomID() string {
	digits := make([]byte, 4)
	b := make([]byte, 1)
	for i := 0; i < len(digits); {
		if _, err := rand.Read(b); err != nil {
			// 隨機讀取失敗時退回時間作為隨機源
			return fmt.Sprintf("%04d", time.Now().UnixNano()%10000)
		}
		if b[0] >= 250 {
			continue
		}
		digits[i] = '0' + b[0]%10
		i++
	}
	return string(digits)
}
