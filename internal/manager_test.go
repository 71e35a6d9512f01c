package internal_test

import (
	"log/slog"
	"os"
	"regexp"
	"testing"

	"github.com/koopa0/battleship-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func newTestManager(t *testing.T) *internal.Manager {
	t.Helper()
	m := internal.NewManager(internal.DefaultGameData(), testLogger())
	t.Cleanup(m.Stop)
	return m
}

// TestManager_CreateRoom 測試創建房間
func TestManager_CreateRoom(t *testing.T) {
	m := newTestManager(t)

	t.Run("id is a four digit string", func(t *testing.T) {
		room := m.CreateRoom("en")
		assert.Regexp(t, regexp.MustCompile(`^\d{4}$`), room.ID)
		assert.Equal(t, internal.PhaseLobby, room.Phase())
		assert.Equal(t, "en", room.DefaultLang)
	})

	t.Run("unknown default language falls back", func(t *testing.T) {
		room := m.CreateRoom("xx")
		assert.Equal(t, internal.DefaultLang, room.DefaultLang)
	})

	t.Run("ids are unique among live rooms", func(t *testing.T) {
		seen := make(map[string]bool)
		digits := make(map[byte]int)
		for i := 0; i < 200; i++ {
			room := m.CreateRoom("en")
			assert.False(t, seen[room.ID], "duplicate id %s", room.ID)
			seen[room.ID] = true
			for j := 0; j < len(room.ID); j++ {
				digits[room.ID[j]]++
			}
		}

		// 800 次抽取下每個數字都該出現過（缺席機率約 10^-37）
		for d := byte('0'); d <= '9'; d++ {
			assert.Positive(t, digits[d], "digit %c never drawn", d)
		}
	})
}

// TestManager_GetRoom 測試查找房間
func TestManager_GetRoom(t *testing.T) {
	m := newTestManager(t)
	room := m.CreateRoom("en")

	t.Run("existing room found", func(t *testing.T) {
		got, err := m.GetRoom(room.ID)
		require.NoError(t, err)
		assert.Same(t, room, got)
	})

	t.Run("malformed id rejected before lookup", func(t *testing.T) {
		for _, id := range []string{"", "abc", "12345", "12a4", "12 4"} {
			_, err := m.GetRoom(id)
			assert.ErrorIs(t, err, internal.ErrInvalidRoom, "id %q", id)
		}
	})

	t.Run("unknown id rejected", func(t *testing.T) {
		// 找一個必然不存在的編號
		m2 := newTestManager(t)
		_, err := m2.GetRoom("0000")
		assert.ErrorIs(t, err, internal.ErrInvalidRoom)
	})
}

// TestManager_Remove 測試移除房間
func TestManager_Remove(t *testing.T) {
	m := newTestManager(t)
	room := m.CreateRoom("en")

	m.Remove(room.ID)
	_, err := m.GetRoom(room.ID)
	assert.ErrorIs(t, err, internal.ErrInvalidRoom)

	// 重複移除是安全的
	m.Remove(room.ID)
	assert.Equal(t, 0, m.RoomCount())
}

// TestManager_Cleanup 清理迴圈只回收過期的空房間
func TestManager_Cleanup(t *testing.T) {
	m := newTestManager(t)

	// 剛建立的空房間未過期，有人的房間永不過期
	emptyRoom := m.CreateRoom("en")
	occupied := m.CreateRoom("en")
	_, _, err := occupied.Join("Alice", "en")
	require.NoError(t, err)

	m.Cleanup()
	_, err = m.GetRoom(emptyRoom.ID)
	assert.NoError(t, err)
	_, err = m.GetRoom(occupied.ID)
	assert.NoError(t, err)
}

// TestManager_Stats 測試統計資訊
func TestManager_Stats(t *testing.T) {
	m := newTestManager(t)

	room := m.CreateRoom("en")
	_, _, err := room.Join("Alice", "en")
	require.NoError(t, err)
	m.CreateRoom("en")

	stats := m.Stats()
	assert.Equal(t, 2, stats["total_rooms"])
	assert.Equal(t, 1, stats["total_players"])

	byPhase, ok := stats["by_phase"].(map[internal.Phase]int)
	require.True(t, ok)
	assert.Equal(t, 2, byPhase[internal.PhaseLobby])
}

// TestValidRoomID 測試房間編號格式
func TestValidRoomID(t *testing.T) {
	assert.True(t, internal.ValidRoomID("0000"))
	assert.True(t, internal.ValidRoomID("9341"))
	assert.False(t, internal.ValidRoomID("123"))
	assert.False(t, internal.ValidRoomID("12345"))
	assert.False(t, internal.ValidRoomID("abcd"))
	assert.False(t, internal.ValidRoomID(""))
}
