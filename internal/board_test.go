package internal_test

import (
	"testing"

	"github.com/koopa0/battleship-server/internal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// boardFrom 以字串畫出棋盤：'#' 為船、其他為水
//
// 不足十行或不足十格的部分補水，讓測試案例只需要畫出有船的區域。
func boardFrom(rows ...string) internal.Board {
	b := internal.NewBoard()
	for y, row := range rows {
		for x, c := range row {
			if c == '#' {
				b[y][x] = internal.Ship
			}
		}
	}
	return b
}

// TestValidateFleet 測試艦隊驗證
func TestValidateFleet(t *testing.T) {
	tests := []struct {
		name  string
		board internal.Board
		fleet []int
		want  bool
	}{
		{
			name: "valid standard fleet",
			board: boardFrom(
				"#####.....",
				"..........",
				"####......",
				"..........",
				"###..###..",
				"..........",
				"##........",
			),
			fleet: []int{5, 4, 3, 3, 2},
			want:  true,
		},
		{
			name: "vertical ships accepted",
			board: boardFrom(
				"#.#.......",
				"#.#.......",
				"#.........",
			),
			fleet: []int{3, 2},
			want:  true,
		},
		{
			name: "gap in the middle of a run is two ships, multiset mismatch",
			board: boardFrom(
				"#.#.......",
			),
			fleet: []int{3},
			want:  false,
		},
		{
			name: "L-shaped component rejected",
			board: boardFrom(
				"##........",
				"#.........",
			),
			fleet: []int{3},
			want:  false,
		},
		{
			name: "diagonally adjacent ships rejected",
			board: boardFrom(
				"#.........",
				".#........",
			),
			fleet: []int{1, 1},
			want:  false,
		},
		{
			name: "side-adjacent distinct ships merge into one component, mismatch",
			board: boardFrom(
				"##........",
				"##........",
			),
			fleet: []int{2, 2},
			want:  false,
		},
		{
			name: "one empty cell of separation accepted",
			board: boardFrom(
				"#.#.......",
			),
			fleet: []int{1, 1},
			want:  true,
		},
		{
			name: "missing ship rejected",
			board: boardFrom(
				"##........",
			),
			fleet: []int{2, 1},
			want:  false,
		},
		{
			name: "extra ship rejected",
			board: boardFrom(
				"##...#....",
			),
			fleet: []int{2},
			want:  false,
		},
		{
			name: "wrong length rejected",
			board: boardFrom(
				"###.......",
			),
			fleet: []int{2},
			want:  false,
		},
		{
			name:  "empty board with empty fleet accepted",
			board: internal.NewBoard(),
			fleet: nil,
			want:  true,
		},
		{
			name:  "wrong dimensions rejected",
			board: internal.Board{{0, 0}, {0, 0}},
			fleet: nil,
			want:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, internal.ValidateFleet(tt.board, tt.fleet))
		})
	}
}

// TestValidateFleet_CellValues 狀態值（HIT/MISS）不允許出現在佈陣圖
func TestValidateFleet_CellValues(t *testing.T) {
	board := boardFrom("##........")
	board[5][5] = internal.Hit
	assert.False(t, internal.ValidateFleet(board, []int{2}))

	board[5][5] = internal.Miss
	assert.False(t, internal.ValidateFleet(board, []int{2}))
}

// TestValidateFleet_RotationInvariant 佈陣旋轉 90 度後驗證結果不變
func TestValidateFleet_RotationInvariant(t *testing.T) {
	board := boardFrom(
		"###.......",
		"..........",
		"#.#.......",
	)
	fleet := []int{3, 1, 1}
	require.True(t, internal.ValidateFleet(board, fleet))

	rotated := internal.NewBoard()
	for y := 0; y < internal.BoardSize; y++ {
		for x := 0; x < internal.BoardSize; x++ {
			rotated[x][internal.BoardSize-1-y] = board[y][x]
		}
	}
	assert.True(t, internal.ValidateFleet(rotated, fleet))
}

// TestApplyShot 測試射擊判定
func TestApplyShot(t *testing.T) {
	newBoards := func() (internal.Board, internal.Board) {
		shipMap := boardFrom(
			"##........",
			"..........",
			"....#.....",
		)
		return shipMap.Clone(), shipMap
	}

	t.Run("miss marks water", func(t *testing.T) {
		state, ships := newBoards()
		outcome, sunk := internal.ApplyShot(state, ships, 5, 5)
		assert.Equal(t, internal.OutcomeMiss, outcome)
		assert.Nil(t, sunk)
		assert.Equal(t, internal.Miss, state[5][5])
	})

	t.Run("hit on multi-cell ship", func(t *testing.T) {
		state, ships := newBoards()
		outcome, sunk := internal.ApplyShot(state, ships, 0, 0)
		assert.Equal(t, internal.OutcomeHit, outcome)
		assert.Nil(t, sunk)
		assert.Equal(t, internal.Hit, state[0][0])
	})

	t.Run("single-cell ship sinks immediately", func(t *testing.T) {
		state, ships := newBoards()
		outcome, sunk := internal.ApplyShot(state, ships, 4, 2)
		assert.Equal(t, internal.OutcomeSunk, outcome)
		assert.ElementsMatch(t, []internal.Coord{{X: 4, Y: 2}}, sunk)
	})

	t.Run("last cell of ship sinks regardless of order", func(t *testing.T) {
		orders := [][][2]int{
			{{0, 0}, {1, 0}},
			{{1, 0}, {0, 0}},
		}
		for _, order := range orders {
			state, ships := newBoards()
			outcome, _ := internal.ApplyShot(state, ships, order[0][0], order[0][1])
			require.Equal(t, internal.OutcomeHit, outcome)

			outcome, sunk := internal.ApplyShot(state, ships, order[1][0], order[1][1])
			assert.Equal(t, internal.OutcomeSunk, outcome)
			assert.ElementsMatch(t, []internal.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}}, sunk)
		}
	})

	t.Run("repeat on already resolved cell leaves board unchanged", func(t *testing.T) {
		state, ships := newBoards()
		_, _ = internal.ApplyShot(state, ships, 0, 0)
		before := state.Clone()

		for i := 0; i < 2; i++ {
			outcome, sunk := internal.ApplyShot(state, ships, 0, 0)
			assert.Equal(t, internal.OutcomeRepeat, outcome)
			assert.Nil(t, sunk)
			assert.Equal(t, before, state)
		}
	})

	t.Run("repeat on missed cell", func(t *testing.T) {
		state, ships := newBoards()
		_, _ = internal.ApplyShot(state, ships, 9, 9)
		outcome, _ := internal.ApplyShot(state, ships, 9, 9)
		assert.Equal(t, internal.OutcomeRepeat, outcome)
	})

	t.Run("out of bounds is invalid and mutates nothing", func(t *testing.T) {
		state, ships := newBoards()
		before := state.Clone()
		for _, c := range [][2]int{{-1, 0}, {0, -1}, {10, 0}, {0, 10}} {
			outcome, sunk := internal.ApplyShot(state, ships, c[0], c[1])
			assert.Equal(t, internal.OutcomeInvalid, outcome)
			assert.Nil(t, sunk)
		}
		assert.Equal(t, before, state)
	})
}

// TestAllShipsSunk 測試艦隊全滅判定
func TestAllShipsSunk(t *testing.T) {
	shipMap := boardFrom("##........")
	state := shipMap.Clone()

	assert.False(t, internal.AllShipsSunk(state, shipMap))

	_, _ = internal.ApplyShot(state, shipMap, 0, 0)
	assert.False(t, internal.AllShipsSunk(state, shipMap))

	_, _ = internal.ApplyShot(state, shipMap, 1, 0)
	assert.True(t, internal.AllShipsSunk(state, shipMap))
}

// TestShipComponent 測試船分量萃取
func TestShipComponent(t *testing.T) {
	shipMap := boardFrom(
		"###.......",
		"..........",
		"#.........",
	)

	comp := internal.ShipComponent(shipMap, 1, 0)
	assert.ElementsMatch(t, []internal.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}}, comp)

	assert.Empty(t, internal.ShipComponent(shipMap, 5, 5))
	assert.Empty(t, internal.ShipComponent(shipMap, -1, 0))
}
