package internal

import (
	"encoding/json"
	"sort"
)

// 系統設計問題：
//   如何以純函數的方式表達海戰棋的棋盤規則，讓遊戲邏輯可以獨立測試？
//
// 核心挑戰：
//   1. 艦隊驗證：船必須是直線、長度組合必須完全符合艦隊規格
//   2. 相鄰限制：不同的船之間不能相鄰（包含對角線）
//   3. 射擊判定：miss / hit / sunk / repeat 四種結果，擊沉時要回傳整艘船
//   4. 狀態重建：沉沒判定必須同時依賴佈陣圖與射擊圖，單看射擊圖不夠
//
// 設計方案：
//   ✅ 純函數 - 棋盤運算不持有任何鎖、不做任何 I/O
//   ✅ 雙棋盤 - 佈陣圖（不可變）+ 狀態圖（記錄 HIT/MISS）
//   ✅ DFS 連通分量 - 以 4-鄰域萃取每艘船
//   ✅ 排序多重集比對 - 艦隊長度完全匹配

// 棋盤格子的值。
//
// 佈陣圖只允許 Water/Ship；狀態圖另外允許 Hit/Miss（覆寫在原值之上）。
const (
	Water = 0
	Ship  = 1
	Hit   = 2
	Miss  = -1
)

// BoardSize 棋盤邊長（固定 10x10）
const BoardSize = 10

// Board 以 [y][x] 定址的方形棋盤
type Board [][]int

// Coord 棋盤座標
//
// 線路格式是 [x, y] 數對，客戶端以解構的方式取用。
type Coord struct {
	X int
	Y int
}

// MarshalJSON 編碼成 [x, y] 數對
func (c Coord) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]int{c.X, c.Y})
}

// UnmarshalJSON 解析 [x, y] 數對
func (c *Coord) UnmarshalJSON(data []byte) error {
	var pair [2]int
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	c.X, c.Y = pair[0], pair[1]
	return nil
}

// NewBoard 創建全為 Water 的空棋盤
func NewBoard() Board {
	b := make(Board, BoardSize)
	for y := range b {
		b[y] = make([]int, BoardSize)
	}
	return b
}

// Clone 複製棋盤
//
// 佈陣被接受時，狀態圖以佈陣圖的副本為起點，之後 HIT/MISS 只寫入副本，
// 原始佈陣圖自此不再變動。
func (b Board) Clone() Board {
	c := make(Board, len(b))
	for y, row := range b {
		c[y] = make([]int, len(row))
		copy(c[y], row)
	}
	return c
}

// InBounds 檢查座標是否在棋盤內
func InBounds(x, y int) bool {
	return x >= 0 && x < BoardSize && y >= 0 && y < BoardSize
}

// orthogonal 4-鄰域位移
var orthogonal = [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}}

// ShotOutcome 單次射擊的判定結果
type ShotOutcome string

const (
	OutcomeMiss    ShotOutcome = "miss"
	OutcomeHit     ShotOutcome = "hit"
	OutcomeSunk    ShotOutcome = "sunk"
	OutcomeRepeat  ShotOutcome = "repeat"
	OutcomeInvalid ShotOutcome = "invalid"
)

// ValidateFleet 驗證佈陣圖是否構成合法艦隊
//
// 驗證規則（整張棋盤一次通過或一次拒絕，沒有部分接受）：
//  1. 尺寸必須是 BoardSize x BoardSize，格值只允許 Water/Ship
//  2. 每個 4-連通的船分量必須落在同一行或同一列，且座標連續無空隙
//  3. 任一 Ship 格的 8-鄰域中若有 Ship，必須屬於同一分量
//     （這就是「不同船不得相鄰、含對角線」的實作方式）
//  4. 所有分量長度的多重集必須與艦隊規格完全相等
func ValidateFleet(board Board, fleet []int) bool {
	if len(board) != BoardSize {
		return false
	}
	for _, row := range board {
		if len(row) != BoardSize {
			return false
		}
		for _, v := range row {
			if v != Water && v != Ship {
				return false
			}
		}
	}

	// 萃取所有 4-連通分量
	visited := make([][]bool, BoardSize)
	for y := range visited {
		visited[y] = make([]bool, BoardSize)
	}

	var comps [][]Coord
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if board[y][x] == Ship && !visited[y][x] {
				comps = append(comps, collectComponent(board, visited, x, y))
			}
		}
	}

	// 每個分量必須是直線且連續
	var lengths []int
	for _, comp := range comps {
		if !isStraightRun(comp) {
			return false
		}
		lengths = append(lengths, len(comp))
	}

	// 不同分量不得在 8-鄰域內接觸
	compID := make(map[Coord]int)
	for i, comp := range comps {
		for _, c := range comp {
			compID[c] = i
		}
	}
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if board[y][x] != Ship {
				continue
			}
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					nx, ny := x+dx, y+dy
					if !InBounds(nx, ny) || board[ny][nx] != Ship {
						continue
					}
					if compID[Coord{nx, ny}] != compID[Coord{x, y}] {
						return false
					}
				}
			}
		}
	}

	// 艦隊長度多重集比對
	want := append([]int(nil), fleet...)
	sort.Ints(want)
	sort.Ints(lengths)
	if len(want) != len(lengths) {
		return false
	}
	for i := range want {
		if want[i] != lengths[i] {
			return false
		}
	}
	return true
}

// collectComponent 以 DFS 萃取 (sx, sy) 所在的 4-連通 Ship 分量
func collectComponent(board Board, visited [][]bool, sx, sy int) []Coord {
	stack := []Coord{{sx, sy}}
	visited[sy][sx] = true
	var comp []Coord
	for len(stack) > 0 {
		c := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		comp = append(comp, c)
		for _, d := range orthogonal {
			nx, ny := c.X+d[0], c.Y+d[1]
			if InBounds(nx, ny) && !visited[ny][nx] && board[ny][nx] == Ship {
				visited[ny][nx] = true
				stack = append(stack, Coord{nx, ny})
			}
		}
	}
	return comp
}

// isStraightRun 檢查分量是否為同行或同列的連續直線
func isStraightRun(comp []Coord) bool {
	xs := make(map[int]struct{})
	ys := make(map[int]struct{})
	for _, c := range comp {
		xs[c.X] = struct{}{}
		ys[c.Y] = struct{}{}
	}
	switch {
	case len(xs) == 1:
		return contiguous(comp, func(c Coord) int { return c.Y })
	case len(ys) == 1:
		return contiguous(comp, func(c Coord) int { return c.X })
	default:
		return false
	}
}

// contiguous 檢查分量在指定軸上的座標是否為連續整數
func contiguous(comp []Coord, axis func(Coord) int) bool {
	vals := make([]int, 0, len(comp))
	for _, c := range comp {
		vals = append(vals, axis(c))
	}
	sort.Ints(vals)
	for i := 1; i < len(vals); i++ {
		if vals[i] != vals[i-1]+1 {
			return false
		}
	}
	return true
}

// ShipComponent 回傳 (sx, sy) 所在船的完整 4-連通分量
//
// 若該格不是 Ship，回傳空集合。沉沒判定與擊沉廣播都依賴這個函數。
func ShipComponent(shipMap Board, sx, sy int) []Coord {
	if !InBounds(sx, sy) || shipMap[sy][sx] != Ship {
		return nil
	}
	visited := make([][]bool, BoardSize)
	for y := range visited {
		visited[y] = make([]bool, BoardSize)
	}
	return collectComponent(shipMap, visited, sx, sy)
}

// ApplyShot 對狀態圖套用一次射擊
//
// shipMap 是不可變的佈陣圖，stateBoard 是會被覆寫 HIT/MISS 的狀態圖。
// 判定規則：
//   - 座標越界 → invalid（呼叫端不得變更任何狀態、不消耗回合）
//   - 該格已是 HIT/MISS → repeat（狀態圖不變）
//   - 佈陣圖為 Ship → 標記 HIT，若該船所有格都已 HIT 則 sunk 並回傳整艘船
//   - 佈陣圖為 Water → 標記 MISS
func ApplyShot(stateBoard, shipMap Board, x, y int) (ShotOutcome, []Coord) {
	if !InBounds(x, y) {
		return OutcomeInvalid, nil
	}

	if cur := stateBoard[y][x]; cur == Hit || cur == Miss {
		return OutcomeRepeat, nil
	}

	if shipMap[y][x] == Ship {
		stateBoard[y][x] = Hit
		comp := ShipComponent(shipMap, x, y)
		for _, c := range comp {
			if stateBoard[c.Y][c.X] != Hit {
				return OutcomeHit, nil
			}
		}
		return OutcomeSunk, comp
	}

	stateBoard[y][x] = Miss
	return OutcomeMiss, nil
}

// AllShipsSunk 檢查佈陣圖上的每個 Ship 格是否都已在狀態圖上被 HIT
func AllShipsSunk(stateBoard, shipMap Board) bool {
	for y := 0; y < BoardSize; y++ {
		for x := 0; x < BoardSize; x++ {
			if shipMap[y][x] == Ship && stateBoard[y][x] != Hit {
				return false
			}
		}
	}
	return true
}
