package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultLang 找不到語言時的最終退路
const DefaultLang = "en"

// Ships 艦隊規格
type Ships struct {
	Fleet []int `json:"fleet" yaml:"fleet"`
}

// LangData 單一語言的 UI 字串與艦隊規格
type LangData struct {
	UI    map[string]string `json:"ui" yaml:"ui"`
	Ships Ships             `json:"ships" yaml:"ships"`
}

// GameData 語言 → {UI 字串, 艦隊規格} 的查表
//
// 啟動後唯讀，所有查詢都帶退路（未知語言回退到 default），因此查詢永遠不會失敗。
type GameData struct {
	langs map[string]LangData
}

// NewGameData 以給定的語言表建立 GameData
//
// 呼叫端需保證表內含 DefaultLang 條目，所有退路查詢都依賴它。
func NewGameData(langs map[string]LangData) *GameData {
	normalized := make(map[string]LangData, len(langs))
	for code, ld := range langs {
		normalized[normalizeLang(code)] = ld
	}
	return &GameData{langs: normalized}
}

// DefaultGameData 內建的語言表（en / uk）
func DefaultGameData() *GameData {
	defaultFleet := []int{5, 4, 3, 3, 2}
	return &GameData{
		langs: map[string]LangData{
			"en": {
				UI: map[string]string{
					"enter_name":        "Enter name",
					"place_ships":       "Place your ships",
					"waiting_opponent":  "Waiting for opponent...",
					"lobby_ready_hint":  "Press Ready when your fleet is placed",
					"fleet_label":       "Fleet",
					"your_turn":         "Your turn",
					"opponent_turn":     "Opponent's turn",
					"miss":              "Miss",
					"hit":               "Hit!",
					"sunk":              "Sunk!",
					"you_win":           "You win!",
					"you_lose":          "You lose",
					"opponent_left":     "Opponent left the game",
					"invalid_move":      "Invalid move",
					"invalid_placement": "Invalid placement",
					"room_full":         "Room is full",
					"name_taken":        "Name already taken",
				},
				Ships: Ships{Fleet: defaultFleet},
			},
			"uk": {
				UI: map[string]string{
					"enter_name":        "Введіть ім'я",
					"place_ships":       "Розставте кораблі",
					"waiting_opponent":  "Очікування суперника...",
					"lobby_ready_hint":  "Натисніть Готовий, коли флот розставлено",
					"fleet_label":       "Флот",
					"your_turn":         "Ваш хід",
					"opponent_turn":     "Хід суперника",
					"miss":              "Мимо",
					"hit":               "Влучив!",
					"sunk":              "Потопив!",
					"you_win":           "Ви перемогли!",
					"you_lose":          "Ви програли",
					"opponent_left":     "Суперник покинув гру",
					"invalid_move":      "Недопустимий хід",
					"invalid_placement": "Недопустиме розташування",
					"room_full":         "Кімната заповнена",
					"name_taken":        "Ім'я вже зайняте",
				},
				Ships: Ships{Fleet: defaultFleet},
			},
		},
	}
}

// LoadGameData 從 YAML 檔載入語言表，覆蓋在內建預設之上
//
// 檔案格式：頂層 map，鍵為語言代碼，值為 {ui: {...}, ships: {fleet: [...]}}。
// 檔案中未出現的語言保留內建版本，讓部署只需要提供增量。
func LoadGameData(path string) (*GameData, error) {
	data := DefaultGameData()
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("讀取語言表失敗: %w", err)
	}

	var overlay map[string]LangData
	if err := yaml.Unmarshal(raw, &overlay); err != nil {
		return nil, fmt.Errorf("解析語言表失敗: %w", err)
	}

	for code, ld := range overlay {
		code = normalizeLang(code)
		if len(ld.Ships.Fleet) == 0 {
			ld.Ships.Fleet = data.langs[DefaultLang].Ships.Fleet
		}
		data.langs[code] = ld
	}

	if _, ok := data.langs[DefaultLang]; !ok {
		return nil, fmt.Errorf("語言表缺少 default 語言 %q", DefaultLang)
	}
	return data, nil
}

// normalizeLang 語言代碼正規化（trim + 小寫）
func normalizeLang(lang string) string {
	return strings.ToLower(strings.TrimSpace(lang))
}

// Has 檢查語言是否存在（代碼先正規化）
func (g *GameData) Has(lang string) bool {
	_, ok := g.langs[normalizeLang(lang)]
	return ok
}

// Resolve 正規化語言代碼，未知語言回退到 fallback，fallback 也未知則回退到 en
func (g *GameData) Resolve(lang, fallback string) string {
	lang = normalizeLang(lang)
	if _, ok := g.langs[lang]; ok {
		return lang
	}
	fallback = normalizeLang(fallback)
	if _, ok := g.langs[fallback]; ok {
		return fallback
	}
	return DefaultLang
}

// UI 取得語言的 UI 字串表（帶退路）
func (g *GameData) UI(lang string) map[string]string {
	return g.langs[g.Resolve(lang, DefaultLang)].UI
}

// Fleet 取得語言的艦隊規格（帶退路）
func (g *GameData) Fleet(lang string) []int {
	return g.langs[g.Resolve(lang, DefaultLang)].Ships.Fleet
}

// Data 取得語言的完整資料（帶退路）
func (g *GameData) Data(lang string) LangData {
	return g.langs[g.Resolve(lang, DefaultLang)]
}

// Text 取得單一 UI 字串，查不到鍵時回傳鍵本身
//
// 回傳鍵本身而非空字串，讓漏翻譯在畫面上直接可見。
func (g *GameData) Text(lang, key string) string {
	if s, ok := g.UI(lang)[key]; ok {
		return s
	}
	return key
}
