// Package battleship 提供了一個即時雙人海戰棋對戰服務器。
//
// 玩家透過 WebSocket 連入同一個房間，各自在私有棋盤上佈陣，
// 然後輪流對對方棋盤射擊，直到一方艦隊全滅。包含以下核心功能：
//
// 遊戲會話引擎
//
// 每個房間是一個獨立的狀態機：
//   - lobby → battle → game_over 單向階段轉換
//   - 艦隊佈陣驗證（直線、連續、不同船不得相鄰含對角線、長度組合完全匹配）
//   - 射擊判定（miss / hit / sunk / repeat）與沉沒重建
//   - 回合仲裁：miss 換手，hit / sunk / repeat 保留回合
//
// 併發安全設計
//
// 兩條連線獨立驅動，但共享同一個房間：
//   - 每個房間操作在單一 RWMutex 下作為原子單元執行
//   - 不同房間的操作互不阻塞（鎖粒度為房間，非全域）
//   - 持鎖期間不做任何 I/O；出站訊息在臨界區內建好、臨界區外投遞
//   - 投遞盡力而為，死連線不回滾已接受的遊戲狀態
//
// # WebSocket 通訊
//
// 實現了即時雙向通訊機制：
//   - 封閉的訊息集合，邊界嚴格驗證
//   - 心跳檢測（Ping/Pong，54s/60s）
//   - 訊息廣播與指定玩家單播
//   - 斷線即離房：battle 中斷線視同棄權，留下的玩家獲勝
//
// 多語言支援
//
// 語言 → {UI 字串, 艦隊規格} 查表，未知語言一律退回預設語言，
// 查詢永不失敗；可用 YAML 檔覆蓋內建語言表。
package battleship
