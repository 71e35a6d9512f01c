package internal

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"
)

// Handler HTTP 請求處理器
//
// 遊戲本體走 WebSocket；HTTP 只負責創房、語言資料查詢、健康檢查
// 與靜態資源。
type Handler struct {
	manager        *Manager
	hub            *Hub
	data           *GameData
	logger         *slog.Logger
	staticDir      string
	allowedOrigins []string
}

// NewHandler 創建 HTTP 處理器
func NewHandler(manager *Manager, hub *Hub, data *GameData, logger *slog.Logger, staticDir string, allowedOrigins []string) *Handler {
	return &Handler{
		manager:        manager,
		hub:            hub,
		data:           data,
		logger:         logger,
		staticDir:      staticDir,
		allowedOrigins: allowedOrigins,
	}
}

// Routes 設定路由
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	wrap := func(handler http.HandlerFunc) http.HandlerFunc {
		return h.recoverer(h.loggerMiddleware(handler))
	}

	mux.HandleFunc("GET /{$}", wrap(h.index))
	mux.Handle("GET /static/", http.StripPrefix("/static/",
		http.FileServer(http.Dir(h.staticDir))))

	mux.HandleFunc("GET /ui/{lang}", wrap(h.uiData))
	mux.HandleFunc("POST /create/{lang}", wrap(h.createRoom))

	mux.HandleFunc("GET /health", wrap(h.health))
	mux.HandleFunc("GET /stats", wrap(h.stats))

	// CORS 包在整個 mux 外層，preflight 才不會先被方法路由擋成 405
	return h.cors(mux.ServeHTTP)
}

// index 首頁
func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	http.ServeFile(w, r, filepath.Join(h.staticDir, "index.html"))
}

// uiData 回傳指定語言的 UI 字串與艦隊資料（未知語言退回預設）
func (h *Handler) uiData(w http.ResponseWriter, r *http.Request) {
	data := h.data.Data(r.PathValue("lang"))
	h.jsonResponse(w, map[string]any{
		"ui":    data.UI,
		"ships": data.Ships,
	}, http.StatusOK)
}

// createRoom 創建房間（未知語言退回預設）
func (h *Handler) createRoom(w http.ResponseWriter, r *http.Request) {
	room := h.manager.CreateRoom(r.PathValue("lang"))
	h.jsonResponse(w, map[string]any{
		"room_id": room.ID,
	}, http.StatusOK)
}

// health 健康檢查
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]any{
		"status": "ok",
	}, http.StatusOK)
}

// stats 統計資訊：房間側的計數加上各房間的活躍連接數
func (h *Handler) stats(w http.ResponseWriter, r *http.Request) {
	stats := h.manager.Stats()
	stats["connections"] = h.hub.ConnectionCount()
	h.jsonResponse(w, stats, http.StatusOK)
}

// jsonResponse 返回 JSON 響應
func (h *Handler) jsonResponse(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("編碼 JSON 失敗", "error", err)
	}
}

// cors CORS 中間件
//
// allowedOrigins 包含 "*" 時放行所有來源（但不帶憑證）；否則只對
// 名單內的來源回覆 Allow-Origin。
func (h *Handler) cors(next http.HandlerFunc) http.HandlerFunc {
	allowAll := false
	allowed := make(map[string]struct{}, len(h.allowedOrigins))
	for _, o := range h.allowedOrigins {
		if o == "*" {
			allowAll = true
		}
		allowed[o] = struct{}{}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		switch {
		case allowAll:
			w.Header().Set("Access-Control-Allow-Origin", "*")
		case origin != "":
			if _, ok := allowed[origin]; ok {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Credentials", "true")
				w.Header().Add("Vary", "Origin")
			}
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next(w, r)
	}
}

// loggerMiddleware 日誌中間件
func (h *Handler) loggerMiddleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := &responseWriter{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		next(ww, r)

		h.logger.Info("HTTP 請求",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.statusCode,
			"duration", time.Since(start))
	}
}

// recoverer panic 恢復中間件
func (h *Handler) recoverer(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				h.logger.Error("處理請求時發生 panic",
					"error", err,
					"method", r.Method,
					"path", r.URL.Path)

				h.jsonResponse(w, map[string]any{
					"error": "internal server error",
				}, http.StatusInternalServerError)
			}
		}()

		next(w, r)
	}
}

// responseWriter 包裝 ResponseWriter 以獲取狀態碼
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWriter) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}
