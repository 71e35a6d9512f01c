package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/koopa0/battleship-server/internal"
)

func main() {
	var (
		port         = flag.Int("port", 8080, "服務器端口")
		logLevel     = flag.String("log-level", "info", "日誌級別 (debug, info, warn, error)")
		logFormat    = flag.String("log-format", "text", "日誌格式 (text, json)")
		staticDir    = flag.String("static-dir", "static", "靜態資源目錄")
		gameDataPath = flag.String("game-data", "", "語言表 YAML 檔（留空使用內建）")
		origins      = flag.String("allowed-origins", "", "允許的 CORS 來源，逗號分隔（留空讀 ALLOWED_ORIGINS，預設 *）")
	)
	flag.Parse()

	logger := setupLogger(*logLevel, *logFormat)

	// 語言表：內建預設 + 可選的 YAML 覆蓋
	data := internal.DefaultGameData()
	if *gameDataPath != "" {
		loaded, err := internal.LoadGameData(*gameDataPath)
		if err != nil {
			logger.Error("載入語言表失敗", "path", *gameDataPath, "error", err)
			os.Exit(1)
		}
		data = loaded
	}

	allowedOrigins := parseOrigins(*origins)

	manager := internal.NewManager(data, logger)
	hub := internal.NewHub(manager, data, logger, allowedOrigins)
	handler := internal.NewHandler(manager, hub, data, logger, *staticDir, allowedOrigins)

	mux := http.NewServeMux()
	mux.Handle("/", handler.Routes())
	mux.HandleFunc("GET /ws/{room_id}", hub.ServeWS)

	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", *port),
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	go func() {
		logger.Info("海戰棋服務器啟動",
			"port", *port,
			"log_level", *logLevel,
			"allowed_origins", allowedOrigins)

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("服務器啟動失敗", "error", err)
			os.Exit(1)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("收到關閉信號，開始優雅關閉...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("服務器關閉失敗", "error", err)
	}

	hub.Stop()
	manager.Stop()

	logger.Info("服務器已關閉")
}

// parseOrigins 解析 CORS 來源清單（flag 優先，其次環境變數，最後 *）
func parseOrigins(flagVal string) []string {
	raw := flagVal
	if raw == "" {
		raw = os.Getenv("ALLOWED_ORIGINS")
	}
	if raw == "" {
		raw = "*"
	}

	var origins []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// setupLogger 設置日誌
func setupLogger(level, format string) *slog.Logger {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level:     logLevel,
		AddSource: level == "debug",
	}

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return slog.New(handler)
}
