package main

import (
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/araval/sahayak-go/internal/agent"
	"github.com/araval/sahayak-go/internal/config"
	"github.com/araval/sahayak-go/internal/llm"
	"github.com/araval/sahayak-go/internal/logger"
	"github.com/araval/sahayak-go/pkg/tools"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		return
	}
	logger.SetLevel(cfg.Log.Level)

	llmClient := llm.NewClient(cfg.LLM)

	manager := tools.NewToolManager()
	manager.RegisterTool(tools.NewCalendarTool(cfg.Google))
	manager.RegisterTool(tools.NewWeatherTool(cfg.Weather))
	manager.RegisterTool(tools.NewNewsTool(cfg.News))

	a := agent.New(llmClient, *cfg, manager)

	mux := http.NewServeMux()

	// main inference endpoint
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			logger.L.Error("read body error", "err", err)
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		sessionID := r.Header.Get("X-Session-ID")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}
		logger.L.Info("inference request", "session", sessionID, "body", string(body))

		response, err := a.Process(r.Context(), sessionID, string(body))
		if err != nil {
			logger.L.Error("process error", "err", err, "session", sessionID)
			http.Error(w, "failed to process request", http.StatusInternalServerError)
			return
		}

		w.Header().Set("X-Session-ID", sessionID)
		w.Write([]byte(response))
	})

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	logger.L.Info("starting server", "address", serverAddr)
	if err := http.ListenAndServe(serverAddr, mux); err != nil {
		logger.L.Error("failed to start server", "error", err)
	}
}
