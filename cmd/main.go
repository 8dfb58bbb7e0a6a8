package main

import (
	"io"
	"log"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/logger"

	"goldtrio/internal/config"
	"goldtrio/internal/handlers"
	"goldtrio/internal/services"
)

func main() {
	defer logger.Init("goldtrio", true, false, io.Discard).Close()

	// 1. Load configuration (file is optional; defaults are playable).
	configPath := os.Getenv("GOLDTRIO_CONFIG")
	if configPath == "" {
		configPath = "config.yaml"
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 2. Wire the services.
	quota := services.NewQuotaStore(cfg.Storage.QuotaFile, cfg.Game.MaxDailyAttempts, cfg.Game.ExemptEmail)
	boards := services.NewBoardGenerator(cfg.Game.GridSize, cfg.Game.WinningCells, cfg.Game.WinFace, cfg.Game.LoseFaces, cfg.Game.DefaultLoseFace)
	prizes := services.NewPrizeService(cfg.Prizes)
	results := services.NewResultLog(cfg.Storage.LogFile)
	game := services.NewGameService(quota, boards, prizes, results, cfg.RoundDuration(), cfg.SessionIdleTTL())

	// 3. Initialize the HTTP handler and the Gin router.
	httpHandler := handlers.NewHTTPHandler(game, results, cfg.Admin.Password)
	r := gin.Default()
	httpHandler.RegisterRoutes(r)

	// 4. Start the background janitor to clean up abandoned sessions.
	go func() {
		for {
			time.Sleep(10 * time.Minute) // Run every 10 minutes
			game.CleanUpIdleSessions()
		}
	}()

	// 5. Run the server.
	log.Printf("Server starting on %s", cfg.Server.Addr)
	if err := r.Run(cfg.Server.Addr); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}
