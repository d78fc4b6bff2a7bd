package main

import (
	"log"
	"net/http"

	"poe-wealth/internal/api"
	"poe-wealth/internal/app"
	"poe-wealth/internal/config"
	"poe-wealth/internal/services/notify"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	cfg := config.Load()
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if cfg.PoeAccessToken == "" {
		log.Println("POE_ACCESS_TOKEN not set, stash routes will be unauthorized")
	}

	hub := notify.NewHub()
	a, err := app.New(cfg, notify.Multi{notify.Log{}, hub})
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}

	r := gin.Default()

	// CORS middleware
	r.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": hub.Clients()})
	})
	r.GET("/ws", gin.WrapH(hub))

	api.SetupRoutes(r.Group("/api/v1"), a.Services())

	log.Printf("Server starting on port %s", cfg.Port)
	log.Fatal(http.ListenAndServe(":"+cfg.Port, r))
}
