package main

import (
	"log"
	"os"
	"time"

	"moodmate/internal/api"
	"moodmate/internal/auth"
	"moodmate/internal/chat"
	"moodmate/internal/config"
	"moodmate/internal/genai"
	"moodmate/internal/mood"
	"moodmate/internal/redis"
	"moodmate/internal/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	cfgPath := os.Getenv("MOODMATE_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	dbType := os.Getenv("MOODMATE_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	log.Printf("dbType: %s\n", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	// Create necessary tables: users, sessions, moods
	if err := storage.Migrate(db, dbType); err != nil {
		log.Fatalf("migrate database: %v", err)
	}

	var store chat.Store
	if cfg.Chat.Store == "redis" {
		rdb, err := redis.NewRedisClient(cfg)
		if err != nil {
			log.Fatalf("create redis client: %v", err)
		}
		defer rdb.Close()
		store = chat.NewRedisStore(rdb)
	} else {
		store = chat.NewMemoryStore()
	}

	generator, err := genai.New(cfg)
	if err != nil {
		log.Fatalf("init generative client: %v", err)
	}

	tokenTTL := time.Duration(cfg.BasicConfig.TokenTTLHours) * time.Hour
	authService := auth.NewService(db, cfg.BasicConfig.JWTSecret, tokenTTL)
	chatService := chat.NewService(store, generator,
		cfg.Chat.HistoryWindow,
		time.Duration(cfg.Chat.ReplyTimeoutSeconds)*time.Second,
	)
	moodService := mood.NewService(db)

	handlers := api.NewHandler(authService, chatService, moodService)

	router := gin.Default()
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}

	if err := router.Run(addr); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}
