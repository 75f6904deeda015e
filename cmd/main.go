package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"strangerchat/backend/internal/api/handler"
	"strangerchat/backend/internal/chathub"
	"strangerchat/backend/internal/config"
	"strangerchat/backend/internal/identity"
	"strangerchat/backend/internal/storage"
	"strangerchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"
)

func setupStorage(cfg *config.Config) storage.Storage {
	if cfg.StorageDriver == "memory" {
		log.Println("Using in-memory storage, state is lost on restart.")
		return storage.NewMemoryStore()
	}

	db, rdb, err := storage.Connect(cfg)
	if err != nil {
		log.Fatalf("Failed to set up storage: %v", err)
	}
	return storage.NewStorageService(db, rdb)
}

func main() {
	log.Println("Starting Stranger Chat Backend...")

	cfg := config.Load()
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 1. Ініціалізація залежностей
	s := setupStorage(cfg)

	// 2. Chat hub, лічильник онлайн та прибирання покинутих кімнат
	hub := chathub.NewManagerService(s, cfg.Chat)
	counter := chathub.NewOnlineCounter(s, cfg.Chat)
	go counter.Run(ctx)
	go hub.RunSweeper(ctx, counter.TTL)

	issuer := identity.NewIssuer(cfg.JWTSecret, cfg.TokenTTL)

	if cfg.TelegramBotToken != "" {
		botService, err := telegram.NewBotService(cfg.TelegramBotToken, hub, counter)
		if err != nil {
			log.Fatalf("Не вдалося запустити Telegram-бота: %v", err)
		}
		go botService.Run(ctx)
	} else {
		log.Println("TELEGRAM_BOT_TOKEN не встановлено, Telegram-бот вимкнено.")
	}

	// 3. Налаштування Gin та роутингу
	r := gin.Default()
	h := handler.NewHandler(hub, issuer, counter, cfg.CORSOrigins)
	h.RegisterRoutes(r)

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:           ":" + cfg.Port,
		Handler:        c.Handler(r),
		ReadTimeout:    10 * time.Second,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: HTTP server shutdown: %v", err)
	}
	hub.Shutdown(shutdownCtx)
	log.Println("Bye.")
}
