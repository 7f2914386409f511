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

	"github.com/redis/go-redis/v9"

	"github.com/mrsagent/agentchat/internal/chat"
	"github.com/mrsagent/agentchat/internal/config"
	"github.com/mrsagent/agentchat/internal/httpapi"
	"github.com/mrsagent/agentchat/internal/llm"
	"github.com/mrsagent/agentchat/internal/profile"
	"github.com/mrsagent/agentchat/internal/store/kv"
)

func openKV(cfg config.Config) (kv.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		return kv.New(kv.DriverMemory)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		return kv.New(kv.DriverRedis, kv.WithRedisClient(client))
	case "sqlite":
		return kv.New(kv.DriverSQLite, kv.WithSQLitePath(cfg.SQLitePath))
	default:
		return nil, kv.ErrInvalidDriver
	}
}

func main() {
	cfg := config.Load()

	if cfg.GroqAPIKey == "" {
		log.Printf("GROQ_API_KEY not set; completions will be rejected by the remote service")
	}

	backend, err := openKV(cfg)
	if err != nil {
		log.Fatalf("open kv store (%s): %v", cfg.StoreDriver, err)
	}
	defer backend.Close()

	sessions := chat.NewStore(backend, cfg.HistoryLimit)
	client := llm.NewClient(cfg.GroqBaseURL, cfg.GroqAPIKey)
	conv := chat.NewConversation(client, sessions,
		chat.WithSaveDebounce(cfg.SaveDebounce),
		chat.WithCannedDelay(cfg.CannedDelay),
	)
	prof := profile.NewManager(backend)

	router := httpapi.NewRouter(cfg, conv, sessions, prof)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("agentchat listening on %s (store=%s)", cfg.ListenAddr, cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Printf("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
