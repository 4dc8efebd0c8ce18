package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vibe_chat/internal/config"
	"vibe_chat/internal/keystore"
	"vibe_chat/internal/remote/httprelay"
	"vibe_chat/internal/service/app"
	"vibe_chat/internal/service/e2ee"
	redisSvc "vibe_chat/internal/service/redis"

	"github.com/redis/go-redis/v9"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatal("Usage: client <user_id> <party_id>")
	}

	userID := os.Args[1]
	partyID := os.Args[2]

	cfg := config.Load()

	keys, err := buildKeystore(cfg)
	if err != nil {
		log.Fatalf("init keystore: %v", err)
	}

	relay := httprelay.NewClient(cfg.RelayURL)
	session := e2ee.NewSession(userID, keys, relay)

	a := app.NewApp(session, relay, partyID)

	go func() {
		done := make(chan os.Signal, 1)
		signal.Notify(done, syscall.SIGINT, syscall.SIGTERM)
		<-done
		a.Stop()
	}()

	a.Run(context.Background())
}

// buildKeystore picks the file store when KEYSTORE_DIR is set, otherwise a
// device-local Redis.
func buildKeystore(cfg config.Config) (keystore.Store, error) {
	if cfg.KeystoreDir != "" {
		return keystore.NewFileStore(cfg.KeystoreDir)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	return keystore.NewRedisStore(redisSvc.NewRedis(rdb)), nil
}
