package main

import (
	"context"
	"time"

	"vibe_chat/internal/config"
	deviceRepo "vibe_chat/internal/repository/device"
	messageRepo "vibe_chat/internal/repository/message"
	partyRepo "vibe_chat/internal/repository/party"
	sealedkeyRepo "vibe_chat/internal/repository/sealedkey"
	redisSvc "vibe_chat/internal/service/redis"
	"vibe_chat/internal/service/server"
	"vibe_chat/internal/utils/log"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

func main() {
	cfg := config.Load()

	mongoDBClient, err := initMongo(cfg.MongoURI)
	if err != nil {
		panic(err)
	}

	db := mongoDBClient.Database(cfg.MongoDB)

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.RedisAddr,
	})
	redisService := redisSvc.NewRedis(rdb)

	s := server.NewHttpServer(
		cfg.Addr,
		deviceRepo.NewDeviceRepo(db),
		sealedkeyRepo.NewSealedKeyRepo(db),
		partyRepo.NewPartyRepo(db),
		messageRepo.NewMessageRepo(db),
		server.NewMessageCache(redisService),
	)
	if err := s.Run(); err != nil {
		log.Fatal("relay server stopped", zap.Error(err))
	}
}

func initMongo(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	return client, client.Ping(ctx, nil)
}
