package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// ErrCacheMiss is returned when no prediction is cached for a key.
var ErrCacheMiss = errors.New("prediction not cached")

type IRedis interface {
	SetPrediction(ctx context.Context, imageHash string, payload []byte, expiration time.Duration) error
	GetPrediction(ctx context.Context, imageHash string) ([]byte, error)
}

type redisClient struct {
	client *redis.Client
}

func New() IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")
	redisPassword := os.Getenv("REDIS_PASSWORD")

	logrus.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: redisPassword,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logrus.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		logrus.Info("Successfully connected to Redis")
	}

	return &redisClient{client: client}
}

func (r *redisClient) SetPrediction(ctx context.Context, imageHash string, payload []byte, expiration time.Duration) error {
	err := r.client.Set(ctx, predictionKey(imageHash), payload, expiration).Err()
	if err != nil {
		logrus.Error(fmt.Sprintf("Error caching prediction for %s: %v", imageHash, err))
		return err
	}
	return nil
}

func (r *redisClient) GetPrediction(ctx context.Context, imageHash string) ([]byte, error) {
	val, err := r.client.Get(ctx, predictionKey(imageHash)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	} else if err != nil {
		logrus.Error(fmt.Sprintf("Error reading cached prediction for %s: %v", imageHash, err))
		return nil, err
	}
	return val, nil
}

func predictionKey(imageHash string) string {
	return "prediction:" + imageHash
}
