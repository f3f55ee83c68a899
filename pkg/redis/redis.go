package redis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hanzlakhalid7/Ketoslim-with-ai/internal/entity"
	jsoniter "github.com/json-iterator/go"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const scanKeyPrefix = "scan:"

var ErrCacheMiss = errors.New("cache miss")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type IRedis interface {
	SetScan(ctx context.Context, scan *entity.BodyScan, expiration time.Duration) error
	GetScan(ctx context.Context, id string) (*entity.BodyScan, error)
	DeleteScan(ctx context.Context, id string) error
	Close() error
}

type redisClient struct {
	client *redis.Client
	log    *logrus.Logger
}

func New(log *logrus.Logger) IRedis {
	db, _ := strconv.Atoi(os.Getenv("REDIS_DB"))
	redisAddr := os.Getenv("REDIS_ADDRESS")

	log.Info(fmt.Sprintf("Connecting to Redis at %s...", redisAddr))

	client := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("REDIS_PASSWORD"),
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		log.Error(fmt.Sprintf("Failed to connect to Redis: %v", err))
	} else {
		log.Info("Successfully connected to Redis")
	}

	return NewWithClient(client, log)
}

func NewWithClient(client *redis.Client, log *logrus.Logger) IRedis {
	return &redisClient{client: client, log: log}
}

func (r *redisClient) SetScan(ctx context.Context, scan *entity.BodyScan, expiration time.Duration) error {
	payload, err := json.Marshal(scan)
	if err != nil {
		return err
	}

	if err := r.client.Set(ctx, scanKeyPrefix+scan.ID, payload, expiration).Err(); err != nil {
		r.log.Error(fmt.Sprintf("Error caching scan %s: %v", scan.ID, err))
		return err
	}
	r.log.Debug(fmt.Sprintf("Cached scan %s for %v", scan.ID, expiration))
	return nil
}

func (r *redisClient) GetScan(ctx context.Context, id string) (*entity.BodyScan, error) {
	val, err := r.client.Get(ctx, scanKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	} else if err != nil {
		r.log.Error(fmt.Sprintf("Error reading scan %s from cache: %v", id, err))
		return nil, err
	}

	var scan entity.BodyScan
	if err := json.Unmarshal(val, &scan); err != nil {
		return nil, fmt.Errorf("corrupt cached scan %s: %w", id, err)
	}
	return &scan, nil
}

func (r *redisClient) DeleteScan(ctx context.Context, id string) error {
	return r.client.Del(ctx, scanKeyPrefix+id).Err()
}

func (r *redisClient) Close() error {
	return r.client.Close()
}
