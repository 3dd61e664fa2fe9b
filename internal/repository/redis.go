package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gymbook/internal/config"

	"github.com/redis/go-redis/v9"
)

type RedisOTPStore struct {
	client *redis.Client
}

// NewRedisClient создает новый клиент Redis на основе конфигурации
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	options := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}

	return redis.NewClient(options)
}

func NewRedisOTPStore(client *redis.Client) *RedisOTPStore {
	return &RedisOTPStore{client: client}
}

func (r *RedisOTPStore) SaveCode(ctx context.Context, email, code string, ttl time.Duration) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	key := otpKey(email)
	if err := r.client.Set(ctx, key, code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set otp code in redis: %w", err)
	}
	return nil
}

func (r *RedisOTPStore) GetCode(ctx context.Context, email string) (string, error) {
	if r.client == nil {
		return "", errors.New("redis client is nil")
	}
	val, err := r.client.Get(ctx, otpKey(email)).Result()
	if err == redis.Nil {
		return "", ErrCodeNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to get otp code from redis: %w", err)
	}
	return val, nil
}

func (r *RedisOTPStore) DeleteCode(ctx context.Context, email string) error {
	if r.client == nil {
		return errors.New("redis client is nil")
	}
	if err := r.client.Del(ctx, otpKey(email)).Err(); err != nil {
		return fmt.Errorf("failed to delete otp code from redis: %w", err)
	}
	return nil
}

func otpKey(email string) string {
	return fmt.Sprintf("otp_code:%s", email)
}

// Ping проверяет соединение с Redis
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
