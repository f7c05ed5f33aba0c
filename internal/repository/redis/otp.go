// Package redis stores short-lived values in Redis.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lipanganya/doctime-api/internal/repository"
)

type otpStore struct {
	client redis.Cmdable
}

func NewOTPStore(client redis.Cmdable) repository.OTPStore {
	return &otpStore{client: client}
}

func otpKey(purpose, phone string) string {
	return fmt.Sprintf("otp:%s:%s", purpose, phone)
}

func (s *otpStore) Save(ctx context.Context, purpose, phone, code string, ttl time.Duration) error {
	if err := s.client.Set(ctx, otpKey(purpose, phone), code, ttl).Err(); err != nil {
		return fmt.Errorf("failed to save otp: %w", err)
	}
	return nil
}

func (s *otpStore) Take(ctx context.Context, purpose, phone string) (string, error) {
	code, err := s.client.GetDel(ctx, otpKey(purpose, phone)).Result()
	if errors.Is(err, redis.Nil) {
		return "", repository.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("failed to read otp: %w", err)
	}
	return code, nil
}
