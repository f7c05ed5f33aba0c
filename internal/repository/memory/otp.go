// Package memory keeps short-lived values in process when Redis is not configured.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/lipanganya/doctime-api/internal/repository"
)

type otpStore struct {
	mu    sync.Mutex
	cache *cache.Cache
}

func NewOTPStore() repository.OTPStore {
	return &otpStore{cache: cache.New(5*time.Minute, 10*time.Minute)}
}

func (s *otpStore) Save(_ context.Context, purpose, phone, code string, ttl time.Duration) error {
	s.cache.Set(purpose+":"+phone, code, ttl)
	return nil
}

func (s *otpStore) Take(_ context.Context, purpose, phone string) (string, error) {
	key := purpose + ":" + phone

	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache.Get(key)
	if !ok {
		return "", repository.ErrNotFound
	}
	s.cache.Delete(key)
	return v.(string), nil
}
