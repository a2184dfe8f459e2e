package repository

import (
	"context"
	"time"

	"MHIRebal/internal/domain/models"
	"MHIRebal/pkg/cache"
)

// SignalStore caches composite series in a cache.Service under hashed keys.
type SignalStore struct {
	c   cache.Service
	ttl time.Duration
}

func NewSignalStore(c cache.Service, ttl time.Duration) *SignalStore {
	return &SignalStore{c: c, ttl: ttl}
}

func (s *SignalStore) key(fingerprint string) string {
	return cache.Key("signal", cache.HashKey(fingerprint))
}

func (s *SignalStore) GetSignal(ctx context.Context, fingerprint string) (*models.Series, bool, error) {
	out, err := cache.GetJSON[models.Series](ctx, s.c, s.key(fingerprint))
	if cache.IsMiss(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &out, true, nil
}

func (s *SignalStore) PutSignal(ctx context.Context, fingerprint string, sig *models.Series) error {
	return cache.SetJSON(ctx, s.c, s.key(fingerprint), sig, s.ttl)
}
