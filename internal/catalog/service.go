package catalog

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
)

// Service wraps the repository with the ledger operations the daemon and
// API use at startup.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// EnsureAuthToken returns the API bearer token, generating and storing one
// on first boot.
func (s *Service) EnsureAuthToken(ctx context.Context) (string, error) {
	token, err := s.repo.GetConfig(ctx, ConfigKeyAuthToken)
	if err != nil {
		return "", fmt.Errorf("read auth token: %w", err)
	}
	if token != "" {
		return token, nil
	}

	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate auth token: %w", err)
	}
	token = hex.EncodeToString(b)
	if err := s.repo.SetConfig(ctx, ConfigKeyAuthToken, token); err != nil {
		return "", fmt.Errorf("store auth token: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("generated new API auth token")
	}
	return token, nil
}

// CachedValue decodes the JSON stored under key into v. It reports false
// when nothing is cached.
func (s *Service) CachedValue(ctx context.Context, key string, v any) (bool, error) {
	raw, err := s.repo.GetConfig(ctx, key)
	if err != nil {
		return false, err
	}
	if raw == "" {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		if s.logger != nil {
			s.logger.Warn("discarding corrupt cache entry", "key", key, "error", err)
		}
		return false, nil
	}
	return true, nil
}

// StoreValue JSON-encodes v under key.
func (s *Service) StoreValue(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	return s.repo.SetConfig(ctx, key, string(raw))
}

// RecentDays returns up to limit day records, newest first.
func (s *Service) RecentDays(ctx context.Context, limit int) ([]*Day, error) {
	return s.repo.ListDays(ctx, limit)
}

// Day returns the record for date, or nil.
func (s *Service) Day(ctx context.Context, date string) (*Day, error) {
	return s.repo.GetDay(ctx, date)
}
