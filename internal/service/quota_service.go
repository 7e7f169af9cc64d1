package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	config "postpilot/configs"
	"postpilot/internal/models"
	"postpilot/internal/transfer"
)

// QuotaService is an advisory pre-check against the platform's rolling
// publish quota, not a reservation system. Cached values may be stale;
// the platform itself remains the authority and will reject over-limit
// calls with a 429.
type QuotaService interface {
	Usage(ctx context.Context, acct models.AccountContext) (*transfer.QuotaUsage, error)
}

type quotaEntry struct {
	usage     transfer.QuotaUsage
	fetchedAt time.Time
}

type quotaService struct {
	client InstagramClient
	limit  int
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]quotaEntry

	now func() time.Time
}

func NewQuotaService(cfg config.Config, client InstagramClient) QuotaService {
	return &quotaService{
		client: client,
		limit:  cfg.Publisher.QuotaLimit,
		ttl:    cfg.Publisher.QuotaCacheTTL,
		cache:  make(map[string]quotaEntry),
		now:    time.Now,
	}
}

// Usage returns the platform-reported usage for the account, cached for
// a short TTL. A transport or protocol failure on the usage read fails
// open (remaining = limit): availability over strictness, since the
// platform's own rate limiter is the real enforcement.
func (s *quotaService) Usage(ctx context.Context, acct models.AccountContext) (*transfer.QuotaUsage, error) {
	key := acct.InstagramAccountID

	s.mu.RLock()
	entry, ok := s.cache[key]
	s.mu.RUnlock()
	if ok && s.now().Sub(entry.fetchedAt) < s.ttl {
		usage := entry.usage
		return &usage, nil
	}

	usage, err := s.client.CheckQuota(ctx, acct)
	if err != nil {
		var notConfigured *NotConfiguredError
		var expired *CredentialExpiredError
		if errors.As(err, &notConfigured) || errors.As(err, &expired) {
			return nil, err
		}

		var quotaErr *QuotaExceededError
		if errors.As(err, &quotaErr) {
			usage = &transfer.QuotaUsage{Used: s.limit, Limit: s.limit, Remaining: 0}
		} else {
			slog.Warn("quota check failed, assuming quota available", "account_id", key, "error", err.Error())
			usage = &transfer.QuotaUsage{Used: 0, Limit: s.limit, Remaining: s.limit}
		}
	}

	s.mu.Lock()
	s.cache[key] = quotaEntry{usage: *usage, fetchedAt: s.now()}
	s.mu.Unlock()

	result := *usage
	return &result, nil
}
