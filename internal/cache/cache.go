package cache

import (
	"context"
	"time"

	"cotizador/backend/internal/domain"
)

// DetailCache caches full quotation detail responses. Quotations are
// immutable once saved, so a cached entry can never go stale; the TTL only
// bounds memory use.
type DetailCache interface {
	Get(ctx context.Context, key string) (*domain.QuotationDetail, bool, error)
	Set(ctx context.Context, key string, value *domain.QuotationDetail, ttl time.Duration) error
}

type NoopDetailCache struct{}

func (NoopDetailCache) Get(_ context.Context, _ string) (*domain.QuotationDetail, bool, error) {
	return nil, false, nil
}

func (NoopDetailCache) Set(_ context.Context, _ string, _ *domain.QuotationDetail, _ time.Duration) error {
	return nil
}
