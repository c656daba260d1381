package memory

import (
	"context"
	"sync"
	"time"

	"github.com/0x-stone/zspa/pkg/domain"
	"github.com/0x-stone/zspa/pkg/ranking"
	"github.com/google/uuid"
)

// Catalog implements ports.Persistence and ports.Search over an in-memory
// fundraiser list. Safe for concurrent use.
type Catalog struct {
	mu        sync.RWMutex
	causes    map[string]domain.Cause
	order     []string
	donations []domain.Donation
	ranker    *ranking.Ranker
}

// NewCatalog seeds a catalog with the given fundraisers.
func NewCatalog(causes ...domain.Cause) *Catalog {
	c := &Catalog{
		causes: make(map[string]domain.Cause),
		ranker: ranking.New(),
	}
	for _, cause := range causes {
		c.Put(cause)
	}
	return c
}

// Put inserts or replaces a fundraiser.
func (c *Catalog) Put(cause domain.Cause) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.causes[cause.ID]; !ok {
		c.order = append(c.order, cause.ID)
	}
	c.causes[cause.ID] = cause
}

// GetCause returns the fundraiser with the given id.
func (c *Catalog) GetCause(ctx context.Context, id string) (*domain.Cause, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cause, ok := c.causes[id]
	if !ok {
		return nil, domain.ErrCauseNotFound
	}
	return &cause, nil
}

// RecordDonation stores a confirmed donation and adds it to the amount raised.
func (c *Catalog) RecordDonation(ctx context.Context, fundraiserID string, amountNative, amountQuote float64) (*domain.Donation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cause, ok := c.causes[fundraiserID]
	if !ok {
		return nil, domain.ErrCauseNotFound
	}
	d := domain.Donation{
		ID:           uuid.NewString(),
		FundraiserID: fundraiserID,
		AmountNative: amountNative,
		AmountQuote:  amountQuote,
		Status:       domain.DonationConfirmed,
		CreatedAt:    time.Now().UTC(),
	}
	c.donations = append(c.donations, d)
	cause.AmountRaised += amountQuote
	c.causes[fundraiserID] = cause
	return &d, nil
}

// Donations returns every recorded donation.
func (c *Catalog) Donations() []domain.Donation {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.Donation, len(c.donations))
	copy(out, c.donations)
	return out
}

// SearchCauses ranks the catalog against the query.
func (c *Catalog) SearchCauses(ctx context.Context, query domain.SearchQuery, interests []string) ([]domain.Cause, error) {
	c.mu.RLock()
	all := make([]domain.Cause, 0, len(c.order))
	for _, id := range c.order {
		all = append(all, c.causes[id])
	}
	c.mu.RUnlock()
	return c.ranker.Rank(all, query, interests), nil
}
