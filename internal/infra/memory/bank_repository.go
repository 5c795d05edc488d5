package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"knowledge-test-service/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BankLoader fetches the full question bank from a backing store.
type BankLoader interface {
	LoadSections(ctx context.Context) ([]domain.Section, error)
}

// BankRepository caches the bank with TTL to avoid repeated store hits; the
// bank changes rarely but every session start reads all of it.
type BankRepository struct {
	loader BankLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand

	mu        sync.RWMutex
	sections  []domain.Section
	expiresAt time.Time
}

func NewBankRepository(loader BankLoader, ttl time.Duration) *BankRepository {
	return &BankRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *BankRepository) Sections(ctx context.Context) ([]domain.Section, error) {
	now := r.clock()

	r.mu.RLock()
	if r.sections != nil && r.expiresAt.After(now) {
		sections := r.sections
		r.mu.RUnlock()
		return sections, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do("bank", func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if r.sections != nil && r.expiresAt.After(now) {
			sections := r.sections
			r.mu.RUnlock()
			return sections, nil
		}
		r.mu.RUnlock()

		sections, err := r.loader.LoadSections(ctx)
		if err != nil {
			return nil, err
		}

		r.mu.Lock()
		r.sections = sections
		r.expiresAt = now.Add(r.ttlWithJitter())
		r.mu.Unlock()
		return sections, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]domain.Section), nil
}

// StaticBankLoader serves a fixed in-memory bank (useful for tests/demos).
type StaticBankLoader struct {
	sections []domain.Section
}

func NewStaticBankLoader(sections []domain.Section) *StaticBankLoader {
	return &StaticBankLoader{sections: sections}
}

// NewBuiltinBankLoader serves the built-in 100-question bank.
func NewBuiltinBankLoader() *StaticBankLoader {
	return NewStaticBankLoader(domain.BuiltinSections())
}

func (l *StaticBankLoader) LoadSections(_ context.Context) ([]domain.Section, error) {
	if len(l.sections) == 0 {
		return nil, domain.ErrBankShape
	}
	return l.sections, nil
}

func (r *BankRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
