package registry

import (
	"context"
	"sync"
	"time"
)

type memoryRecord struct {
	token     string
	issuedAt  time.Time
	expiresAt time.Time
	consumed  bool
}

// MemoryRegistry is an in-process ResetTokenRegistry. All records live in
// per-email buckets behind a single mutex; a lone background sweeper removes
// dead records instead of one timer per token. The critical sections contain
// no blocking calls, so the lock is never held across I/O.
type MemoryRegistry struct {
	ttl time.Duration
	now func() time.Time

	mu      sync.Mutex
	records map[string][]*memoryRecord

	done      chan struct{}
	closeOnce sync.Once
}

// NewMemoryRegistry creates a MemoryRegistry. A sweepInterval of zero
// disables the background sweeper; expired records are then only rejected on
// access, not reclaimed.
func NewMemoryRegistry(ttl, sweepInterval time.Duration) *MemoryRegistry {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	r := &MemoryRegistry{
		ttl:     ttl,
		now:     time.Now,
		records: make(map[string][]*memoryRecord),
		done:    make(chan struct{}),
	}

	if sweepInterval > 0 {
		go r.sweepLoop(sweepInterval)
	}

	return r
}

func (r *MemoryRegistry) Issue(_ context.Context, email string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}

	now := r.now()
	record := &memoryRecord{
		token:     token,
		issuedAt:  now,
		expiresAt: now.Add(r.ttl),
	}

	r.mu.Lock()
	r.records[email] = append(r.records[email], record)
	r.mu.Unlock()

	return token, nil
}

func (r *MemoryRegistry) Verify(_ context.Context, email, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.findLive(email, token)
	return err
}

func (r *MemoryRegistry) Consume(_ context.Context, email, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, err := r.findLive(email, token)
	if err != nil {
		return err
	}

	record.consumed = true
	return nil
}

func (r *MemoryRegistry) Restore(_ context.Context, email, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := len(r.records[email]) - 1; i >= 0; i-- {
		record := r.records[email][i]
		if record.token == token && record.consumed {
			record.consumed = false
			return nil
		}
	}

	return ErrTokenNotFound
}

// findLive locates an unexpired, unconsumed record matching the token.
// Callers must hold r.mu.
func (r *MemoryRegistry) findLive(email, token string) (*memoryRecord, error) {
	now := r.now()
	sawConsumed := false

	for _, record := range r.records[email] {
		if record.token != token {
			continue
		}
		if record.consumed {
			sawConsumed = true
			continue
		}
		if now.After(record.expiresAt) {
			continue
		}

		return record, nil
	}

	if sawConsumed {
		return nil, ErrTokenAlreadyUsed
	}

	return nil, ErrTokenNotFound
}

// Close stops the background sweeper. Safe to call more than once.
func (r *MemoryRegistry) Close() {
	r.closeOnce.Do(func() {
		close(r.done)
	})
}

func (r *MemoryRegistry) sweepLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.sweep()
		case <-r.done:
			return
		}
	}
}

// sweep drops records past their expiry, bounding the registry's size.
// Consumed records are kept until expiry so that late redemption attempts see
// "already used" rather than "not found", and so Restore has something to
// flip back.
func (r *MemoryRegistry) sweep() {
	now := r.now()

	r.mu.Lock()
	defer r.mu.Unlock()

	for email, bucket := range r.records {
		kept := bucket[:0]
		for _, record := range bucket {
			if now.Before(record.expiresAt) {
				kept = append(kept, record)
			}
		}

		if len(kept) == 0 {
			delete(r.records, email)
		} else {
			r.records[email] = kept
		}
	}
}
