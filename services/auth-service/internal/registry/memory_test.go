package registry

import (
	"context"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRegistry(t *testing.T) *MemoryRegistry {
	t.Helper()

	r := NewMemoryRegistry(DefaultTokenTTL, 0)
	t.Cleanup(r.Close)

	return r
}

func TestIssueReturnsSixDigitToken(t *testing.T) {
	r := newTestRegistry(t)

	digits := regexp.MustCompile(`^[0-9]{6}$`)
	for i := 0; i < 50; i++ {
		token, err := r.Issue(context.Background(), "a@x.com")
		require.NoError(t, err)
		assert.Regexp(t, digits, token)
	}
}

func TestVerifyConsumeRoundTrip(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	token, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, r.Verify(ctx, "a@x.com", token))
	require.NoError(t, r.Consume(ctx, "a@x.com", token))

	// Never valid again once consumed.
	assert.ErrorIs(t, r.Verify(ctx, "a@x.com", token), ErrTokenAlreadyUsed)
	assert.ErrorIs(t, r.Consume(ctx, "a@x.com", token), ErrTokenAlreadyUsed)
}

func TestVerifyRejectsUnknownToken(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	_, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	assert.ErrorIs(t, r.Verify(ctx, "a@x.com", "999999x"), ErrTokenNotFound)
	assert.ErrorIs(t, r.Verify(ctx, "b@x.com", "123456"), ErrTokenNotFound)
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	issued := time.Now()
	r.now = func() time.Time { return issued }

	token, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	r.now = func() time.Time { return issued.Add(DefaultTokenTTL - time.Second) }
	require.NoError(t, r.Verify(ctx, "a@x.com", token))

	r.now = func() time.Time { return issued.Add(DefaultTokenTTL + time.Second) }
	assert.ErrorIs(t, r.Verify(ctx, "a@x.com", token), ErrTokenNotFound)
	assert.ErrorIs(t, r.Consume(ctx, "a@x.com", token), ErrTokenNotFound)
}

func TestReissueKeepsPriorTokensLive(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	first, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	second, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, r.Verify(ctx, "a@x.com", first))
	require.NoError(t, r.Verify(ctx, "a@x.com", second))
}

func TestRestoreRevivesConsumedToken(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	token, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)

	require.NoError(t, r.Consume(ctx, "a@x.com", token))
	require.NoError(t, r.Restore(ctx, "a@x.com", token))
	require.NoError(t, r.Verify(ctx, "a@x.com", token))

	assert.ErrorIs(t, r.Restore(ctx, "a@x.com", token), ErrTokenNotFound)
}

func TestSweepRemovesExpiredRecords(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	issued := time.Now()
	r.now = func() time.Time { return issued }

	_, err := r.Issue(ctx, "a@x.com")
	require.NoError(t, err)
	stillLive, err := r.Issue(ctx, "b@x.com")
	require.NoError(t, err)

	r.mu.Lock()
	r.records["a@x.com"][0].expiresAt = issued.Add(-time.Second)
	r.mu.Unlock()

	r.sweep()

	r.mu.Lock()
	_, ok := r.records["a@x.com"]
	live := len(r.records["b@x.com"])
	r.mu.Unlock()

	assert.False(t, ok)
	assert.Equal(t, 1, live)
	require.NoError(t, r.Verify(ctx, "b@x.com", stillLive))
}

func TestConcurrentConsumeHasSingleWinner(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	for i := 0; i < 100; i++ {
		token, err := r.Issue(ctx, "a@x.com")
		require.NoError(t, err)

		const attempts = 8
		results := make(chan error, attempts)

		var start, done sync.WaitGroup
		start.Add(1)
		done.Add(attempts)
		for j := 0; j < attempts; j++ {
			go func() {
				defer done.Done()
				start.Wait()
				results <- r.Consume(ctx, "a@x.com", token)
			}()
		}
		start.Done()
		done.Wait()
		close(results)

		winners := 0
		for err := range results {
			if err == nil {
				winners++
			} else {
				assert.ErrorIs(t, err, ErrTokenAlreadyUsed)
			}
		}

		assert.Equal(t, 1, winners)
	}
}
