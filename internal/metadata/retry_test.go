package metadata

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
)

func fixedPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		BackoffBase: 800 * time.Millisecond,
		Clock:       clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
		Jitter:      func() time.Duration { return 100 * time.Millisecond },
	}
}

func TestBackoff(t *testing.T) {
	p := fixedPolicy()
	assert.Equal(t, 900*time.Millisecond, p.backoff(0))
	assert.Equal(t, 1700*time.Millisecond, p.backoff(1))
	assert.Equal(t, 3300*time.Millisecond, p.backoff(2))

	// 默认抖动在 [0, 500ms)
	p.Jitter = nil
	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		assert.GreaterOrEqual(t, d, 800*time.Millisecond)
		assert.Less(t, d, 1300*time.Millisecond)
	}
}

func TestRetryAfter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	h := http.Header{}
	h.Set("Retry-After", "7")
	d, ok := retryAfter(h, "", now)
	assert.True(t, ok)
	assert.Equal(t, 7*time.Second, d)

	h.Set("Retry-After", now.Add(12*time.Second).Format(http.TimeFormat))
	d, ok = retryAfter(h, "", now)
	assert.True(t, ok)
	assert.Equal(t, 12*time.Second, d)

	d, ok = retryAfter(http.Header{}, `{"error":{"message":"Please retry in 21.5s."}}`, now)
	assert.True(t, ok)
	assert.Equal(t, 21500*time.Millisecond, d)

	_, ok = retryAfter(http.Header{}, "slow down", now)
	assert.False(t, ok)
}

func TestWaitTakesLonger(t *testing.T) {
	p := fixedPolicy()

	h := http.Header{}
	h.Set("Retry-After", "10")
	assert.Equal(t, 10*time.Second, p.wait(0, h, ""))

	// Retry-After 比退避短时用退避
	h.Set("Retry-After", "0")
	assert.Equal(t, 900*time.Millisecond, p.wait(0, h, ""))
}

func TestIsQuotaZero(t *testing.T) {
	assert.True(t, isQuotaZero(`quota metric: generate_content_free_tier_requests, limit: 0`))
	assert.True(t, isQuotaZero(`QUOTA EXCEEDED for this project`))
	assert.False(t, isQuotaZero(`Resource has been exhausted, retry in 3s`))
	assert.False(t, isQuotaZero(""))
}

func TestClassify(t *testing.T) {
	cases := map[int]Kind{
		401: KindNoKey,
		403: KindNoKey,
		402: KindQuotaExceeded,
		404: KindModelNotFound,
		429: KindRateLimited,
		500: KindTransient,
		400: KindTransient,
	}
	for status, want := range cases {
		assert.Equal(t, want, classify(status), "status %d", status)
	}
}

func TestProviderErrorHelpers(t *testing.T) {
	err := fmt.Errorf("batch 1: %w", newError(KindRateLimited, "HTTP 429"))

	kind, ok := KindOf(err)
	assert.True(t, ok)
	assert.Equal(t, KindRateLimited, kind)
	assert.True(t, IsBlocking(err))
	assert.Contains(t, err.Error(), "rate_limited")

	assert.False(t, IsBlocking(&ProviderError{Kind: KindTransient}))
	assert.False(t, IsBlocking(errors.New("plain")))
	assert.False(t, IsBlocking(nil))

	assert.Equal(t, "no_key", KindNoKey.String())
	assert.Equal(t, "model_not_found", KindModelNotFound.String())
	assert.Equal(t, "quota_exceeded", KindQuotaExceeded.String())
}
