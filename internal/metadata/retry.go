package metadata

import (
	"context"
	"math"
	"math/rand/v2"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

const maxJitter = 500 * time.Millisecond

var retryInRegex = regexp.MustCompile(`(?i)retry in\s+(\d+(?:\.\d+)?)s`)

// RetryPolicy 429 时的退避策略，其余状态码不重试
type RetryPolicy struct {
	MaxRetries  int
	BackoffBase time.Duration
	Clock       clockwork.Clock
	// Jitter 为空时取 [0, 500ms) 的随机值
	Jitter func() time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  2,
		BackoffBase: 800 * time.Millisecond,
		Clock:       clockwork.NewRealClock(),
	}
}

// backoff = base * 2^attempt + jitter
func (p RetryPolicy) backoff(attempt int) time.Duration {
	d := time.Duration(float64(p.BackoffBase) * math.Pow(2, float64(attempt)))
	if p.Jitter != nil {
		return d + p.Jitter()
	}
	return d + rand.N(maxJitter)
}

// wait Retry-After 与退避取较大者
func (p RetryPolicy) wait(attempt int, header http.Header, body string) time.Duration {
	d := p.backoff(attempt)
	if ra, ok := retryAfter(header, body, p.clock().Now()); ok && ra > d {
		return ra
	}
	return d
}

func (p RetryPolicy) clock() clockwork.Clock {
	if p.Clock == nil {
		return clockwork.NewRealClock()
	}
	return p.Clock
}

// retryAfter 先读 Retry-After 头 (秒数或 HTTP 日期)，再从错误正文里找 "retry in Ns"
func retryAfter(header http.Header, body string, now time.Time) (time.Duration, bool) {
	if v := strings.TrimSpace(header.Get("Retry-After")); v != "" {
		if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
			return time.Duration(secs * float64(time.Second)), true
		}
		if t, err := http.ParseTime(v); err == nil {
			if d := t.Sub(now); d > 0 {
				return d, true
			}
			return 0, true
		}
	}
	if m := retryInRegex.FindStringSubmatch(body); len(m) > 1 {
		if secs, err := strconv.ParseFloat(m[1], 64); err == nil {
			return time.Duration(secs * float64(time.Second)), true
		}
	}
	return 0, false
}

// isQuotaZero 配额为 0 (模型不在方案内) 时重试没有意义
func isQuotaZero(body string) bool {
	lower := strings.ToLower(body)
	return strings.Contains(lower, "limit: 0") || strings.Contains(lower, "quota exceeded")
}

// classify 非 2xx 状态码对应的错误类型
func classify(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindNoKey
	case http.StatusPaymentRequired:
		return KindQuotaExceeded
	case http.StatusNotFound:
		return KindModelNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindTransient
	}
}

// Run 每次尝试都经过 gate，429 时按策略等待后重试
func (p RetryPolicy) Run(ctx context.Context, gate *Gate, send func(context.Context) (*resty.Response, error)) ([]byte, error) {
	for attempt := 0; ; attempt++ {
		var resp *resty.Response
		err := gate.Do(ctx, func(ctx context.Context) error {
			var err error
			resp, err = send(ctx)
			return err
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, &ProviderError{Kind: KindTransient, Err: err}
		}

		status := resp.StatusCode()
		if status >= 200 && status < 300 {
			return resp.Body(), nil
		}

		body := resp.String()
		kind := classify(status)
		if kind != KindRateLimited {
			return nil, newError(kind, "HTTP %d: %s", status, truncate(body, 200))
		}
		if isQuotaZero(body) {
			return nil, newError(KindQuotaExceeded, "HTTP %d: %s", status, truncate(body, 200))
		}
		if attempt >= p.MaxRetries {
			return nil, newError(KindRateLimited, "still rate limited after %d retries", attempt)
		}

		d := p.wait(attempt, resp.Header(), body)
		log.Debugf("Provider: rate limited, retry %d in %s", attempt+1, d)
		select {
		case <-p.clock().After(d):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
