package metadata

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

var ErrGateClosed = errors.New("provider gate closed")

type gateRequest struct {
	ctx    context.Context
	fn     func(context.Context) error
	result chan error
}

// Gate 由单个 goroutine 持有冷却计时，请求通过 channel 串行执行，
// 两次请求开始之间至少间隔 cooldown。
type Gate struct {
	limiter *rate.Limiter
	reqs    chan gateRequest
	done    chan struct{}
	once    sync.Once
	wg      sync.WaitGroup
}

func NewGate(cooldown time.Duration) *Gate {
	limit := rate.Inf
	if cooldown > 0 {
		limit = rate.Every(cooldown)
	}
	g := &Gate{
		limiter: rate.NewLimiter(limit, 1),
		reqs:    make(chan gateRequest),
		done:    make(chan struct{}),
	}
	g.wg.Add(1)
	go g.loop()
	return g
}

func (g *Gate) loop() {
	defer g.wg.Done()
	for {
		select {
		case <-g.done:
			return
		case req := <-g.reqs:
			err := g.limiter.Wait(req.ctx)
			if err == nil {
				err = req.fn(req.ctx)
			}
			req.result <- err
		}
	}
}

// Do 排队执行 fn。排队期间 ctx 取消或 Gate 已关闭时不会执行 fn。
func (g *Gate) Do(ctx context.Context, fn func(context.Context) error) error {
	req := gateRequest{ctx: ctx, fn: fn, result: make(chan error, 1)}
	select {
	case g.reqs <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-g.done:
		return ErrGateClosed
	}
	return <-req.result
}

// Close 停止 goroutine，正在执行的请求会先完成
func (g *Gate) Close() {
	g.once.Do(func() {
		close(g.done)
	})
	g.wg.Wait()
}
