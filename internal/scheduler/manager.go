package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	log "github.com/sirupsen/logrus"
)

// CorpusUpdater 下载新的 db.xml (subshare.Store)
type CorpusUpdater interface {
	UpdateFromRemote(ctx context.Context) subshare.UpdateResult
}

// CorpusLoader 确保索引是最新的 (subshare.Service)
type CorpusLoader interface {
	EnsureLoaded(ctx context.Context) error
}

// Manager 定期刷新字幕库：可选的远程更新，然后 EnsureLoaded
type Manager struct {
	loader   CorpusLoader
	updater  CorpusUpdater
	interval time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	lastRun time.Time
}

// NewManager updater 为空时只做本地重载
func NewManager(loader CorpusLoader, updater CorpusUpdater, interval time.Duration, clock clockwork.Clock) *Manager {
	if interval <= 0 {
		interval = 6 * time.Hour
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Manager{
		loader:   loader,
		updater:  updater,
		interval: interval,
		clock:    clock,
	}
}

// Start 立即执行一次，之后每 interval 执行一次。重复调用无效。
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	ticker := m.clock.NewTicker(m.interval)

	log.Infof("Scheduler: started, corpus refresh every %s", m.interval)
	go func() {
		defer close(m.done)
		defer ticker.Stop()

		m.run(ctx)
		for {
			select {
			case <-ticker.Chan():
				m.run(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop 取消正在进行的刷新并等待循环退出
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	log.Info("Scheduler: stopped")
}

func (m *Manager) run(ctx context.Context) {
	if err := m.RunOnce(ctx); err != nil && ctx.Err() == nil {
		log.Warnf("Scheduler: refresh failed: %v", err)
	}
}

// RunOnce 执行一次刷新。远程更新失败只记日志，仍然重载本地文件。
func (m *Manager) RunOnce(ctx context.Context) error {
	if m.updater != nil {
		res := m.updater.UpdateFromRemote(ctx)
		if res.Success {
			log.Infof("Scheduler: corpus updated from %s (%d bytes)", res.Source, res.Size)
		} else {
			log.Warnf("Scheduler: corpus update failed: %s", res.Error)
		}
	}
	if err := m.loader.EnsureLoaded(ctx); err != nil {
		return err
	}

	m.mu.Lock()
	m.lastRun = m.clock.Now()
	m.mu.Unlock()
	return nil
}

// LastRun 最近一次成功刷新的时间
func (m *Manager) LastRun() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastRun
}
