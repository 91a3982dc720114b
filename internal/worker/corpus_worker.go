package worker

import (
	"context"
	"time"

	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	"github.com/pokerjest/animeFolderOrganizer/internal/subshare"
	log "github.com/sirupsen/logrus"
)

// reloadTimeout 单次重新解析 db.xml 的上限
const reloadTimeout = 5 * time.Minute

// CorpusReloader subshare.Service 的子集
type CorpusReloader interface {
	Invalidate()
	Diagnostics(ctx context.Context) (subshare.Diagnostics, error)
}

// StartCorpusWorker 订阅 corpus_updated：清空指纹、重新加载，完成后发布 corpus_loaded。
// 返回的函数取消订阅。
func StartCorpusWorker(bus event.Bus, svc CorpusReloader) (stop func()) {
	bus = event.Or(bus)
	id := bus.Subscribe(event.EventCorpusUpdated, func(e event.Event) {
		log.Infof("Worker: corpus replaced (%v), reloading", e.Payload)
		svc.Invalidate()

		ctx, cancel := context.WithTimeout(context.Background(), reloadTimeout)
		defer cancel()

		diag, err := svc.Diagnostics(ctx)
		if err != nil {
			log.Errorf("Worker: failed to reload corpus: %v", err)
			return
		}
		log.Infof("Worker: corpus reloaded, %d records", diag.RecordCount)
		bus.Publish(event.EventCorpusLoaded, diag)
	})

	return func() {
		bus.Unsubscribe(event.EventCorpusUpdated, id)
	}
}
