package event

import (
	"sync"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// EventType 定义事件类型
type EventType string

const (
	EventScanProgress   EventType = "scan_progress"
	EventScanComplete   EventType = "scan_complete"
	EventRenameProgress EventType = "rename_progress"
	EventRenameComplete EventType = "rename_complete"
	// EventCorpusUpdated 字幕库文件被替换 (下载或导入)
	EventCorpusUpdated EventType = "corpus_updated"
	// EventCorpusLoaded 字幕库重新解析完成
	EventCorpusLoaded EventType = "corpus_loaded"
)

// AllEvents SSE 桥接订阅的全部事件
var AllEvents = []EventType{
	EventScanProgress,
	EventScanComplete,
	EventRenameProgress,
	EventRenameComplete,
	EventCorpusUpdated,
	EventCorpusLoaded,
}

// Event 代表一个系统事件
type Event struct {
	Type    EventType   `json:"type"`
	Payload interface{} `json:"payload"`
}

// Progress 扫描/改名进度
type Progress struct {
	Processed int    `json:"processed"`
	Total     int    `json:"total"`
	Current   string `json:"current,omitempty"`
}

// Handler 处理事件的函数签名
type Handler func(event Event)

// Bus 事件总线接口
type Bus interface {
	Subscribe(topic EventType, handler Handler) string // 返回 Subscription ID
	Unsubscribe(topic EventType, subID string)
	Publish(topic EventType, payload interface{})
}

type handlerWrapper struct {
	id      string
	handler Handler
}

// InMemoryBus 简单的内存事件总线实现
type InMemoryBus struct {
	mu       sync.RWMutex
	handlers map[EventType][]handlerWrapper
}

// GlobalBus 全局单例
var GlobalBus Bus = NewInMemoryBus()

func NewInMemoryBus() *InMemoryBus {
	return &InMemoryBus{
		handlers: make(map[EventType][]handlerWrapper),
	}
}

func (b *InMemoryBus) Subscribe(topic EventType, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := uuid.New().String()
	b.handlers[topic] = append(b.handlers[topic], handlerWrapper{id: id, handler: handler})
	return id
}

func (b *InMemoryBus) Unsubscribe(topic EventType, subID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	wrappers := b.handlers[topic]
	for i, w := range wrappers {
		if w.id == subID {
			// 复制一份，Publish 可能还持有旧切片
			next := make([]handlerWrapper, 0, len(wrappers)-1)
			next = append(next, wrappers[:i]...)
			b.handlers[topic] = append(next, wrappers[i+1:]...)
			break
		}
	}
}

// Publish 异步执行所有 Handler，避免阻塞发布者
func (b *InMemoryBus) Publish(topic EventType, payload interface{}) {
	b.mu.RLock()
	wrappers := b.handlers[topic]
	b.mu.RUnlock()

	evt := Event{Type: topic, Payload: payload}
	for _, w := range wrappers {
		go func(h Handler) {
			defer func() {
				if r := recover(); r != nil {
					log.Errorf("Event: handler for %s panicked: %v", topic, r)
				}
			}()
			h(evt)
		}(w.handler)
	}
}

// Or 返回 b，为空时返回 GlobalBus
func Or(b Bus) Bus {
	if b == nil {
		return GlobalBus
	}
	return b
}
