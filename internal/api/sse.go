package api

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animeFolderOrganizer/internal/event"
	log "github.com/sirupsen/logrus"
)

// SSEHandler 把事件总线上的扫描/改名/字幕库事件推给浏览器
func (h *Handlers) SSEHandler(c *gin.Context) {
	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")

	bus := h.deps.Bus
	clientChan := make(chan event.Event, 16)

	bridgeHandler := func(e event.Event) {
		// 非阻塞发送，慢客户端丢消息
		select {
		case clientChan <- e:
		default:
			log.Debugf("SSE: client buffer full, dropped %s", e.Type)
		}
	}

	subIDs := make(map[event.EventType]string, len(event.AllEvents))
	for _, t := range event.AllEvents {
		subIDs[t] = bus.Subscribe(t, bridgeHandler)
	}
	defer func() {
		for t, id := range subIDs {
			bus.Unsubscribe(t, id)
		}
		log.Debug("SSE: client disconnected")
	}()

	c.SSEvent("message", "connected")
	c.Writer.Flush()

	ctx := c.Request.Context()
	for {
		select {
		case evt := <-clientChan:
			data, err := json.Marshal(evt.Payload)
			if err != nil {
				log.Errorf("SSE: marshal %s: %v", evt.Type, err)
				continue
			}
			c.SSEvent(string(evt.Type), string(data))
			c.Writer.Flush()
		case <-ctx.Done():
			return
		}
	}
}
