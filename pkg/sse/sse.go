package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// Hub 按主题（topic）推送服务端事件，转写状态变更走这里通知订阅端
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*client
	topics   map[string]map[string]bool // topic -> clientID set
	interval time.Duration
	retryMs  int
}

type client struct {
	id     string
	topics map[string]bool
	ch     chan string
	done   chan struct{}
}

func NewHub(pingInterval time.Duration) *Hub {
	if pingInterval <= 0 {
		pingInterval = 30 * time.Second
	}
	return &Hub{
		clients:  make(map[string]*client),
		topics:   make(map[string]map[string]bool),
		interval: pingInterval,
		retryMs:  5000,
	}
}

func (h *Hub) addClient(topic string) *client {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := &client{
		id:     uuid.NewString(),
		topics: map[string]bool{topic: true},
		ch:     make(chan string, 64),
		done:   make(chan struct{}),
	}
	h.clients[c.id] = c
	if h.topics[topic] == nil {
		h.topics[topic] = make(map[string]bool)
	}
	h.topics[topic][c.id] = true
	return c
}

func (h *Hub) removeClient(id string) {
	h.mu.Lock()
	if c, ok := h.clients[id]; ok {
		close(c.done)
		for t := range c.topics {
			delete(h.topics[t], id)
		}
		delete(h.clients, id)
	}
	h.mu.Unlock()
}

// PublishJSON 向一个主题的所有订阅者推送 JSON 事件，慢客户端直接丢弃
func (h *Hub) PublishJSON(topic string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	msg := fmt.Sprintf("data: %s\n\n", b)
	h.mu.RLock()
	for id := range h.topics[topic] {
		if c := h.clients[id]; c != nil {
			select {
			case c.ch <- msg:
			default:
			}
		}
	}
	h.mu.RUnlock()
}

// Subscribers 主题当前订阅数
func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Serve 把请求挂成一条 SSE 流，订阅单个主题，连接断开自动清理
//
// initial 不为空时在订阅建立后立即作为首个事件推送。
func (h *Hub) Serve(c *gin.Context, topic string, initial ...interface{}) {
	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.Status(http.StatusInternalServerError)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.Writer.Header().Set("X-Accel-Buffering", "no")
	fmt.Fprintf(c.Writer, "retry: %d\n\n", h.retryMs)
	flusher.Flush()

	cl := h.addClient(topic)
	defer h.removeClient(cl.id)

	for _, v := range initial {
		if b, err := json.Marshal(v); err == nil {
			fmt.Fprintf(c.Writer, "data: %s\n\n", b)
			flusher.Flush()
		}
	}

	ping := time.NewTicker(h.interval)
	defer ping.Stop()

	for {
		select {
		case <-cl.done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			fmt.Fprintf(c.Writer, "event: ping\ndata: {}\n\n")
			flusher.Flush()
		case msg := <-cl.ch:
			c.Writer.Write([]byte(msg))
			flusher.Flush()
		}
	}
}
