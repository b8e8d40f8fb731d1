package stream

import (
	"context"
	"log"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Hub fans classified-fix payloads out to websocket subscribers, one channel
// per device. A redis client bridges broadcasts across instances; nil
// disables the bridge.
type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	DeviceID string
	Send     chan []byte
}

func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		redis:   redisClient,
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		go h.subscribeRedis()
	}
	return h
}

func (h *Hub) Register(deviceID string) *Client {
	client := &Client{
		DeviceID: deviceID,
		Send:     make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[deviceID] == nil {
		h.clients[deviceID] = map[*Client]struct{}{}
	}
	h.clients[deviceID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if deviceClients, ok := h.clients[client.DeviceID]; ok {
		delete(deviceClients, client)
		if len(deviceClients) == 0 {
			delete(h.clients, client.DeviceID)
		}
	}
	close(client.Send)
}

// Broadcast delivers a payload to every subscriber of the device. With a
// redis bridge, delivery routes through the publish/subscribe loop so local
// clients receive each payload exactly once across instances; without one,
// fan-out is direct.
func (h *Hub) Broadcast(deviceID string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(deviceID), payload).Err()
		if err != nil {
			log.Printf("redis publish error: %v", err)
		}
		return
	}

	h.fanOut(deviceID, payload)
}

// fanOut sends to local subscribers. Sends stay under the read lock so
// Unregister cannot close a channel mid-send; slow clients are dropped
// rather than blocked on.
func (h *Hub) fanOut(deviceID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients[deviceID] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) subscribeRedis() {
	ctx := context.Background()
	pubsub := h.redis.PSubscribe(ctx, "explore:*:feed")
	defer pubsub.Close()

	for msg := range pubsub.Channel() {
		h.fanOut(deviceIDFromChannel(msg.Channel), []byte(msg.Payload))
	}
}

func redisChannel(deviceID string) string {
	return "explore:" + deviceID + ":feed"
}

func deviceIDFromChannel(ch string) string {
	// explore:{device}:feed
	const prefix = "explore:"
	const suffix = ":feed"
	if len(ch) <= len(prefix)+len(suffix) {
		return ""
	}
	return ch[len(prefix) : len(ch)-len(suffix)]
}
