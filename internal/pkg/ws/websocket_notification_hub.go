package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
)

// WriteTimeout bounds one write to one listener. Publishing runs inside duel
// transitions, so a stalled peer must not hold them up longer than this.
const WriteTimeout = 2 * time.Second

var singletonMutex sync.Mutex

// WebSocketNotificationHub fans events out to connections grouped by topic.
// A topic is a duel id.
type WebSocketNotificationHub struct {
	registrationMutex sync.Mutex
	listeners         map[string][]*websocket.Conn
	writeTimeout      time.Duration
}

func (hub *WebSocketNotificationHub) RegisterListener(topic string, conn *websocket.Conn) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	hub.listeners[topic] = append(hub.listeners[topic], conn)
}

func (hub *WebSocketNotificationHub) UnregisterListener(topic string, conn *websocket.Conn) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	remaining := hub.listeners[topic][:0]
	for _, listener := range hub.listeners[topic] {
		if listener != conn {
			remaining = append(remaining, listener)
		}
	}
	if len(remaining) == 0 {
		delete(hub.listeners, topic)
		return
	}
	hub.listeners[topic] = remaining
}

// Publish writes event to every listener of targetTopic. Writes happen under the
// hub lock because a websocket connection supports only one concurrent writer.
// A listener whose write fails or times out is closed and dropped.
func (hub *WebSocketNotificationHub) Publish(targetTopic string, event any) {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	listeners := hub.listeners[targetTopic]
	if len(listeners) == 0 {
		return
	}

	payload := utils.JsonEncode(event)
	remaining := listeners[:0]
	for _, listener := range listeners {
		if err := hub.write(listener, payload); err != nil {
			log.Debug().Err(err).Str("topic", targetTopic).Msg("Dropping broken websocket listener")
			_ = listener.Close()
			continue
		}
		remaining = append(remaining, listener)
	}
	if len(remaining) == 0 {
		delete(hub.listeners, targetTopic)
		return
	}
	hub.listeners[targetTopic] = remaining
}

func (hub *WebSocketNotificationHub) write(listener *websocket.Conn, payload []byte) error {
	if err := listener.SetWriteDeadline(time.Now().Add(hub.writeTimeout)); err != nil {
		return err
	}
	return listener.WriteMessage(websocket.TextMessage, payload)
}

func (hub *WebSocketNotificationHub) ListenerCount(topic string) int {
	hub.registrationMutex.Lock()
	defer hub.registrationMutex.Unlock()

	return len(hub.listeners[topic])
}

var notificationHubSingleton *WebSocketNotificationHub

func NewNotificationHub() *WebSocketNotificationHub {
	singletonMutex.Lock()
	defer singletonMutex.Unlock()

	if notificationHubSingleton == nil {
		notificationHubSingleton = NewStandaloneHub()
	}

	return notificationHubSingleton
}

// NewStandaloneHub returns a hub that is not shared with NewNotificationHub callers.
func NewStandaloneHub() *WebSocketNotificationHub {
	return &WebSocketNotificationHub{
		listeners:    make(map[string][]*websocket.Conn),
		writeTimeout: WriteTimeout,
	}
}
