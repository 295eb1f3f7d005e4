package ws

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/duel"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/pubsub"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/utils"
	"github.com/kollektive-hackathon/clash-duels-backend/internal/pkg/ws"
	"github.com/rs/zerolog/log"
)

// HubPublisher delivers duel events straight to local websocket listeners.
type HubPublisher struct {
	hub *ws.WebSocketNotificationHub
}

func NewHubPublisher(hub *ws.WebSocketNotificationHub) *HubPublisher {
	return &HubPublisher{hub: hub}
}

func (p *HubPublisher) Publish(_ context.Context, message pubsub.Publishable) {
	event, ok := message.(duel.DuelEvent)
	if !ok {
		return
	}
	p.hub.Publish(event.DuelId, event)
}

// EventRelay returns a subscription handler that forwards duel events received
// from Pub/Sub to this instance's websocket listeners.
func EventRelay(subscriptionId string, hub *ws.WebSocketNotificationHub) pubsub.SubscriptionHandler {
	return pubsub.SubscriptionHandler{
		SubscriptionId: subscriptionId,
		Handler: func(ctx context.Context, message *gcppubsub.Message) {
			event, err := utils.JsonDecodeByteStream[duel.DuelEvent](message.Data)
			if err != nil {
				log.Warn().Err(err).Str("messageId", message.ID).Msg("Dropping undecodable duel event")
				message.Ack()
				return
			}
			hub.Publish(event.DuelId, *event)
			message.Ack()
		},
	}
}
