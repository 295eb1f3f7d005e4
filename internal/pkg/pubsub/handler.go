package pubsub

import (
	"context"

	gcppubsub "cloud.google.com/go/pubsub"
)

type SubscriptionHandler struct {
	SubscriptionId string
	Handler        func(ctx context.Context, message *gcppubsub.Message)
}
