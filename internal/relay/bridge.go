package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const bridgeChannel = "relay:highlights"

type bridgeEnvelope struct {
	Origin  string          `json:"origin"`
	Payload json.RawMessage `json:"payload"`
}

// Bridge crosses highlight events between relay instances over Redis
// pub/sub so clients connected to different instances still see each
// other's highlights.
type Bridge struct {
	client     *redis.Client
	instanceID string
}

func NewBridge(redisURL string) (*Bridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return &Bridge{client: client, instanceID: uuid.NewString()}, nil
}

func (b *Bridge) Close() error {
	return b.client.Close()
}

// Publish sends a payload to every other relay instance. Best-effort:
// failures are logged, never surfaced.
func (b *Bridge) Publish(payload []byte) {
	env, err := json.Marshal(bridgeEnvelope{Origin: b.instanceID, Payload: payload})
	if err != nil {
		log.Printf("relay: marshal bridge envelope: %v", err)
		return
	}
	if err := b.client.Publish(context.Background(), bridgeChannel, env).Err(); err != nil {
		log.Printf("relay: bridge publish failed: %v", err)
	}
}

// Run subscribes to the bridge channel and injects payloads from other
// instances into the hub until ctx is cancelled.
func (b *Bridge) Run(ctx context.Context, hub *Hub) {
	pubsub := b.client.Subscribe(ctx, bridgeChannel)
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var env bridgeEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				log.Printf("relay: dropping bad bridge envelope: %v", err)
				continue
			}
			if env.Origin == b.instanceID {
				continue
			}
			hub.deliverRemote(env.Payload)
		case <-ctx.Done():
			return
		}
	}
}
