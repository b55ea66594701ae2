package gateway

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	chatChannelPrefix = "gw:chat:"
	globalChannel     = "gw:global"
)

// Bridge relays broadcasts between gateway instances over Redis pub/sub.
// Frames are tagged with the publishing instance so a process never
// re-delivers its own local broadcasts.
type Bridge struct {
	rdb    *redis.Client
	hub    *Hub
	origin string
	logger *zap.Logger
}

type bridgeFrame struct {
	Origin string          `json:"origin"`
	ChatID string          `json:"chatId,omitempty"`
	Data   json.RawMessage `json:"data"`
}

func NewBridge(rdb *redis.Client, hub *Hub, logger *zap.Logger) *Bridge {
	return &Bridge{
		rdb:    rdb,
		hub:    hub,
		origin: uuid.NewString(),
		logger: logger,
	}
}

// Run consumes remote frames until ctx is cancelled. Call in a goroutine.
func (b *Bridge) Run(ctx context.Context) {
	pubsub := b.rdb.PSubscribe(ctx, chatChannelPrefix+"*")
	defer pubsub.Close()
	if err := pubsub.Subscribe(ctx, globalChannel); err != nil {
		b.logger.Error("failed to subscribe to global channel", zap.Error(err))
	}

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var frame bridgeFrame
			if err := json.Unmarshal([]byte(msg.Payload), &frame); err != nil {
				b.logger.Warn("invalid bridge frame", zap.Error(err))
				continue
			}
			if frame.Origin == b.origin {
				continue
			}
			if frame.ChatID == "" {
				b.hub.BroadcastAll(frame.Data, nil)
				continue
			}
			chatID, err := uuid.Parse(frame.ChatID)
			if err != nil {
				continue
			}
			b.hub.BroadcastRoom(chatID, frame.Data, nil)
		}
	}
}

func (b *Bridge) PublishRoom(ctx context.Context, chatID uuid.UUID, data []byte) {
	frame, err := json.Marshal(bridgeFrame{Origin: b.origin, ChatID: chatID.String(), Data: data})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, chatChannelPrefix+chatID.String(), frame).Err(); err != nil {
		b.logger.Warn("failed to publish room frame", zap.Error(err))
	}
}

func (b *Bridge) PublishGlobal(ctx context.Context, data []byte) {
	frame, err := json.Marshal(bridgeFrame{Origin: b.origin, Data: data})
	if err != nil {
		return
	}
	if err := b.rdb.Publish(ctx, globalChannel, frame).Err(); err != nil {
		b.logger.Warn("failed to publish global frame", zap.Error(err))
	}
}
