package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const bridgeChannelPrefix = "fanout:"

// envelope carries an event across instances. Origin lets each instance skip
// messages it published itself, since redis echoes to all subscribers.
type envelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// Bridge fans events out across service instances through redis pub/sub.
// Local clients still receive events even when redis is down; only
// cross-instance delivery degrades.
type Bridge struct {
	hub      *Hub
	rdb      *redis.Client
	instance string
	log      zerolog.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

var _ Publisher = (*Bridge)(nil)

func NewBridge(hub *Hub, rdb *redis.Client, log zerolog.Logger) *Bridge {
	return &Bridge{
		hub:      hub,
		rdb:      rdb,
		instance: uuid.NewString(),
		log:      log.With().Str("component", "realtime_bridge").Logger(),
	}
}

// Publish delivers locally first, then mirrors to other instances.
func (b *Bridge) Publish(tenantID string, event Event) {
	b.hub.Publish(tenantID, event)

	payload, err := json.Marshal(envelope{Origin: b.instance, Event: event})
	if err != nil {
		b.log.Error().Err(err).Msg("failed to encode fanout envelope")
		return
	}
	if err := b.rdb.Publish(context.Background(), bridgeChannelPrefix+tenantID, payload).Err(); err != nil {
		b.log.Warn().Err(err).Str("tenant_id", tenantID).Msg("redis publish failed, event delivered locally only")
	}
}

// Start subscribes to all tenant channels and feeds remote events into the
// local hub until Stop is called.
func (b *Bridge) Start() {
	b.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		b.cancel = cancel
		sub := b.rdb.PSubscribe(ctx, bridgeChannelPrefix+"*")

		b.wg.Add(1)
		go func() {
			defer b.wg.Done()
			defer sub.Close()
			ch := sub.Channel()
			for {
				select {
				case <-ctx.Done():
					return
				case msg, ok := <-ch:
					if !ok {
						return
					}
					b.handle(msg)
				}
			}
		}()
		b.log.Info().Str("instance", b.instance).Msg("realtime bridge started")
	})
}

func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		if b.cancel != nil {
			b.cancel()
		}
		b.wg.Wait()
	})
}

func (b *Bridge) handle(msg *redis.Message) {
	var env envelope
	if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
		b.log.Warn().Err(err).Str("channel", msg.Channel).Msg("dropping malformed fanout envelope")
		return
	}
	if env.Origin == b.instance {
		return
	}
	tenantID := strings.TrimPrefix(msg.Channel, bridgeChannelPrefix)
	b.hub.Publish(tenantID, env.Event)
}
