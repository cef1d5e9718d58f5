package realtime_test

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zapdesk/services/routing-api/internal/realtime"
)

func TestPublishReachesRegisteredClient(t *testing.T) {
	hub := realtime.NewHub(4, zerolog.Nop())
	client := hub.Register("tenant-1", "client-a")
	defer hub.Unregister(client)

	hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventNewMessage, ConversationID: "conv_1"})

	select {
	case event := <-client.Events():
		assert.Equal(t, realtime.EventNewMessage, event.Kind)
		assert.Equal(t, "conv_1", event.ConversationID)
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestPublishIsTenantScoped(t *testing.T) {
	hub := realtime.NewHub(4, zerolog.Nop())
	a := hub.Register("tenant-1", "client-a")
	b := hub.Register("tenant-2", "client-b")
	defer hub.Unregister(a)
	defer hub.Unregister(b)

	hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventStatusChanged})

	select {
	case <-a.Events():
	default:
		t.Fatal("tenant-1 client should have received the event")
	}
	select {
	case <-b.Events():
		t.Fatal("tenant-2 client must not see tenant-1 events")
	default:
	}
}

func TestSlowClientDropsInsteadOfBlocking(t *testing.T) {
	hub := realtime.NewHub(2, zerolog.Nop())
	client := hub.Register("tenant-1", "client-a")
	defer hub.Unregister(client)

	// Never reading: the third publish must not block the publisher.
	for i := 0; i < 5; i++ {
		hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventNewMessage})
	}

	received := 0
	for {
		select {
		case <-client.Events():
			received++
			continue
		default:
		}
		break
	}
	assert.Equal(t, 2, received, "overflow events are dropped, not queued")
}

func TestUnregisterClosesEventChannel(t *testing.T) {
	hub := realtime.NewHub(4, zerolog.Nop())
	client := hub.Register("tenant-1", "client-a")

	hub.Unregister(client)

	_, open := <-client.Events()
	assert.False(t, open)
	assert.Zero(t, hub.ClientCount("tenant-1"))

	// Publishing to an empty tenant is a no-op.
	hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventNewMessage})
}

func TestReRegisterReplacesStaleClient(t *testing.T) {
	hub := realtime.NewHub(4, zerolog.Nop())
	stale := hub.Register("tenant-1", "client-a")
	fresh := hub.Register("tenant-1", "client-a")
	defer hub.Unregister(fresh)

	require.Equal(t, 1, hub.ClientCount("tenant-1"))

	// The stale connection's channel is closed so its write pump exits.
	_, open := <-stale.Events()
	assert.False(t, open)

	hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventOwnershipChanged})
	select {
	case event := <-fresh.Events():
		assert.Equal(t, realtime.EventOwnershipChanged, event.Kind)
	default:
		t.Fatal("replacement client should receive events")
	}
}

func TestStaleTeardownKeepsFreshClient(t *testing.T) {
	hub := realtime.NewHub(4, zerolog.Nop())
	stale := hub.Register("tenant-1", "client-a")
	fresh := hub.Register("tenant-1", "client-a")

	// The old handler goroutine tears down after the reconnect landed. The
	// fresh registration must survive it.
	hub.Unregister(stale)
	require.Equal(t, 1, hub.ClientCount("tenant-1"))

	hub.Publish("tenant-1", realtime.Event{Kind: realtime.EventNewMessage})
	select {
	case event, open := <-fresh.Events():
		require.True(t, open, "fresh client channel must stay open")
		assert.Equal(t, realtime.EventNewMessage, event.Kind)
	default:
		t.Fatal("fresh client should still receive events")
	}

	hub.Unregister(fresh)
	assert.Zero(t, hub.ClientCount("tenant-1"))
	_, open := <-fresh.Events()
	assert.False(t, open)
}
