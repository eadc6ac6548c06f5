package ws

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pocketlist/pocketlist/pkg/idx"
)

func newTestHub(t *testing.T) *Hub {
	t.Helper()

	h := NewHub(context.Background(), nil)
	go h.Run()
	t.Cleanup(h.Stop)
	return h
}

// testClient builds a client without a live connection; only the send
// channel matters for hub routing.
func testClient(h *Hub, userID idx.ID) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		send:   make(chan []byte, 16),
		hub:    h,
		userID: userID,
		ctx:    ctx,
		cancel: cancel,
	}
}

func waitForClients(t *testing.T, h *Hub, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return h.ClientCount() == n
	}, time.Second, 5*time.Millisecond)
}

func TestSendToUserTargetsAllUserSockets(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	alice := idx.New()
	bob := idx.New()

	a1 := testClient(h, alice)
	a2 := testClient(h, alice)
	b1 := testClient(h, bob)

	h.Register(a1)
	h.Register(a2)
	h.Register(b1)
	waitForClients(t, h, 3)

	expiresAt := time.Now().Add(15 * time.Minute)
	require.NoError(t, h.NotifyTokenExpiring(alice, expiresAt, 30*time.Second))

	for _, c := range []*Client{a1, a2} {
		select {
		case raw := <-c.send:
			var ev Event
			require.NoError(t, json.Unmarshal(raw, &ev))
			require.Equal(t, EventTokenExpiring, ev.Type)

			var payload TokenExpiringPayload
			require.NoError(t, json.Unmarshal(ev.Payload, &payload))
			require.Equal(t, "30s", payload.LeadTime)
		case <-time.After(time.Second):
			t.Fatal("expected event for alice socket")
		}
	}

	select {
	case <-b1.send:
		t.Fatal("bob must not receive alice's event")
	default:
	}
}

func TestSendToUserWithNoSocketsIsNoop(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)
	require.NoError(t, h.SendToUser(idx.New(), Event{Type: EventTokenExpiring}))
}

func TestUnregisterClosesSendChannel(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	c := testClient(h, idx.New())
	h.Register(c)
	waitForClients(t, h, 1)

	h.Unregister(c)
	waitForClients(t, h, 0)

	select {
	case _, ok := <-c.send:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("send channel should be closed")
	}
}

func TestSlowClientIsDropped(t *testing.T) {
	t.Parallel()

	h := newTestHub(t)

	userID := idx.New()
	c := testClient(h, userID)
	c.send = make(chan []byte) // unbuffered and never drained

	h.Register(c)
	waitForClients(t, h, 1)

	require.NoError(t, h.SendToUser(userID, Event{Type: EventTokenExpiring}))
	require.Zero(t, h.ClientCount())
}
