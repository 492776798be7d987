// Package session implements the Session collaborator (spec §6): the
// long-lived per-client state that owns subscriptions and forwards
// published messages to the broker. Explicitly non-persistent — a process
// restart loses every session, matching the persistence Non-goal (spec
// §13); clean_start is therefore close to a no-op here (there is never a
// prior session to resume across a restart, only within the process
// lifetime).
package session

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/packet"
)

// PushFunc is how a Store reaches a live connection once a subscription
// matches: the transport layer supplies one per connection via AttachTarget,
// wrapping engine.Deliver.
type PushFunc = func(ctx context.Context, ev engine.Event) error

// Router is the subset of broker.Router a Store needs: subscribe/unsubscribe
// plus publish. Declared here, implemented there, to avoid session
// importing broker's concrete type.
type Router interface {
	Subscribe(filter []byte, clientID []byte, qos byte) []engine.Message
	Unsubscribe(filter []byte, clientID []byte)
	Publish(ctx context.Context, msg engine.Message) error
}

type client struct {
	clientID     []byte
	mu           sync.Mutex
	subs         map[string]byte
	nextPacketID uint32
	push         PushFunc
}

func (c *client) allocatePacketID() uint16 {
	for {
		id := uint16(atomic.AddUint32(&c.nextPacketID, 1))
		if id != 0 {
			return id
		}
	}
}

// Store is the in-memory Session collaborator, keyed by client id.
type Store struct {
	router Router

	mu      sync.Mutex
	clients map[string]*client
}

// New returns an empty Store backed by router for publish/subscribe fanout.
func New(router Router) *Store {
	return &Store{router: router, clients: map[string]*client{}}
}

// AttachTarget registers push as the delivery path for clientID's live
// connection. The transport layer calls this once CONNECT has resolved the
// final client id (spec §4.C step 4/6), and the Store's Push (the
// broker.Target it satisfies) uses it to turn a fanned-out message into an
// engine.Deliver call.
func (s *Store) AttachTarget(clientID []byte, push PushFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.clientFor(clientID)
	c.mu.Lock()
	c.push = push
	c.mu.Unlock()
}

// DetachTarget clears the delivery path, called by the transport layer once
// a connection has shut down so a closed connection stops receiving pushes.
func (s *Store) DetachTarget(clientID []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.clients[string(clientID)]; ok {
		c.mu.Lock()
		c.push = nil
		c.mu.Unlock()
	}
}

func (s *Store) clientFor(clientID []byte) *client {
	key := string(clientID)
	c, ok := s.clients[key]
	if !ok {
		c = &client{clientID: append([]byte(nil), clientID...), subs: map[string]byte{}}
		s.clients[key] = c
	}
	return c
}

// Open implements engine.Session. sessionPresent is true only when a prior,
// not-clean-started session for this client id is still resident in this
// process.
func (s *Store) Open(_ context.Context, params engine.OpenParams) (engine.SessionHandle, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, existed := s.clients[string(params.ClientID)]
	if params.CleanStart || !existed {
		if existed {
			s.unsubscribeAllLocked(c)
		}
		c = &client{clientID: append([]byte(nil), params.ClientID...), subs: map[string]byte{}}
		s.clients[string(params.ClientID)] = c
		return c, false, nil
	}
	return c, true, nil
}

func (s *Store) unsubscribeAllLocked(c *client) {
	for filter := range c.subs {
		s.router.Unsubscribe([]byte(filter), c.clientID)
	}
}

func handleOf(handle engine.SessionHandle) (*client, bool) {
	c, ok := handle.(*client)
	return c, ok
}

// Publish implements engine.Session.
func (s *Store) Publish(ctx context.Context, _ engine.SessionHandle, _ uint16, msg engine.Message) error {
	return s.router.Publish(ctx, msg)
}

// Puback, Pubrec, Pubrel and Pubcomp implement engine.Session. This
// reference Store keeps no authoritative in-flight table of its own (QoS>0
// redelivery on reconnect is out of scope without persistence); these calls
// are bookkeeping hooks only.
func (s *Store) Puback(context.Context, engine.SessionHandle, uint16, code.Code) error  { return nil }
func (s *Store) Pubrec(context.Context, engine.SessionHandle, uint16, code.Code) error  { return nil }
func (s *Store) Pubrel(context.Context, engine.SessionHandle, uint16, code.Code) error  { return nil }
func (s *Store) Pubcomp(context.Context, engine.SessionHandle, uint16, code.Code) error { return nil }

// Subscribe implements engine.Session: register each filter with the
// router and immediately deliver any retained messages that now match.
func (s *Store) Subscribe(ctx context.Context, handle engine.SessionHandle, _ uint16, _ packet.Properties, filters []packet.SubFilter) error {
	c, ok := handleOf(handle)
	if !ok {
		return nil
	}
	for _, f := range filters {
		c.mu.Lock()
		c.subs[string(f.Filter)] = f.Options.QoS
		push := c.push
		c.mu.Unlock()

		retained := s.router.Subscribe(f.Filter, c.clientID, f.Options.QoS)
		if push == nil {
			continue
		}
		for _, msg := range retained {
			msg.Headers = map[string]bool{"retained": true}
			pid := uint16(0)
			qos := f.Options.QoS
			if msg.QoS < qos {
				qos = msg.QoS
			}
			if qos > 0 {
				pid = c.allocatePacketID()
			}
			_ = push(ctx, engine.Event{Kind: engine.EventPublish, PacketID: pid, Message: msg})
		}
	}
	return nil
}

// Unsubscribe implements engine.Session.
func (s *Store) Unsubscribe(_ context.Context, handle engine.SessionHandle, _ uint16, filters [][]byte) error {
	c, ok := handleOf(handle)
	if !ok {
		return nil
	}
	for _, f := range filters {
		c.mu.Lock()
		delete(c.subs, string(f))
		c.mu.Unlock()
		s.router.Unsubscribe(f, c.clientID)
	}
	return nil
}

// Push implements broker.Target: it looks up the client's live delivery
// path and, if connected, allocates a packet identifier (for QoS>0) and
// hands the message to engine.Deliver via the attached PushFunc.
func (s *Store) Push(ctx context.Context, clientID []byte, msg engine.Message, qos byte) error {
	s.mu.Lock()
	c, ok := s.clients[string(clientID)]
	s.mu.Unlock()
	if !ok {
		return nil
	}
	c.mu.Lock()
	push := c.push
	c.mu.Unlock()
	if push == nil {
		return nil // subscriber offline; no persistence to queue into (spec §13).
	}

	msg.QoS = qos
	pid := uint16(0)
	if qos > 0 {
		pid = c.allocatePacketID()
	}
	return push(ctx, engine.Event{Kind: engine.EventPublish, PacketID: pid, Message: msg})
}
