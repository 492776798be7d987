// Package broker implements the Broker collaborator (spec §6): an
// in-process topic trie that fans a published message out to every matching
// subscriber, plus the retained-message table new subscriptions consult.
// Delivery runs through the panjf2000/ants-backed goroutine pool
// internal/goroutine wraps, matching chenquan-lighthouse's use of that pool
// for connection-accept dispatch, generalized here to message fanout.
package broker

import (
	"bytes"
	"context"
	"sync"

	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/goroutine"
	"github.com/beaconmq/beacon/internal/xlog"
	"go.uber.org/zap"
)

var log = xlog.LoggerModule("broker")

// Target is how the Router reaches a matching subscriber; session.Store
// implements this, translating a fanned-out message into a PacketID and an
// engine.Deliver call against the subscriber's connection.
type Target interface {
	Push(ctx context.Context, clientID []byte, msg engine.Message, qos byte) error
}

type subscriber struct {
	clientID []byte
	qos      byte
}

// node is one level of the topic trie; children are keyed by literal level
// name, with dedicated slots for the '+' and '#' wildcard levels.
type node struct {
	children map[string]*node
	plus     *node
	hash     []subscriber
	subs     []subscriber
}

func newNode() *node { return &node{children: map[string]*node{}} }

// Router is the in-process pub/sub fabric. It holds no persistence: a
// subscriber that is offline when Publish runs simply never receives the
// message (queueing/persistence is a named Non-goal, spec §13).
type Router struct {
	mu       sync.RWMutex
	root     *node
	retained map[string]engine.Message
	target   Target
}

// New returns an empty Router. target is notified for every matching
// subscriber at Publish time.
func New(target Target) *Router {
	return &Router{root: newNode(), retained: map[string]engine.Message{}, target: target}
}

func levels(topic []byte) [][]byte {
	return bytes.Split(topic, []byte("/"))
}

// Subscribe registers clientID for filter at qos, returning any retained
// messages that now match (spec's retained-message-on-subscribe handling,
// SPEC_FULL §4.D/§12).
func (r *Router) Subscribe(filter []byte, clientID []byte, qos byte) []engine.Message {
	r.mu.Lock()
	n := r.root
	for _, lvl := range levels(filter) {
		switch string(lvl) {
		case "#":
			n.hash = append(n.hash, subscriber{clientID: clientID, qos: qos})
			r.mu.Unlock()
			return r.matchRetained(filter)
		case "+":
			if n.plus == nil {
				n.plus = newNode()
			}
			n = n.plus
		default:
			child, ok := n.children[string(lvl)]
			if !ok {
				child = newNode()
				n.children[string(lvl)] = child
			}
			n = child
		}
	}
	n.subs = append(n.subs, subscriber{clientID: clientID, qos: qos})
	r.mu.Unlock()
	return r.matchRetained(filter)
}

// Unsubscribe removes clientID from filter's subscriber set.
func (r *Router) Unsubscribe(filter []byte, clientID []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.root
	for _, lvl := range levels(filter) {
		switch string(lvl) {
		case "#":
			n.hash = removeSubscriber(n.hash, clientID)
			return
		case "+":
			if n.plus == nil {
				return
			}
			n = n.plus
		default:
			child, ok := n.children[string(lvl)]
			if !ok {
				return
			}
			n = child
		}
	}
	n.subs = removeSubscriber(n.subs, clientID)
}

func removeSubscriber(subs []subscriber, clientID []byte) []subscriber {
	out := subs[:0]
	for _, s := range subs {
		if !bytes.Equal(s.clientID, clientID) {
			out = append(out, s)
		}
	}
	return out
}

// Publish matches msg.Topic against the trie and pushes it to every
// matching subscriber concurrently via the shared goroutine pool. Retained
// messages are stored/cleared here, not in Session (spec §4.G's
// clean_retain rule is the Deliver-side half of this; this is the
// publish-side half).
func (r *Router) Publish(ctx context.Context, msg engine.Message) error {
	if msg.Retain {
		r.mu.Lock()
		if len(msg.Payload) == 0 {
			delete(r.retained, string(msg.Topic))
		} else {
			r.retained[string(msg.Topic)] = msg
		}
		r.mu.Unlock()
	}

	matches := r.match(msg.Topic)
	for _, s := range matches {
		s := s
		qos := msg.QoS
		if s.qos < qos {
			qos = s.qos
		}
		goroutine.Go(func() {
			if err := r.target.Push(ctx, s.clientID, msg, qos); err != nil {
				log.Debug("push failed", zap.String("client_id", string(s.clientID)), zap.Error(err))
			}
		})
	}
	return nil
}

// PublishWill implements engine.Broker: a will message is just a regular
// published message from the broker's point of view (spec §4.H).
func (r *Router) PublishWill(ctx context.Context, msg engine.Message) error {
	return r.Publish(ctx, msg)
}

func (r *Router) match(topic []byte) []subscriber {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []subscriber
	r.matchNode(r.root, levels(topic), &out)
	return out
}

func (r *Router) matchNode(n *node, lvls [][]byte, out *[]subscriber) {
	if n == nil {
		return
	}
	if len(lvls) == 0 {
		*out = append(*out, n.subs...)
		return
	}
	*out = append(*out, n.hash...)
	if child, ok := n.children[string(lvls[0])]; ok {
		r.matchNode(child, lvls[1:], out)
	}
	r.matchNode(n.plus, lvls[1:], out)
}

func (r *Router) matchRetained(filter []byte) []engine.Message {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []engine.Message
	for topic, msg := range r.retained {
		if filterMatches(filter, []byte(topic)) {
			out = append(out, msg)
		}
	}
	return out
}

func filterMatches(filter, topic []byte) bool {
	fLevels := levels(filter)
	tLevels := levels(topic)
	for i, fl := range fLevels {
		if string(fl) == "#" {
			return true
		}
		if i >= len(tLevels) {
			return false
		}
		if string(fl) != "+" && string(fl) != string(tLevels[i]) {
			return false
		}
	}
	return len(fLevels) == len(tLevels)
}
