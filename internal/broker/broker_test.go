package broker

import (
	"context"
	"testing"
	"time"

	"github.com/beaconmq/beacon/internal/engine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type push struct {
	clientID []byte
	msg      engine.Message
	qos      byte
}

type recordingTarget struct {
	pushed chan push
}

func newRecordingTarget() *recordingTarget {
	return &recordingTarget{pushed: make(chan push, 16)}
}

func (t *recordingTarget) Push(_ context.Context, clientID []byte, msg engine.Message, qos byte) error {
	t.pushed <- push{clientID: clientID, msg: msg, qos: qos}
	return nil
}

func (t *recordingTarget) drain(n int, d time.Duration) []push {
	var out []push
	deadline := time.After(d)
	for len(out) < n {
		select {
		case p := <-t.pushed:
			out = append(out, p)
		case <-deadline:
			return out
		}
	}
	return out
}

func TestSubscribeThenPublish_ExactTopic(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("a/b"), []byte("client-1"), 1)

	err := r.Publish(context.Background(), engine.Message{Topic: []byte("a/b"), Payload: []byte("hi"), QoS: 1})

	require.NoError(t, err)
	got := target.drain(1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, []byte("client-1"), got[0].clientID)
}

func TestPublish_DowngradesQoSToSubscriberCeiling(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("a/b"), []byte("client-1"), 0)

	err := r.Publish(context.Background(), engine.Message{Topic: []byte("a/b"), QoS: 2})

	require.NoError(t, err)
	got := target.drain(1, time.Second)
	require.Len(t, got, 1)
	assert.Equal(t, byte(0), got[0].qos)
}

func TestPublish_PlusWildcardMatchesSingleLevel(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("a/+/c"), []byte("client-1"), 0)

	err := r.Publish(context.Background(), engine.Message{Topic: []byte("a/x/c")})

	require.NoError(t, err)
	got := target.drain(1, time.Second)
	require.Len(t, got, 1)
}

func TestPublish_HashWildcardMatchesMultipleLevels(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("a/#"), []byte("client-1"), 0)

	err := r.Publish(context.Background(), engine.Message{Topic: []byte("a/b/c/d")})

	require.NoError(t, err)
	got := target.drain(1, time.Second)
	require.Len(t, got, 1)
}

func TestUnsubscribe_StopsFurtherDelivery(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("a/b"), []byte("client-1"), 0)
	r.Unsubscribe([]byte("a/b"), []byte("client-1"))

	err := r.Publish(context.Background(), engine.Message{Topic: []byte("a/b")})

	require.NoError(t, err)
	got := target.drain(1, 150*time.Millisecond)
	assert.Empty(t, got)
}

func TestSubscribe_ReturnsMatchingRetainedMessages(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	require.NoError(t, r.Publish(context.Background(), engine.Message{Topic: []byte("a/b"), Payload: []byte("retained"), Retain: true}))

	retained := r.Subscribe([]byte("a/+"), []byte("client-2"), 0)

	require.Len(t, retained, 1)
	assert.Equal(t, []byte("retained"), retained[0].Payload)
}

func TestPublish_EmptyPayloadClearsRetainedMessage(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	require.NoError(t, r.Publish(context.Background(), engine.Message{Topic: []byte("a/b"), Payload: []byte("x"), Retain: true}))
	require.NoError(t, r.Publish(context.Background(), engine.Message{Topic: []byte("a/b"), Payload: nil, Retain: true}))

	retained := r.Subscribe([]byte("a/b"), []byte("client-3"), 0)

	assert.Empty(t, retained)
}

func TestPublishWill_DeliversLikeAnOrdinaryPublish(t *testing.T) {
	target := newRecordingTarget()
	r := New(target)
	r.Subscribe([]byte("status/offline"), []byte("client-1"), 0)

	err := r.PublishWill(context.Background(), engine.Message{Topic: []byte("status/offline")})

	require.NoError(t, err)
	got := target.drain(1, time.Second)
	require.Len(t, got, 1)
}
