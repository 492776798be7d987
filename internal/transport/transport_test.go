package transport

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/beaconmq/beacon/config"
	"github.com/beaconmq/beacon/internal/acl"
	"github.com/beaconmq/beacon/internal/broker"
	"github.com/beaconmq/beacon/internal/capability"
	"github.com/beaconmq/beacon/internal/connmgr"
	"github.com/beaconmq/beacon/internal/engine"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/metrics"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/beaconmq/beacon/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFrame is an in-memory frameConn: ReadPacket drains a preloaded queue,
// WriteBytes records raw frames, Close marks the connection dead so any
// further ReadPacket returns io.EOF.
type fakeFrame struct {
	queue  []packet.Packet
	pos    int
	writes [][]byte
	closed bool
}

func (f *fakeFrame) ReadPacket(uint32, packet.Version) (packet.Packet, error) {
	if f.closed || f.pos >= len(f.queue) {
		return nil, io.EOF
	}
	p := f.queue[f.pos]
	f.pos++
	return p, nil
}

func (f *fakeFrame) WriteBytes(b []byte) error {
	f.writes = append(f.writes, append([]byte(nil), b...))
	return nil
}

func (f *fakeFrame) Close() error       { f.closed = true; return nil }
func (f *fakeFrame) RemoteAddr() string { return "fake:0" }

// targetAdapter breaks the broker.Router/session.Store construction cycle:
// both need a reference to the other before either can be built.
type targetAdapter struct{ store *session.Store }

func (t *targetAdapter) Push(ctx context.Context, clientID []byte, msg engine.Message, qos byte) error {
	return t.store.Push(ctx, clientID, msg, qos)
}

func newTestCollaborators() Collaborators {
	adapter := &targetAdapter{}
	router := broker.New(adapter)
	store := session.New(router)
	adapter.store = store

	return Collaborators{
		Session:       store,
		ACL:           acl.New(),
		Caps:          capability.New(nil),
		ConnMgr:       connmgr.New(),
		BrokerRouting: router,
		Hooks:         hook.NewBus(),
		Metrics:       metrics.New(),
		Attach:        store.AttachTarget,
		Detach:        store.DetachTarget,
	}
}

func TestServe_ConnectThenDisconnectRunsShutdownExactlyOnce(t *testing.T) {
	fc := &fakeFrame{queue: []packet.Packet{
		&packet.Connect{
			Version:      packet.V3_1_1,
			ProtocolName: []byte("MQTT"),
			ClientId:     []byte("c1"),
			ConnectFlags: packet.ConnectFlags{CleanSession: true},
		},
		&packet.Disconnect{},
	}}
	s := New(":0", ":0", "default", config.DefaultZone(), newTestCollaborators())

	s.serve(fc)

	require.Len(t, fc.writes, 1, "only the CONNACK is sent; DISCONNECT from the client gets no reply")
	assert.True(t, fc.closed)
}

func TestServe_TransportCloseWithoutDisconnectStillUnregisters(t *testing.T) {
	fc := &fakeFrame{queue: []packet.Packet{
		&packet.Connect{
			Version:      packet.V3_1_1,
			ProtocolName: []byte("MQTT"),
			ClientId:     []byte("c2"),
			ConnectFlags: packet.ConnectFlags{CleanSession: true},
		},
	}}
	collab := newTestCollaborators()
	reg := collab.ConnMgr.(*connmgr.Registry)
	s := New(":0", ":0", "default", config.DefaultZone(), collab)

	s.serve(fc)

	assert.Equal(t, 0, reg.Count(), "serve's deferred Shutdown must unregister even on a bare transport close")
}

func TestNew_WiresFieldsFromConstructorArgs(t *testing.T) {
	zone := config.Zone{MaxQoS: 1}
	collab := Collaborators{}

	s := New(":1883", ":8083", "default", zone, collab)

	assert.Equal(t, ":1883", s.tcpListen)
	assert.Equal(t, ":8083", s.wsListen)
	assert.Equal(t, "default", s.zoneName)
	assert.Equal(t, zone, s.zone)
}

func TestStop_NoopWhenNothingListening(t *testing.T) {
	s := New(":0", ":0", "default", config.Zone{}, Collaborators{})

	err := s.Stop(context.Background())

	assert.NoError(t, err)
}

func TestSelfHandle_ArmThenCancelStopsFire(t *testing.T) {
	self := &selfHandle{}
	fired := make(chan struct{}, 1)
	self.onFire = func() { fired <- struct{}{} }

	self.ArmKeepalive(20 * time.Millisecond)
	self.CancelKeepalive()

	select {
	case <-fired:
		t.Fatal("onFire must not run after CancelKeepalive")
	case <-time.After(60 * time.Millisecond):
	}
}

func TestSelfHandle_ArmFiresOnExpiry(t *testing.T) {
	self := &selfHandle{}
	fired := make(chan struct{}, 1)
	self.onFire = func() { fired <- struct{}{} }

	self.ArmKeepalive(10 * time.Millisecond)

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("onFire never ran")
	}
}

func TestSelfHandle_RearmCancelsPriorTimer(t *testing.T) {
	self := &selfHandle{}
	var fireCount int
	done := make(chan struct{}, 4)
	self.onFire = func() { fireCount++; done <- struct{}{} }

	self.ArmKeepalive(10 * time.Millisecond)
	self.ArmKeepalive(10 * time.Millisecond) // cancels the first timer

	<-done
	select {
	case <-done:
		t.Fatal("rearming must cancel the prior timer, not leave it pending")
	case <-time.After(60 * time.Millisecond):
	}
	require.Equal(t, 1, fireCount)
}
