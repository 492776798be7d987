package engine

import (
	"bytes"
	"context"
	"testing"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/hook"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func decodeUnsuback(t *testing.T, version packet.Version, frame []byte) *packet.Unsuback {
	t.Helper()
	fh, err := packet.ReadFixedHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	rest := frame[len(frame)-int(fh.RemainLength):]
	pid := uint16(rest[0])<<8 | uint16(rest[1])
	u := &packet.Unsuback{Version: version, PacketID: pid}
	if version == packet.V5 {
		buf := bytes.NewBuffer(rest[2:])
		_, err := packet.DecodeProperties(buf)
		require.NoError(t, err)
		for _, b := range buf.Bytes() {
			u.Reasons = append(u.Reasons, code.Code(b))
		}
	}
	return u
}

func decodeSuback(t *testing.T, version packet.Version, frame []byte) *packet.Suback {
	t.Helper()
	fh, err := packet.ReadFixedHeader(bytes.NewReader(frame))
	require.NoError(t, err)
	rest := frame[len(frame)-int(fh.RemainLength):]
	pid := uint16(rest[0])<<8 | uint16(rest[1])
	body := rest[2:]
	if version == packet.V5 {
		buf := bytes.NewBuffer(body)
		_, err := packet.DecodeProperties(buf)
		require.NoError(t, err)
		body = buf.Bytes()
	}
	reasons := make([]code.Code, 0, len(body))
	for _, b := range body {
		reasons = append(reasons, code.Code(b))
	}
	return &packet.Suback{Version: version, PacketID: pid, Reasons: reasons}
}

func TestHandleSubscribe_PreservesOrderAndAnnotatesDenials(t *testing.T) {
	c, sp := newTestConn()
	c.ProtoVersion = packet.V5
	filters := []packet.SubFilter{
		{Filter: []byte("a/1"), Options: packet.SubOptions{QoS: 0}},
		{Filter: []byte("a/2"), Options: packet.SubOptions{QoS: 1}},
		{Filter: []byte("a/3"), Options: packet.SubOptions{QoS: 2}},
	}
	caps := new(fakeCaps)
	caps.On("CheckSub", "default", filters).Return([]AnnotatedFilter{
		{Filter: filters[0], Reason: code.Success},
		{Filter: filters[1], Reason: code.QoSNotSupported},
		{Filter: filters[2], Reason: code.Success},
	})
	c.Caps = caps
	session := new(fakeSession)
	session.On("Subscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handleSubscribe(context.Background(), c, &packet.Subscribe{PacketID: 5, Filters: filters})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
	suback := decodeSuback(t, packet.V5, sp.frames[0])
	require.Len(t, suback.Reasons, 3)
	assert.Equal(t, code.Success, suback.Reasons[0])
	assert.Equal(t, code.QoSNotSupported, suback.Reasons[1])
	assert.Equal(t, code.Success, suback.Reasons[2])

	// only the two allowed filters reach Session.Subscribe.
	session.AssertCalled(t, "Subscribe", mock.Anything, mock.Anything, uint16(5), packet.Properties(nil), mock.MatchedBy(func(fs []packet.SubFilter) bool {
		return len(fs) == 2
	}))
}

func TestHandleSubscribe_ACLDeniesNonSuperFilter(t *testing.T) {
	c, sp := newTestConn()
	c.ProtoVersion = packet.V5
	c.EnableACL = true
	filters := []packet.SubFilter{{Filter: []byte("secret/#"), Options: packet.SubOptions{QoS: 0}}}
	acl := new(fakeACL)
	acl.On("CheckACL", mock.Anything, mock.Anything, ActionSubscribe, []byte("secret/#")).Return(false)
	c.ACL = acl

	err := handleSubscribe(context.Background(), c, &packet.Subscribe{PacketID: 1, Filters: filters})

	require.NoError(t, err)
	suback := decodeSuback(t, packet.V5, sp.frames[0])
	require.Len(t, suback.Reasons, 1)
	assert.Equal(t, code.NotAuthorized, suback.Reasons[0])
}

func TestHandleSubscribe_MountsFilterBeforeSessionCall(t *testing.T) {
	c, _ := newTestConn()
	c.Mountpoint = "tenants/t1/"
	var captured []packet.SubFilter
	session := new(fakeSession)
	session.On("Subscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(4).([]packet.SubFilter) }).
		Return(nil)
	c.Session = session

	filters := []packet.SubFilter{{Filter: []byte("sensors/temp"), Options: packet.SubOptions{QoS: 0}}}
	err := handleSubscribe(context.Background(), c, &packet.Subscribe{PacketID: 1, Filters: filters})

	require.NoError(t, err)
	require.Len(t, captured, 1)
	assert.Equal(t, "tenants/t1/sensors/temp", string(captured[0].Filter))
}

func TestHandleUnsubscribe_AppliesMountpointAndAcksSuccess(t *testing.T) {
	c, sp := newTestConn()
	c.Mountpoint = "tenants/t1/"
	var captured [][]byte
	session := new(fakeSession)
	session.On("Unsubscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).([][]byte) }).
		Return(nil)
	c.Session = session

	err := handleUnsubscribe(context.Background(), c, &packet.Unsubscribe{PacketID: 9, Filters: [][]byte{[]byte("sensors/temp")}})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
	require.Len(t, captured, 1)
	assert.Equal(t, "tenants/t1/sensors/temp", string(captured[0]))
}

func TestHandleSubscribe_HookStopOverridesEveryReasonWithImplementationSpecificError(t *testing.T) {
	c, sp := newTestConn()
	c.ProtoVersion = packet.V5
	bus := hook.NewBus()
	bus.Register(hook.ClientSubscribe, func(interface{}) hook.Result { return hook.Stopped(nil) })
	c.Hooks = bus
	filters := []packet.SubFilter{
		{Filter: []byte("a/1"), Options: packet.SubOptions{QoS: 0}},
		{Filter: []byte("a/2"), Options: packet.SubOptions{QoS: 1}},
	}
	session := new(fakeSession)
	session.On("Subscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handleSubscribe(context.Background(), c, &packet.Subscribe{PacketID: 7, Filters: filters})

	require.NoError(t, err)
	suback := decodeSuback(t, packet.V5, sp.frames[0])
	require.Len(t, suback.Reasons, 2)
	assert.Equal(t, code.ImplementationSpecificError, suback.Reasons[0])
	assert.Equal(t, code.ImplementationSpecificError, suback.Reasons[1])
}

func TestHandleSubscribe_HookNotStoppedLeavesReasonsIntact(t *testing.T) {
	c, sp := newTestConn()
	c.ProtoVersion = packet.V5
	bus := hook.NewBus()
	var ran bool
	bus.Register(hook.ClientSubscribe, func(interface{}) hook.Result { ran = true; return hook.Ok(nil) })
	c.Hooks = bus
	filters := []packet.SubFilter{{Filter: []byte("a/1"), Options: packet.SubOptions{QoS: 0}}}
	session := new(fakeSession)
	session.On("Subscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handleSubscribe(context.Background(), c, &packet.Subscribe{PacketID: 8, Filters: filters})

	require.NoError(t, err)
	assert.True(t, ran)
	suback := decodeSuback(t, packet.V5, sp.frames[0])
	require.Len(t, suback.Reasons, 1)
	assert.Equal(t, code.Success, suback.Reasons[0])
}

func TestHandleUnsubscribe_HookStopOverridesEveryReasonWithImplementationSpecificError(t *testing.T) {
	c, sp := newTestConn()
	c.ProtoVersion = packet.V5
	bus := hook.NewBus()
	bus.Register(hook.ClientUnsubscribe, func(interface{}) hook.Result { return hook.Stopped(nil) })
	c.Hooks = bus
	session := new(fakeSession)
	session.On("Unsubscribe", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handleUnsubscribe(context.Background(), c, &packet.Unsubscribe{PacketID: 3, Filters: [][]byte{[]byte("a/1"), []byte("a/2")}})

	require.NoError(t, err)
	unsuback := decodeUnsuback(t, packet.V5, sp.frames[0])
	require.Len(t, unsuback.Reasons, 2)
	assert.Equal(t, code.ImplementationSpecificError, unsuback.Reasons[0])
	assert.Equal(t, code.ImplementationSpecificError, unsuback.Reasons[1])
}
