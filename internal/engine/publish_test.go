package engine

import (
	"context"
	"testing"

	"github.com/beaconmq/beacon/internal/code"
	"github.com/beaconmq/beacon/internal/packet"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestHandlePublish_QoS0_NoAck(t *testing.T) {
	c, sp := newTestConn()
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("a/b"), QoS: 0})

	require.NoError(t, err)
	assert.Empty(t, sp.frames)
	session.AssertExpectations(t)
}

func TestHandlePublish_QoS1_SendsPuback(t *testing.T) {
	c, sp := newTestConn()
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("a/b"), QoS: 1, PacketID: 7})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
}

func TestHandlePublish_SystemTopicDenied(t *testing.T) {
	c, sp := newTestConn()

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("$SYS/broker/uptime"), QoS: 1, PacketID: 1})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1) // PUBACK(NotAuthorized), not a silent drop
}

func TestHandlePublish_CapsDenyQoS(t *testing.T) {
	c, sp := newTestConn()
	caps := new(fakeCaps)
	caps.On("CheckPub", "default", PubCaps{QoS: 2}).Return(code.QoSNotSupported, false)
	c.Caps = caps

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("a/b"), QoS: 2, PacketID: 1})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
	caps.AssertExpectations(t)
}

func TestHandlePublish_ACLDeniesNonSuperWhenEnabled(t *testing.T) {
	c, sp := newTestConn()
	c.EnableACL = true
	acl := new(fakeACL)
	acl.On("CheckACL", mock.Anything, mock.Anything, ActionPublish, []byte("secret/topic")).Return(false)
	c.ACL = acl

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("secret/topic"), QoS: 1, PacketID: 3})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
	acl.AssertExpectations(t)
}

func TestHandlePublish_SuperBypassesACL(t *testing.T) {
	c, sp := newTestConn()
	c.EnableACL = true
	c.IsSuper = true
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)
	c.Session = session
	acl := new(fakeACL) // no .On(...): must never be called
	c.ACL = acl

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("secret/topic"), QoS: 1, PacketID: 3})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
	acl.AssertNotCalled(t, "CheckACL", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandlePublish_AppliesMountpointBeforeForwarding(t *testing.T) {
	c, _ := newTestConn()
	c.Mountpoint = "tenants/t1/"
	var captured Message
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).(Message) }).
		Return(nil)
	c.Session = session

	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("sensors/temp"), QoS: 0})

	require.NoError(t, err)
	assert.Equal(t, "tenants/t1/sensors/temp", string(captured.Topic))
}

func TestHandlePublish_TopicAliasFirstUseRecordsMapping(t *testing.T) {
	c, _ := newTestConn()
	c.ServerTopicAliasMax = 10
	var captured Message
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).(Message) }).
		Return(nil)
	c.Session = session

	props := packet.Properties{}.Set(packet.PropTopicAlias, uint16(1))
	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("a/b"), QoS: 0, Properties: props})

	require.NoError(t, err)
	assert.Equal(t, "a/b", string(captured.Topic))
	assert.Equal(t, []byte("a/b"), c.inboundAliases[1])
}

func TestHandlePublish_TopicAliasReuseResolvesEmptyTopic(t *testing.T) {
	c, _ := newTestConn()
	c.ServerTopicAliasMax = 10
	c.inboundAliases = map[uint16][]byte{1: []byte("a/b")}
	var captured Message
	session := new(fakeSession)
	session.On("Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { captured = args.Get(3).(Message) }).
		Return(nil)
	c.Session = session

	props := packet.Properties{}.Set(packet.PropTopicAlias, uint16(1))
	err := handlePublish(context.Background(), c, &packet.Publish{Topic: nil, QoS: 0, Properties: props})

	require.NoError(t, err)
	assert.Equal(t, "a/b", string(captured.Topic))
}

func TestHandlePublish_TopicAliasUnknownOnEmptyTopicIsInvalid(t *testing.T) {
	c, sp := newTestConn()
	c.ServerTopicAliasMax = 10

	props := packet.Properties{}.Set(packet.PropTopicAlias, uint16(3))
	err := handlePublish(context.Background(), c, &packet.Publish{Topic: nil, QoS: 1, PacketID: 1, Properties: props})

	require.NoError(t, err)
	require.Len(t, sp.frames, 1)
}

func TestHandlePublish_TopicAliasBeyondNegotiatedMaxIsInvalid(t *testing.T) {
	c, _ := newTestConn()
	c.ServerTopicAliasMax = 2
	session := new(fakeSession) // no .On(...): must never be reached

	props := packet.Properties{}.Set(packet.PropTopicAlias, uint16(5))
	err := handlePublish(context.Background(), c, &packet.Publish{Topic: []byte("a/b"), QoS: 0, Properties: props})

	require.NoError(t, err)
	session.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}
